// Package chunk implements the parent-child chunker of spec §4.D: parent
// chunks (~2000 tokens) split on section/paragraph boundaries, child chunks
// (~400 tokens, ~50-token overlap) each referencing their parent, with a
// single contiguous chunk_index across both types in insertion order.
package chunk

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

const (
	parentTokenTarget = 2000
	childTokenTarget  = 400
	childOverlapToken = 50
)

// Splitter produces parent and child chunks for one document's normalized
// text and heading hints.
type Splitter struct {
	parentTokens int
	childTokens  int
	overlapTokens int
}

func NewSplitter() *Splitter {
	return &Splitter{parentTokens: parentTokenTarget, childTokens: childTokenTarget, overlapTokens: childOverlapToken}
}

// Unsaved is a chunk awaiting a database-assigned ID; Repository assigns IDs
// and parent-child foreign keys on insert.
type Unsaved struct {
	ChunkIndex    int
	StartToken    int
	EndToken      int
	Content       string
	ContentHash   string
	ChunkType     model.ChunkType
	ParentIndex   *int // index into the returned parents slice; nil for parent chunks themselves
	SectionIndex  int  // 0-based section-boundary group, shared by a parent and its children (§4.H level-2 grouping)
}

// Split returns parent chunks and child chunks (each child's ParentIndex
// indexes into the parents slice) with a single contiguous, insertion-order
// chunk_index space spanning both.
func (s *Splitter) Split(text string, headings []string) (parents []Unsaved, children []Unsaved) {
	sections := splitSections(text)

	index := 0
	startTok := 0
	for parentIdx, section := range sections {
		for _, parentText := range s.packParents(section) {
			parentText = strings.TrimSpace(parentText)
			if parentText == "" {
				continue
			}
			tokens := EstimateTokens(parentText)
			parents = append(parents, Unsaved{
				ChunkIndex:  index,
				StartToken:  startTok,
				EndToken:    startTok + tokens,
				Content:     parentText,
				ContentHash:  hash(parentText),
				ChunkType:    model.ChunkTypeParent,
				SectionIndex: parentIdx,
			})
			thisParent := len(parents) - 1
			index++
			startTok += tokens

			for _, childText := range s.packChildren(parentText) {
				childText = strings.TrimSpace(childText)
				if childText == "" {
					continue
				}
				ctokens := EstimateTokens(childText)
				pIdx := thisParent
				children = append(children, Unsaved{
					ChunkIndex:   index,
					StartToken:   startTok,
					EndToken:     startTok + ctokens,
					Content:      childText,
					ContentHash:  hash(childText),
					ChunkType:    model.ChunkTypeChild,
					ParentIndex:  &pIdx,
					SectionIndex: parentIdx,
				})
				index++
				startTok += ctokens
			}
		}
	}

	return parents, children
}

// splitSections splits on markdown-style headings when present, else on
// blank-line paragraph boundaries (§4.D: "cleanly split on section
// boundaries where hints permit, else on paragraph boundaries").
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")
	var sections []string
	var current strings.Builder
	sawHeading := false

	for _, line := range lines {
		if isHeadingLine(line) {
			sawHeading = true
			if current.Len() > 0 {
				sections = append(sections, current.String())
				current.Reset()
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}

	if !sawHeading {
		return splitParagraphGroups(text)
	}
	return sections
}

func isHeadingLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "=== ")
}

func splitParagraphGroups(text string) []string {
	paras := strings.Split(text, "\n\n")
	var out []string
	for _, p := range paras {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// packParents merges consecutive paragraphs within a section up to
// parentTokens, splitting a section that alone exceeds the target.
func (s *Splitter) packParents(section string) []string {
	paras := splitParagraphGroups(section)
	return packByTokens(paras, s.parentTokens, "\n\n")
}

// packChildren splits a parent's text into ~childTokens segments with
// ~overlapTokens of trailing-word overlap carried into the next segment,
// mirroring the teacher's applyOverlap (word-based, not token-exact).
func (s *Splitter) packChildren(parentText string) []string {
	sentences := splitSentences(parentText)
	segments := packByTokens(sentences, s.childTokens, " ")
	return applyWordOverlap(segments, s.overlapTokens)
}

func packByTokens(units []string, target int, joiner string) []string {
	var out []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, u := range units {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		uTokens := EstimateTokens(u)

		if uTokens > target {
			flush()
			out = append(out, splitByWordBudget(u, target)...)
			continue
		}

		if currentTokens > 0 && currentTokens+uTokens > target {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(joiner)
		}
		current.WriteString(u)
		currentTokens += uTokens
	}
	flush()

	if len(out) == 0 {
		return nil
	}
	return out
}

// applyWordOverlap prepends the last overlapTokens worth of words from each
// segment onto the next, so adjacent child chunks share context.
func applyWordOverlap(segments []string, overlapTokens int) []string {
	if len(segments) <= 1 {
		return segments
	}
	overlapWords := int(math.Ceil(float64(overlapTokens) / 1.3))

	out := make([]string, len(segments))
	out[0] = segments[0]
	for i := 1; i < len(segments); i++ {
		tail := lastNWords(segments[i-1], overlapWords)
		if tail == "" {
			out[i] = segments[i]
			continue
		}
		out[i] = tail + " " + segments[i]
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?' || r == '\n') && (i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n') {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func splitByWordBudget(text string, tokenBudget int) []string {
	words := strings.Fields(text)
	wordsPerChunk := int(float64(tokenBudget) / 1.3)
	if wordsPerChunk <= 0 {
		wordsPerChunk = 1
	}
	var out []string
	for i := 0; i < len(words); i += wordsPerChunk {
		end := min(i+wordsPerChunk, len(words))
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}

func lastNWords(text string, n int) string {
	words := strings.Fields(text)
	if n <= 0 {
		return ""
	}
	if n >= len(words) {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}

// EstimateTokens approximates LLM-tokenizer token count as words * 1.3,
// the same deterministic approximation used across chunk/embedding/usage
// so a single definition governs every token count in the system (§4.D).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

func hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
