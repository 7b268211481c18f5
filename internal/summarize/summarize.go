// Package summarize implements the hierarchical summarizer of spec §4.H:
// level-1 per-parent-chunk summaries, level-2 section summaries combining
// sibling level-1s, and one level-3 document summary synthesized from all
// level-2s.
package summarize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// Chatter abstracts the oracle's text-generation call, shared with
// internal/concept and internal/rag.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	shortSummaryGuidance = "100 to 200 tokens"
	longSummaryGuidance  = "500 to 1000 tokens"
)

const levelSystemPrompt = `You are a technical documentation summarizer. Given source text and a set of known concepts, respond with a single strict JSON object and nothing else:
{
  "short_summary": string,
  "long_summary": string,
  "key_concepts": [string],
  "tech_stack": [string],
  "skill_profile": "beginner"|"intermediate"|"advanced"|"unknown"
}
short_summary MUST be %s. long_summary MUST be %s. Do not wrap the JSON in markdown code fences.`

type levelResponse struct {
	ShortSummary string   `json:"short_summary"`
	LongSummary  string   `json:"long_summary"`
	KeyConcepts  []string `json:"key_concepts"`
	TechStack    []string `json:"tech_stack"`
	SkillProfile string   `json:"skill_profile"`
}

// Summarizer builds the three-level summary forest for one document.
type Summarizer struct {
	chatter Chatter
}

func NewSummarizer(chatter Chatter) *Summarizer {
	return &Summarizer{chatter: chatter}
}

// ParentChunk is the minimal input needed to summarize one parent chunk.
type ParentChunk struct {
	ID           string
	SectionIndex int
	Content      string
}

// Summarize runs the full three-level pipeline for one document's parent
// chunks (already ordered by chunk_index) and its extracted concept names,
// returning every Summary row to persist.
func (s *Summarizer) Summarize(ctx context.Context, documentID int64, parents []ParentChunk, conceptNames []string) ([]model.Summary, error) {
	if len(parents) == 0 {
		return nil, nil
	}

	level1 := make([]model.Summary, 0, len(parents))
	for _, p := range parents {
		summary, err := s.summarizeOne(ctx, documentID, p.Content, conceptNames)
		if err != nil {
			return nil, fmt.Errorf("summarize.Summarize: level 1 chunk %s: %w", p.ID, err)
		}
		chunkID := p.ID
		summary.ID = uuid.New().String()
		summary.DocumentID = documentID
		summary.ChunkID = &chunkID
		summary.Level = model.LevelChunk
		level1 = append(level1, summary)
	}

	sections := groupBySection(parents, level1)
	var level2 []model.Summary
	for _, group := range sections {
		combined := combineSummaries(group.summaries)
		summary, err := s.summarizeOne(ctx, documentID, combined.text, combined.concepts)
		if err != nil {
			return nil, fmt.Errorf("summarize.Summarize: level 2 section %d: %w", group.sectionIndex, err)
		}
		summary.ID = uuid.New().String()
		summary.DocumentID = documentID
		summary.Level = model.LevelSection
		for i := range group.summaries {
			level1[group.level1Indexes[i]].ParentID = ptr(summary.ID)
		}
		level2 = append(level2, summary)
	}

	combined := combineSummaries(level2)
	docSummary, err := s.summarizeOne(ctx, documentID, combined.text, combined.concepts)
	if err != nil {
		return nil, fmt.Errorf("summarize.Summarize: level 3: %w", err)
	}
	docSummary.ID = uuid.New().String()
	docSummary.DocumentID = documentID
	docSummary.Level = model.LevelDocument
	for i := range level2 {
		level2[i].ParentID = ptr(docSummary.ID)
	}

	out := make([]model.Summary, 0, len(level1)+len(level2)+1)
	out = append(out, level1...)
	out = append(out, level2...)
	out = append(out, docSummary)
	return out, nil
}

func (s *Summarizer) summarizeOne(ctx context.Context, documentID int64, text string, knownConcepts []string) (model.Summary, error) {
	systemPrompt := fmt.Sprintf(levelSystemPrompt, shortSummaryGuidance, longSummaryGuidance)
	userPrompt := buildUserPrompt(text, knownConcepts)

	raw, err := s.chatter.Chat(ctx, systemPrompt, userPrompt)
	if err != nil {
		return model.Summary{}, err
	}

	parsed, err := parseLevelResponse(raw)
	if err != nil {
		// One repair attempt mirrors internal/concept's schema-recovery idiom,
		// but a second failure here degrades to a truncated plain-text summary
		// rather than failing the whole ingest — a missing summary is not a
		// correctness problem the way a missing concept/cluster assignment is.
		repaired, repairErr := s.chatter.Chat(ctx, systemPrompt, userPrompt+"\n\nYour previous response was not valid JSON. Respond again with ONLY the JSON object.")
		if repairErr == nil {
			if p2, err2 := parseLevelResponse(repaired); err2 == nil {
				parsed = p2
				err = nil
			}
		}
		if err != nil {
			parsed = levelResponse{ShortSummary: truncate(text, 800), SkillProfile: "unknown"}
		}
	}

	skillLevel := model.SkillLevel(parsed.SkillProfile)
	switch skillLevel {
	case model.SkillBeginner, model.SkillIntermediate, model.SkillAdvanced:
	default:
		skillLevel = model.SkillUnknown
	}

	var longSummary *string
	if strings.TrimSpace(parsed.LongSummary) != "" {
		longSummary = &parsed.LongSummary
	}

	return model.Summary{
		ShortSummary: parsed.ShortSummary,
		LongSummary:  longSummary,
		KeyConcepts:  parsed.KeyConcepts,
		TechStack:    parsed.TechStack,
		SkillProfile: skillLevel,
	}, nil
}

type sectionGroup struct {
	sectionIndex  int
	summaries     []model.Summary
	level1Indexes []int
}

func groupBySection(parents []ParentChunk, level1 []model.Summary) []sectionGroup {
	order := []int{}
	bySection := map[int]*sectionGroup{}
	for i, p := range parents {
		g, ok := bySection[p.SectionIndex]
		if !ok {
			g = &sectionGroup{sectionIndex: p.SectionIndex}
			bySection[p.SectionIndex] = g
			order = append(order, p.SectionIndex)
		}
		g.summaries = append(g.summaries, level1[i])
		g.level1Indexes = append(g.level1Indexes, i)
	}
	sort.Ints(order)
	out := make([]sectionGroup, 0, len(order))
	for _, idx := range order {
		out = append(out, *bySection[idx])
	}
	return out
}

type combinedInput struct {
	text     string
	concepts []string
}

func combineSummaries(summaries []model.Summary) combinedInput {
	var sb strings.Builder
	seen := map[string]bool{}
	var concepts []string
	for _, s := range summaries {
		sb.WriteString(s.ShortSummary)
		sb.WriteString("\n")
		for _, c := range s.KeyConcepts {
			key := strings.ToLower(c)
			if !seen[key] {
				seen[key] = true
				concepts = append(concepts, c)
			}
		}
	}
	return combinedInput{text: sb.String(), concepts: concepts}
}

func buildUserPrompt(text string, knownConcepts []string) string {
	const maxChars = 12000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	var sb strings.Builder
	sb.WriteString("Source text:\n\n")
	sb.WriteString(text)
	if len(knownConcepts) > 0 {
		sb.WriteString("\n\nKnown concepts for this document: ")
		sb.WriteString(strings.Join(knownConcepts, ", "))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func ptr(s string) *string { return &s }
