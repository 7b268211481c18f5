// Package concept implements the concept extractor of spec §4.F: a single
// oracle call per document (or per parent chunk for long documents) that
// returns a strict JSON object of concepts, skill level, primary topic, and
// a suggested cluster name, with one "repair" retry on parse failure.
package concept

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// Chatter abstracts the oracle's text-generation call (internal/oracle.Client.Chat).
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const lowConfidenceThreshold = 0.65

const systemPrompt = `You are a technical concept extraction engine. Given document text, respond with a single strict JSON object and nothing else:
{
  "concepts": [{"name": string, "category": "language"|"framework"|"concept"|"tool", "confidence": number between 0 and 1}],
  "skill_level": "beginner"|"intermediate"|"advanced"|"unknown",
  "primary_topic": string,
  "suggested_cluster": string
}
Do not wrap the JSON in markdown code fences. Do not include any prose before or after the object.`

const repairPrompt = `Your previous response could not be parsed as the required JSON object. Respond again with ONLY the strict JSON object described, no markdown fences, no commentary.`

// Result is the parsed, validated output of one extraction call.
type Result struct {
	Concepts         []model.Concept
	SkillLevel       string
	PrimaryTopic     string
	SuggestedCluster string
}

// LowConfidence reports whether the extraction's overall confidence (mean
// across concepts) falls below the agentic-learning review threshold.
func (r Result) LowConfidence() bool {
	if len(r.Concepts) == 0 {
		return true
	}
	var sum float64
	for _, c := range r.Concepts {
		sum += c.Confidence
	}
	return sum/float64(len(r.Concepts)) < lowConfidenceThreshold
}

type schemaResponse struct {
	Concepts []struct {
		Name       string  `json:"name"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	} `json:"concepts"`
	SkillLevel       string `json:"skill_level"`
	PrimaryTopic     string `json:"primary_topic"`
	SuggestedCluster string `json:"suggested_cluster"`
}

// Extractor calls the oracle for concept extraction, with schema validation
// and a single repair retry (§4.F).
type Extractor struct {
	chatter  Chatter
	feedback FeedbackStore
}

func NewExtractor(chatter Chatter, feedback FeedbackStore) *Extractor {
	return &Extractor{chatter: chatter, feedback: feedback}
}

// Extract runs the oracle call for one document's text (or one parent
// chunk's text for long documents — the caller decides granularity and
// merges results via Merge).
func (e *Extractor) Extract(ctx context.Context, documentID int64, text string) (*Result, error) {
	userPrompt := buildUserPrompt(text)

	raw, err := e.chatter.Chat(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, errs.OracleUnavailable(err)
	}

	result, parseErr := parseSchema(documentID, raw)
	if parseErr != nil {
		repaired, err := e.chatter.Chat(ctx, systemPrompt, userPrompt+"\n\n"+repairPrompt)
		if err != nil {
			return nil, errs.OracleUnavailable(err)
		}
		result, parseErr = parseSchema(documentID, repaired)
		if parseErr != nil {
			return nil, errs.OracleSchema(fmt.Sprintf("concept extraction: unparseable oracle response after repair retry: %v", parseErr))
		}
	}

	if e.feedback != nil && result.LowConfidence() {
		e.feedback.Flag(ctx, documentID, *result)
	}

	return result, nil
}

// Merge coalesces concepts across multiple per-chunk extractions for one
// document, taking the max confidence per case-insensitive concept name
// (the first-seen entry's name and category are kept) and the first
// non-empty skill_level/primary_topic/suggested_cluster in encounter order.
func Merge(results []*Result) *Result {
	merged := &Result{}
	byName := map[string]model.Concept{}
	var order []string

	for _, r := range results {
		if r == nil {
			continue
		}
		if merged.SkillLevel == "" {
			merged.SkillLevel = r.SkillLevel
		}
		if merged.PrimaryTopic == "" {
			merged.PrimaryTopic = r.PrimaryTopic
		}
		if merged.SuggestedCluster == "" {
			merged.SuggestedCluster = r.SuggestedCluster
		}
		for _, c := range r.Concepts {
			key := strings.ToLower(c.Name)
			if existing, ok := byName[key]; ok {
				if c.Confidence > existing.Confidence {
					existing.Confidence = c.Confidence
					byName[key] = existing
				}
				continue
			}
			byName[key] = c
			order = append(order, key)
		}
	}

	merged.Concepts = make([]model.Concept, 0, len(order))
	for _, key := range order {
		merged.Concepts = append(merged.Concepts, byName[key])
	}
	return merged
}

func buildUserPrompt(text string) string {
	const maxChars = 12000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return fmt.Sprintf("Document text:\n\n%s", text)
}

func parseSchema(documentID int64, raw string) (*Result, error) {
	cleaned := stripCodeFences(raw)

	var parsed schemaResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}

	skillLevel := parsed.SkillLevel
	switch skillLevel {
	case "beginner", "intermediate", "advanced":
	default:
		skillLevel = "unknown"
	}

	byName := map[string]model.Concept{}
	var order []string
	for _, c := range parsed.Concepts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		category := model.ConceptCategory(c.Category)
		switch category {
		case model.CategoryLanguage, model.CategoryFramework, model.CategoryConcept, model.CategoryTool:
		default:
			category = model.CategoryConcept
		}
		confidence := clamp(c.Confidence, 0, 1)

		key := strings.ToLower(name)
		if existing, ok := byName[key]; ok {
			if confidence > existing.Confidence {
				existing.Confidence = confidence
				byName[key] = existing
			}
			continue
		}
		byName[key] = model.Concept{DocumentID: documentID, Name: name, Category: category, Confidence: confidence}
		order = append(order, key)
	}

	concepts := make([]model.Concept, 0, len(order))
	for _, key := range order {
		concepts = append(concepts, byName[key])
	}

	return &Result{
		Concepts:         concepts,
		SkillLevel:       skillLevel,
		PrimaryTopic:     strings.TrimSpace(parsed.PrimaryTopic),
		SuggestedCluster: strings.TrimSpace(parsed.SuggestedCluster),
	}, nil
}

// stripCodeFences removes a leading/trailing markdown code fence if the
// oracle wrapped its JSON despite instructions not to.
func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	if len(lines) >= 3 {
		cleaned = strings.Join(lines[1:len(lines)-1], "\n")
	}
	return strings.TrimSpace(cleaned)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
