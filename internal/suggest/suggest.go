// Package suggest implements the idea/build suggester of spec §4.K:
// assemble a textual knowledge summary from a KB's clusters and concepts,
// prompt the oracle for structured build suggestions, and gate generation
// behind minimum-knowledge thresholds.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

const (
	defaultMaxSuggestions = 5
	minMaxSuggestions     = 1
	maxMaxSuggestions     = 10

	minDistinctConcepts    = 2
	minDocumentCount       = 1
	minClusterCount        = 1
	minTotalContentLength  = 200
)

// Chatter abstracts the oracle's text-generation call.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClusterSummary is the per-cluster input to the knowledge summary (§4.K:
// "per-cluster: name, doc_count, skill_level, top-5 primary concepts,
// sample concepts per doc").
type ClusterSummary struct {
	ID              int64
	Name            string
	DocCount        int
	SkillLevel      string
	PrimaryConcepts []string
}

// KnowledgeBank is the full input to one suggestion call.
type KnowledgeBank struct {
	KBID             string
	Clusters         []ClusterSummary
	DistinctConcepts int
	DocumentCount    int
	TotalContentLen  int
}

type suggestionJSON struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Feasibility        string   `json:"feasibility"`
	EffortEstimate     string   `json:"effort_estimate"`
	RequiredSkills     []string `json:"required_skills"`
	MissingKnowledge   []string `json:"missing_knowledge"`
	RelevantClusters   []int64  `json:"relevant_clusters"`
	StarterSteps       []string `json:"starter_steps"`
	KnowledgeCoverage  float64  `json:"knowledge_coverage"`
}

const systemPrompt = `You are a project idea generator for a developer's personal knowledge base. Given a summary of what the user knows, respond with a single strict JSON array (no surrounding object, no markdown fences) of suggestion objects:
[{"title": string, "description": string, "feasibility": "high"|"medium"|"low", "effort_estimate": string, "required_skills": [string], "missing_knowledge": [string], "relevant_clusters": [number], "starter_steps": [string], "knowledge_coverage": number between 0 and 1}]`

// Suggester generates build suggestions from a KB's knowledge summary.
type Suggester struct {
	chatter Chatter
}

func NewSuggester(chatter Chatter) *Suggester {
	return &Suggester{chatter: chatter}
}

// MissingThresholds reports which §4.K gating thresholds a KnowledgeBank
// fails, empty when generation may proceed.
func MissingThresholds(kb KnowledgeBank) []string {
	var failed []string
	if kb.DistinctConcepts < minDistinctConcepts {
		failed = append(failed, "distinct_concepts")
	}
	if kb.DocumentCount < minDocumentCount {
		failed = append(failed, "document_count")
	}
	if len(kb.Clusters) < minClusterCount {
		failed = append(failed, "cluster_count")
	}
	if kb.TotalContentLen < minTotalContentLength {
		failed = append(failed, "total_content_length")
	}
	return failed
}

// Suggest generates up to maxSuggestions build suggestions for kb. Callers
// MUST check MissingThresholds first; Suggest re-checks and returns
// errs.KindValidation("insufficient_knowledge", ...) as a defensive guard.
func (s *Suggester) Suggest(ctx context.Context, kb KnowledgeBank, maxSuggestions int) ([]model.BuildIdeaSeed, error) {
	if failed := MissingThresholds(kb); len(failed) > 0 {
		return nil, insufficientKnowledgeError(failed)
	}

	if maxSuggestions <= 0 {
		maxSuggestions = defaultMaxSuggestions
	}
	if maxSuggestions < minMaxSuggestions {
		maxSuggestions = minMaxSuggestions
	}
	if maxSuggestions > maxMaxSuggestions {
		maxSuggestions = maxMaxSuggestions
	}

	userPrompt := buildKnowledgeSummaryPrompt(kb, maxSuggestions)
	raw, err := s.chatter.Chat(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, errs.OracleUnavailable(err)
	}

	parsed, err := parseSuggestions(raw)
	if err != nil {
		return nil, errs.OracleSchema(fmt.Sprintf("suggest: unparseable oracle response: %v", err))
	}

	seeds := make([]model.BuildIdeaSeed, 0, len(parsed))
	for _, p := range parsed {
		feasibility := model.Feasibility(p.Feasibility)
		switch feasibility {
		case model.FeasibilityHigh, model.FeasibilityMedium, model.FeasibilityLow:
		default:
			feasibility = model.FeasibilityMedium
		}
		seeds = append(seeds, model.BuildIdeaSeed{
			ID:                uuid.New().String(),
			KBID:              kb.KBID,
			Title:             p.Title,
			Description:       p.Description,
			Feasibility:       feasibility,
			EffortEstimate:    p.EffortEstimate,
			RequiredSkills:    p.RequiredSkills,
			MissingKnowledge:  p.MissingKnowledge,
			RelevantClusters:  p.RelevantClusters,
			StarterSteps:      p.StarterSteps,
			KnowledgeCoverage: clamp(p.KnowledgeCoverage, 0, 1),
		})
	}

	rankByFeasibilityLast(seeds)
	if len(seeds) > maxSuggestions {
		seeds = seeds[:maxSuggestions]
	}
	return seeds, nil
}

// rankByFeasibilityLast stable-sorts so low-feasibility suggestions sink to
// the end while preserving the oracle's relative ordering otherwise (§4.K:
// "Suggestions with feasibility==\"low\" are retained but ranked last").
func rankByFeasibilityLast(seeds []model.BuildIdeaSeed) {
	sort.SliceStable(seeds, func(i, j int) bool {
		return seeds[i].Feasibility != model.FeasibilityLow && seeds[j].Feasibility == model.FeasibilityLow
	})
}

func insufficientKnowledgeError(failedThresholds []string) *errs.Error {
	return &errs.Error{
		Kind:    errs.KindValidation,
		Message: "insufficient_knowledge: " + strings.Join(failedThresholds, ", "),
		Field:   "insufficient_knowledge",
	}
}

func buildKnowledgeSummaryPrompt(kb KnowledgeBank, maxSuggestions int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate up to %d build suggestions.\n\nKnowledge summary:\n", maxSuggestions)
	for _, c := range kb.Clusters {
		fmt.Fprintf(&sb, "- Cluster %d %q: %d documents, skill level %s, top concepts: %s\n",
			c.ID, c.Name, c.DocCount, c.SkillLevel, strings.Join(c.PrimaryConcepts, ", "))
	}
	return sb.String()
}

func parseSuggestions(raw string) ([]suggestionJSON, error) {
	var parsed []suggestionJSON
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
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
