package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// IdeaValidationInput is the caller-supplied context for one market
// validation call: the idea itself plus what the user's corpus already
// knows about the space, assembled the same way KnowledgeBank feeds
// Suggest.
type IdeaValidationInput struct {
	Title            string
	Description      string
	TargetMarket     string
	KnowledgeSummary string
}

type marketValidationJSON struct {
	MarketSizeEstimate    string            `json:"market_size_estimate"`
	MarketSizeDetails     string            `json:"market_size_details"`
	CompetitionLevel      string            `json:"competition_level"`
	Competitors           []string          `json:"competitors"`
	CompetitionAnalysis   string            `json:"competition_analysis"`
	UniqueAdvantage       string            `json:"unique_advantage"`
	PotentialRevenue      string            `json:"potential_revenue"`
	RevenueReasoning      string            `json:"revenue_reasoning"`
	TargetCustomerProfile map[string]string `json:"target_customer_profile"`
	GoToMarketStrategy    []string          `json:"go_to_market_strategy"`
	RiskFactors           []string          `json:"risk_factors"`
	Recommendation        string            `json:"recommendation"`
	Reasoning             string            `json:"reasoning"`
	ConfidenceScore       float64           `json:"confidence_score"`
	NextValidationSteps   []string          `json:"next_validation_steps"`
}

const marketValidationSystemPrompt = `You are a brutally honest market analyst reviewing a developer's project idea before they spend time building it. Be direct about weak ideas; do not soften a bad verdict to be encouraging. Respond with a single strict JSON object (no markdown fences):
{"market_size_estimate": "small"|"medium"|"large"|"niche", "market_size_details": string, "competition_level": "low"|"medium"|"high"|"crowded", "competitors": [string], "competition_analysis": string, "unique_advantage": string, "potential_revenue": string, "revenue_reasoning": string, "target_customer_profile": {string: string}, "go_to_market_strategy": [string], "risk_factors": [string], "recommendation": "proceed"|"pivot"|"abandon", "reasoning": string, "confidence_score": number between 0 and 1, "next_validation_steps": [string]}`

// MarketValidator assesses a build idea's commercial viability by
// prompting the oracle for a structured go/pivot/abandon verdict, the §4.K
// suggester's natural companion for ideas a user is deciding whether to
// actually pursue.
type MarketValidator struct {
	chatter Chatter
}

func NewMarketValidator(chatter Chatter) *MarketValidator {
	return &MarketValidator{chatter: chatter}
}

// Validate returns a MarketValidation for in. Unlike Suggest, there is no
// minimum-knowledge gate: a user may validate an idea against an empty
// knowledge summary, since market viability doesn't depend on what's
// already in their KB.
func (v *MarketValidator) Validate(ctx context.Context, in IdeaValidationInput) (model.MarketValidation, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.MarketValidation{}, errs.Validation("title", "title is required")
	}

	userPrompt := buildValidationPrompt(in)
	raw, err := v.chatter.Chat(ctx, marketValidationSystemPrompt, userPrompt)
	if err != nil {
		return model.MarketValidation{}, errs.OracleUnavailable(err)
	}

	var parsed marketValidationJSON
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return model.MarketValidation{}, errs.OracleSchema(fmt.Sprintf("validate: unparseable oracle response: %v", err))
	}

	rec := model.MarketRecommendation(parsed.Recommendation)
	switch rec {
	case model.MarketRecommendationProceed, model.MarketRecommendationPivot, model.MarketRecommendationAbandon:
	default:
		rec = model.MarketRecommendationPivot
	}

	return model.MarketValidation{
		MarketSizeEstimate:    parsed.MarketSizeEstimate,
		MarketSizeDetails:     parsed.MarketSizeDetails,
		CompetitionLevel:      parsed.CompetitionLevel,
		Competitors:           parsed.Competitors,
		CompetitionAnalysis:   parsed.CompetitionAnalysis,
		UniqueAdvantage:       parsed.UniqueAdvantage,
		PotentialRevenue:      parsed.PotentialRevenue,
		RevenueReasoning:      parsed.RevenueReasoning,
		TargetCustomerProfile: parsed.TargetCustomerProfile,
		GoToMarketStrategy:    parsed.GoToMarketStrategy,
		RiskFactors:           parsed.RiskFactors,
		Recommendation:        rec,
		Reasoning:             parsed.Reasoning,
		ConfidenceScore:       clamp(parsed.ConfidenceScore, 0, 1),
		NextValidationSteps:   parsed.NextValidationSteps,
	}, nil
}

func buildValidationPrompt(in IdeaValidationInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project title: %s\n", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", in.Description)
	}
	if in.TargetMarket != "" {
		fmt.Fprintf(&sb, "Target market: %s\n", in.TargetMarket)
	}
	if in.KnowledgeSummary != "" {
		fmt.Fprintf(&sb, "What the builder already knows:\n%s\n", in.KnowledgeSummary)
	}
	return sb.String()
}

func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 3 {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}
