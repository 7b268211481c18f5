package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

func TestValidateRequiresTitle(t *testing.T) {
	v := NewMarketValidator(&fakeChatter{})
	_, err := v.Validate(context.Background(), IdeaValidationInput{})
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateParsesVerdict(t *testing.T) {
	chatter := &fakeChatter{response: "```json\n" + `{
		"market_size_estimate": "medium",
		"market_size_details": "niche but growing",
		"competition_level": "high",
		"competitors": ["Acme", "Beta Co"],
		"competition_analysis": "crowded with incumbents",
		"unique_advantage": "local-first sync",
		"potential_revenue": "$10k-$50k/yr",
		"revenue_reasoning": "small addressable market",
		"target_customer_profile": {"role": "indie developer"},
		"go_to_market_strategy": ["launch on HN"],
		"risk_factors": ["incumbent lock-in"],
		"recommendation": "pivot",
		"reasoning": "differentiate on privacy",
		"confidence_score": 1.5,
		"next_validation_steps": ["interview 10 users"]
	}` + "\n```"}
	v := NewMarketValidator(chatter)

	result, err := v.Validate(context.Background(), IdeaValidationInput{Title: "Note sync tool", Description: "syncs notes across devices"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Recommendation != model.MarketRecommendationPivot {
		t.Errorf("recommendation = %s, want pivot", result.Recommendation)
	}
	if result.ConfidenceScore != 1 {
		t.Errorf("confidence score = %v, want clamped to 1", result.ConfidenceScore)
	}
	if len(result.Competitors) != 2 {
		t.Errorf("expected 2 competitors, got %d", len(result.Competitors))
	}
}

func TestValidateDefaultsUnknownRecommendationToPivot(t *testing.T) {
	chatter := &fakeChatter{response: `{"recommendation": "maybe", "confidence_score": 0.4}`}
	v := NewMarketValidator(chatter)

	result, err := v.Validate(context.Background(), IdeaValidationInput{Title: "x"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Recommendation != model.MarketRecommendationPivot {
		t.Errorf("recommendation = %s, want pivot fallback", result.Recommendation)
	}
}

type erroringChatter struct{}

func (erroringChatter) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("oracle down")
}

func TestValidateWrapsOracleFailure(t *testing.T) {
	v := NewMarketValidator(erroringChatter{})
	_, err := v.Validate(context.Background(), IdeaValidationInput{Title: "x"})
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindOracleUnavailable {
		t.Fatalf("expected oracle_unavailable error, got %v", err)
	}
}

func TestValidateRejectsUnparseableResponse(t *testing.T) {
	v := NewMarketValidator(&fakeChatter{response: "not json"})
	_, err := v.Validate(context.Background(), IdeaValidationInput{Title: "x"})
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindOracleSchema {
		t.Fatalf("expected oracle_schema error, got %v", err)
	}
}
