// Package usage implements the usage accountant of spec §4.L: per-user
// calendar-month usage records and quota enforcement gated before
// admitting work, adapted from the teacher's tier/limit map idiom.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// Metric identifies which UsageRecord counter a request increments.
type Metric string

const (
	MetricAPICalls         Metric = "api_calls"
	MetricDocumentsUpload  Metric = "documents_uploaded"
	MetricAIRequests       Metric = "ai_requests"
	MetricSearchQueries    Metric = "search_queries"
	MetricBuildSuggestions Metric = "build_suggestions"
)

// PlanLimitMap is the default per-plan limit table (§4.L). -1 is
// unlimited. A per-user Subscription.Limits override takes precedence
// when set.
var PlanLimitMap = map[model.Plan]model.PlanLimits{
	model.PlanFree: {
		APICallsPerMinute: 10,
		APICallsPerDay:    500,
		DocumentsPerMonth: 20,
		AIRequestsPerDay:  50,
		StorageMB:         500,
		KnowledgeBases:    1,
	},
	model.PlanStarter: {
		APICallsPerMinute: 60,
		APICallsPerDay:    5000,
		DocumentsPerMonth: 200,
		AIRequestsPerDay:  500,
		StorageMB:         5000,
		KnowledgeBases:    5,
	},
	model.PlanPro: {
		APICallsPerMinute: 300,
		APICallsPerDay:    50000,
		DocumentsPerMonth: 2000,
		AIRequestsPerDay:  5000,
		StorageMB:         50000,
		KnowledgeBases:    25,
	},
	model.PlanEnterprise: {
		APICallsPerMinute: -1,
		APICallsPerDay:    -1,
		DocumentsPerMonth: -1,
		AIRequestsPerDay:  -1,
		StorageMB:         -1,
		KnowledgeBases:    -1,
	},
}

// Store persists UsageRecord rows and rate-window counters.
type Store interface {
	// GetOrCreatePeriod returns the current calendar-month record for user,
	// creating it idempotently if absent (unique (user, period_start)).
	GetOrCreatePeriod(ctx context.Context, user string, periodStart, periodEnd time.Time) (model.UsageRecord, error)
	// IncrementBy atomically adds delta to one counter in the user's current
	// period record.
	IncrementBy(ctx context.Context, user string, metric Metric, delta int64) error
	// RateWindowCount returns how many API calls the user has made within
	// the trailing window (used for the per-minute limit).
	RateWindowCount(ctx context.Context, user string, window time.Duration) (int64, error)
	SubscriptionFor(ctx context.Context, user string) (model.Subscription, error)
}

// Accountant enforces plan quotas before admitting work, and records usage
// after it's done (§4.L).
type Accountant struct {
	store Store
	log   *slog.Logger
}

func NewAccountant(store Store, log *slog.Logger) *Accountant {
	if log == nil {
		log = slog.Default()
	}
	return &Accountant{store: store, log: log}
}

// CurrentPeriod returns (creating if needed) the user's current
// calendar-month UsageRecord.
func (a *Accountant) CurrentPeriod(ctx context.Context, user string) (model.UsageRecord, error) {
	start, end := calendarMonthBounds(time.Now().UTC())
	return a.store.GetOrCreatePeriod(ctx, user, start, end)
}

// Admit is the quota gate run before admitting work of the given kind
// (§4.L: "Quota enforcement is a gate executed before admitting the
// work... the underlying work is not performed" on violation).
func (a *Accountant) Admit(ctx context.Context, user string, metric Metric) error {
	sub, err := a.store.SubscriptionFor(ctx, user)
	if err != nil {
		return fmt.Errorf("usage.Admit: %w", err)
	}
	limits := effectiveLimits(sub)

	// Metrics without a counter ceiling, or with an unlimited (-1) one, skip
	// straight to the per-minute rate window.
	if limit, ok := dailyLimitFor(limits, metric); ok && limit >= 0 {
		period, err := a.CurrentPeriod(ctx, user)
		if err != nil {
			return fmt.Errorf("usage.Admit: %w", err)
		}
		current := currentValue(period, metric)
		if current >= limit {
			return errs.Quota(limit, current, calendarPeriodEnd(time.Now().UTC()).Format(time.RFC3339))
		}
	}

	if limits.APICallsPerMinute >= 0 {
		count, err := a.store.RateWindowCount(ctx, user, time.Minute)
		if err != nil {
			return fmt.Errorf("usage.Admit: rate window: %w", err)
		}
		if count >= limits.APICallsPerMinute {
			return errs.Quota(limits.APICallsPerMinute, count, time.Now().UTC().Add(time.Minute).Format(time.RFC3339))
		}
	}

	return nil
}

// Record increments the counter for metric by delta, and always increments
// api_calls by 1 (§4.L: "api_calls always"). Recording failures are logged
// but never surfaced to the caller — usage accounting must not block an
// otherwise-successful request.
func (a *Accountant) Record(ctx context.Context, user string, metric Metric, delta int64) {
	if metric != MetricAPICalls {
		if err := a.store.IncrementBy(ctx, user, MetricAPICalls, 1); err != nil {
			a.log.Error("usage: failed to increment api_calls", "user", user, "error", err)
		}
	}
	if err := a.store.IncrementBy(ctx, user, metric, delta); err != nil {
		a.log.Error("usage: failed to increment metric", "user", user, "metric", metric, "error", err)
	}
}

func effectiveLimits(sub model.Subscription) model.PlanLimits {
	if sub.Limits != nil {
		return *sub.Limits
	}
	if limits, ok := PlanLimitMap[sub.Plan]; ok {
		return limits
	}
	return PlanLimitMap[model.PlanFree]
}

func dailyLimitFor(limits model.PlanLimits, metric Metric) (int64, bool) {
	switch metric {
	case MetricDocumentsUpload:
		return limits.DocumentsPerMonth, true
	case MetricAIRequests:
		return limits.AIRequestsPerDay, true
	default:
		return 0, false
	}
}

func currentValue(r model.UsageRecord, metric Metric) int64 {
	switch metric {
	case MetricDocumentsUpload:
		return r.DocumentsUploaded
	case MetricAIRequests:
		return r.AIRequests
	case MetricSearchQueries:
		return r.SearchQueries
	case MetricBuildSuggestions:
		return r.BuildSuggestions
	default:
		return r.APICalls
	}
}

func calendarMonthBounds(now time.Time) (start, end time.Time) {
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

func calendarPeriodEnd(now time.Time) time.Time {
	_, end := calendarMonthBounds(now)
	return end
}

// EstimateTokens approximates a request's token cost (words × 1.3), the
// same deterministic estimator used by internal/chunk, so every component
// that reasons about token budgets agrees.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	words := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			words++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return int64(float64(words) * 1.3)
}
