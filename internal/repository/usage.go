package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

// UsageRepo implements usage.Store with pgx, keeping the teacher's
// calendar-month upsert idiom but moving it off the teacher's flat
// metric-row table and onto model.UsageRecord's named-counter-per-period
// row (§4.L).
type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

var _ usage.Store = (*UsageRepo)(nil)

func (r *UsageRepo) GetOrCreatePeriod(ctx context.Context, user string, periodStart, periodEnd time.Time) (model.UsageRecord, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_records (user_id, period_start, period_end)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, period_start) DO NOTHING`,
		user, periodStart, periodEnd,
	)
	if err != nil {
		return model.UsageRecord{}, fmt.Errorf("repository.GetOrCreatePeriod: upsert: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT user_id, period_start, period_end, api_calls, documents_uploaded, ai_requests,
			storage_bytes, search_queries, build_suggestions
		FROM usage_records WHERE user_id = $1 AND period_start = $2`, user, periodStart)

	var rec model.UsageRecord
	err = row.Scan(&rec.User, &rec.PeriodStart, &rec.PeriodEnd, &rec.APICalls, &rec.DocumentsUploaded,
		&rec.AIRequests, &rec.StorageBytes, &rec.SearchQueries, &rec.BuildSuggestions)
	if err != nil {
		return model.UsageRecord{}, fmt.Errorf("repository.GetOrCreatePeriod: scan: %w", err)
	}
	return rec, nil
}

func (r *UsageRepo) IncrementBy(ctx context.Context, user string, metric usage.Metric, delta int64) error {
	column, ok := usageColumn(metric)
	if !ok {
		return fmt.Errorf("repository.IncrementBy: unknown metric %q", metric)
	}

	now := time.Now().UTC()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO usage_records (user_id, period_start, period_end, %s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, period_start) DO UPDATE SET %s = usage_records.%s + EXCLUDED.%s`,
		column, column, column, column),
		user, periodStart, periodEnd, delta,
	)
	if err != nil {
		return fmt.Errorf("repository.IncrementBy: %w", err)
	}

	if metric == usage.MetricAPICalls {
		if _, err := r.pool.Exec(ctx, `INSERT INTO api_call_events (user_id) VALUES ($1)`, user); err != nil {
			return fmt.Errorf("repository.IncrementBy: record rate event: %w", err)
		}
	}
	return nil
}

func (r *UsageRepo) RateWindowCount(ctx context.Context, user string, window time.Duration) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM api_call_events WHERE user_id = $1 AND occurred_at > $2`,
		user, time.Now().UTC().Add(-window),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.RateWindowCount: %w", err)
	}
	return count, nil
}

func (r *UsageRepo) SubscriptionFor(ctx context.Context, user string) (model.Subscription, error) {
	var sub model.Subscription
	var plan, status string
	var limitsJSON []byte

	err := r.pool.QueryRow(ctx, `
		SELECT user_id, plan, status, limits FROM subscriptions WHERE user_id = $1`, user,
	).Scan(&sub.User, &plan, &status, &limitsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Subscription{User: user, Plan: model.PlanFree, Status: model.SubscriptionActive}, nil
		}
		return model.Subscription{}, fmt.Errorf("repository.SubscriptionFor: %w", err)
	}

	sub.Plan = model.Plan(plan)
	sub.Status = model.SubscriptionStatus(status)
	if len(limitsJSON) > 0 {
		var limits model.PlanLimits
		if err := json.Unmarshal(limitsJSON, &limits); err == nil {
			sub.Limits = &limits
		}
	}
	return sub, nil
}

func usageColumn(metric usage.Metric) (string, bool) {
	switch metric {
	case usage.MetricAPICalls:
		return "api_calls", true
	case usage.MetricDocumentsUpload:
		return "documents_uploaded", true
	case usage.MetricAIRequests:
		return "ai_requests", true
	case usage.MetricSearchQueries:
		return "search_queries", true
	case usage.MetricBuildSuggestions:
		return "build_suggestions", true
	default:
		return "", false
	}
}
