package handler

import (
	"context"

	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

// QuotaEnforcer is the §4.L pre-work gate, satisfied by
// *internal/usage.Accountant. Admit is called before admitting
// ingest/search/suggestion work and returns an errs.Quota error (rendered
// as HTTP 429) when the caller's plan limit is already exhausted; Record
// increments the relevant counter (plus api_calls) after the work
// succeeds. A nil QuotaEnforcer disables quota checks entirely.
type QuotaEnforcer interface {
	Admit(ctx context.Context, user string, metric usage.Metric) error
	Record(ctx context.Context, user string, metric usage.Metric, delta int64)
}
