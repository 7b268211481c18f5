package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/suggest"
	"github.com/connexus-ai/ragbox-backend/internal/usage"
)

type stubKBBuilder struct {
	kb  suggest.KnowledgeBank
	err error
}

func (s *stubKBBuilder) BuildSummary(ctx context.Context, kbID string) (suggest.KnowledgeBank, error) {
	return s.kb, s.err
}

type stubSuggester struct {
	seeds   []model.BuildIdeaSeed
	err     error
	gotMax  int
}

func (s *stubSuggester) Suggest(ctx context.Context, kb suggest.KnowledgeBank, maxSuggestions int) ([]model.BuildIdeaSeed, error) {
	s.gotMax = maxSuggestions
	return s.seeds, s.err
}

func TestSuggest_ReturnsSeeds(t *testing.T) {
	suggester := &stubSuggester{seeds: []model.BuildIdeaSeed{{Title: "Build a CLI"}}}
	deps := SuggestDeps{Builder: &stubKBBuilder{}, Suggester: suggester}

	req := httptest.NewRequest(http.MethodGet, "/api/suggestions?kbId=kb-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	Suggest(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if suggester.gotMax != defaultMaxSuggestions {
		t.Errorf("max = %d, want default %d", suggester.gotMax, defaultMaxSuggestions)
	}
}

func TestSuggest_CachesByKBIDIgnoringMax(t *testing.T) {
	suggester := &stubSuggester{seeds: []model.BuildIdeaSeed{{Title: "Build a CLI"}, {Title: "Build a bot"}}}
	builder := &stubKBBuilder{}
	fc := newFakeResultCache()
	deps := SuggestDeps{Builder: builder, Suggester: suggester, Cache: fc}

	req := httptest.NewRequest(http.MethodGet, "/api/suggestions?kbId=kb-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	Suggest(deps).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || fc.sets != 1 {
		t.Fatalf("status=%d sets=%d", rec.Code, fc.sets)
	}

	suggester.gotMax = 0
	req2 := httptest.NewRequest(http.MethodGet, "/api/suggestions?kbId=kb-1&max=1", nil)
	req2 = req2.WithContext(middleware.WithUserID(req2.Context(), "user-1"))
	rec2 := httptest.NewRecorder()
	Suggest(deps).ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d", rec2.Code)
	}
	if suggester.gotMax != 0 {
		t.Error("expected second request to be served from cache without calling the suggester")
	}
}

func TestSuggest_QuotaExhaustedSkipsBuilder(t *testing.T) {
	builder := &stubKBBuilder{}
	quota := &stubQuotaEnforcer{admitErr: errs.Quota(5, 5, "2026-08-01T00:00:00Z")}
	deps := SuggestDeps{Builder: builder, Suggester: &stubSuggester{}, Quota: quota}

	req := httptest.NewRequest(http.MethodGet, "/api/suggestions?kbId=kb-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	Suggest(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429, body=%s", rec.Code, rec.Body.String())
	}
}

func TestSuggest_RecordsUsageOnSuccess(t *testing.T) {
	quota := &stubQuotaEnforcer{}
	deps := SuggestDeps{Builder: &stubKBBuilder{}, Suggester: &stubSuggester{}, Quota: quota}

	req := httptest.NewRequest(http.MethodGet, "/api/suggestions?kbId=kb-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	Suggest(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if len(quota.recorded) != 1 || quota.recorded[0] != usage.MetricBuildSuggestions {
		t.Fatalf("expected build_suggestions to be recorded once, got %v", quota.recorded)
	}
}

func TestSuggest_PropagatesInsufficientKnowledgeError(t *testing.T) {
	suggester := &stubSuggester{err: errs.Validation("clusters", "not enough knowledge yet")}
	deps := SuggestDeps{Builder: &stubKBBuilder{}, Suggester: suggester}

	req := httptest.NewRequest(http.MethodGet, "/api/suggestions?kbId=kb-1", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	Suggest(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSuggest_RequiresKBID(t *testing.T) {
	deps := SuggestDeps{Builder: &stubKBBuilder{}, Suggester: &stubSuggester{}}

	req := httptest.NewRequest(http.MethodGet, "/api/suggestions", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	Suggest(deps).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
