package concept

import (
	"context"
	"log/slog"
	"sync"
)

// FeedbackStore records low-confidence extractions for later user
// validation, and accepted/rejected verdicts once a user reviews them
// (§4.F "Agentic learning hook"). Flag and Record MUST NOT block or fail
// ingest — callers only check LowConfidence as an advisory signal.
type FeedbackStore interface {
	Flag(ctx context.Context, documentID int64, result Result)
	Record(ctx context.Context, documentID int64, name string, accepted bool)
	Examples(ctx context.Context, limit int) []FeedbackExample
}

// FeedbackExample is a past accept/reject verdict, as returned by
// Examples. Extractor.Extract does not add these to its prompts.
type FeedbackExample struct {
	DocumentID int64
	Name       string
	Accepted   bool
}

// NoopFeedbackStore discards everything; used when ENABLE_AGENTIC_LEARNING
// is unset so the hook stays entirely out of band of the ingest path.
type NoopFeedbackStore struct{}

func (NoopFeedbackStore) Flag(context.Context, int64, Result)             {}
func (NoopFeedbackStore) Record(context.Context, int64, string, bool)     {}
func (NoopFeedbackStore) Examples(context.Context, int) []FeedbackExample { return nil }

// InMemoryFeedbackStore is the enabled implementation: an in-process log of
// flagged extractions and review verdicts. A real deployment would persist
// this in internal/repository; kept in-process here since the hook is
// explicitly "never consulted by the synchronous ingest path" (§3).
type InMemoryFeedbackStore struct {
	mu        sync.Mutex
	flagged   []flaggedExtraction
	verdicts  []FeedbackExample
	log       *slog.Logger
}

type flaggedExtraction struct {
	DocumentID int64
	Result     Result
}

func NewInMemoryFeedbackStore(log *slog.Logger) *InMemoryFeedbackStore {
	if log == nil {
		log = slog.Default()
	}
	return &InMemoryFeedbackStore{log: log}
}

func (s *InMemoryFeedbackStore) Flag(ctx context.Context, documentID int64, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged = append(s.flagged, flaggedExtraction{DocumentID: documentID, Result: result})
	s.log.Info("concept extraction flagged for review", "document_id", documentID, "concept_count", len(result.Concepts))
}

func (s *InMemoryFeedbackStore) Record(ctx context.Context, documentID int64, name string, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts = append(s.verdicts, FeedbackExample{DocumentID: documentID, Name: name, Accepted: accepted})
}

func (s *InMemoryFeedbackStore) Examples(ctx context.Context, limit int) []FeedbackExample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.verdicts) {
		limit = len(s.verdicts)
	}
	out := make([]FeedbackExample, limit)
	copy(out, s.verdicts[len(s.verdicts)-limit:])
	return out
}
