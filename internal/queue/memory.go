package queue

import (
	"context"
	"sync"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// MemoryStore is an in-process Store, used by tests and by cmd/worker when
// no database DSN is configured.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: map[string]*model.Job{}}
}

func (s *MemoryStore) Insert(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// MemoryBroker is an in-process channel-backed Broker, used by tests and as
// the queue DSN="memory" fallback (§6 config: "queue DSN").
type MemoryBroker struct {
	ch chan string
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	return &MemoryBroker{ch: make(chan string, buffer)}
}

func (b *MemoryBroker) Publish(ctx context.Context, jobID string) error {
	select {
	case b.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context) (<-chan string, error) {
	return b.ch, nil
}
