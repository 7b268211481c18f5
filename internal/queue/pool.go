package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// Registry maps task names to their handler, mirroring the teacher's
// job-type dispatch pattern.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(task string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[task] = h
}

func (r *Registry) get(task string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[task]
	return h, ok
}

// cancellationRegistry tracks job IDs flagged for cooperative cancellation.
// Process-local: a production deployment backs this with a shared store key
// if workers run on more than one process, but a single worker pool
// consulting its own memory is sufficient for the cooperative-check
// contract described in §4.C.
type cancellationRegistry struct {
	mu      sync.Mutex
	flagged map[string]bool
}

func (c *cancellationRegistry) mark(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flagged[id] = true
}

func (c *cancellationRegistry) check(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flagged[id]
}

func (c *cancellationRegistry) clear(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flagged, id)
}

var cancelRegistry = &cancellationRegistry{flagged: map[string]bool{}}

// backoffDelays is the exponential schedule for transient-failure retries
// (§4.C: "up to N=3 retries, exponential backoff"), in the same shape as
// the oracle client's withRetry schedule.
var backoffDelays = []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}

// Pool is a fixed-size worker pool draining job IDs from a Broker
// subscription and dispatching them to registered Handlers.
type Pool struct {
	store      Store
	broker     Broker
	registry   *Registry
	concurrency int
	log        *slog.Logger
}

func NewPool(store Store, broker Broker, registry *Registry, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{store: store, broker: broker, registry: registry, concurrency: concurrency, log: slog.Default()}
}

// Run subscribes to the broker and processes jobs until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	jobIDs, err := p.broker.Subscribe(ctx)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case id, ok := <-jobIDs:
			if !ok {
				wg.Wait()
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				defer func() { <-sem }()
				p.process(ctx, id)
			}(id)
		}
	}
}

func (p *Pool) process(ctx context.Context, id string) {
	job, err := p.store.Get(ctx, id)
	if err != nil || job == nil {
		p.log.Warn("job not found for dispatch", "job_id", id, "error", err)
		return
	}
	defer cancelRegistry.clear(id)

	handler, ok := p.registry.get(job.Task)
	if !ok {
		p.fail(ctx, job, errs.New(errs.KindValidation, "no handler registered for task"))
		return
	}

	job.State = model.JobProcessing
	job.Attempt++
	job.UpdatedAt = timeNow()
	_ = p.store.Update(ctx, job)

	report := func(percent int, message string) {
		job.ProgressPercent = percent
		job.Message = message
		job.UpdatedAt = timeNow()
		_ = p.store.Update(ctx, job)
	}
	cancel := func() bool { return cancelRegistry.check(id) }

	result, err := p.runWithPanicGuard(ctx, job, handler, report, cancel)
	if err != nil {
		if errors.Is(err, errCancelled) {
			job.State = model.JobFailure
			job.Error = &model.JobError{Kind: string(errs.KindCancelled), Message: "job cancelled"}
			job.UpdatedAt = timeNow()
			_ = p.store.Update(ctx, job)
			return
		}
		p.classifyAndRetry(ctx, job, err)
		return
	}

	job.State = model.JobSuccess
	job.Result = result
	job.ProgressPercent = 100
	job.UpdatedAt = timeNow()
	_ = p.store.Update(ctx, job)
}

var errCancelled = errs.Cancelled("job cancelled before completion")

func (p *Pool) runWithPanicGuard(ctx context.Context, job *model.Job, h Handler, report ProgressFunc, cancel CancelFunc) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job handler panicked", "job_id", job.ID, "task", job.Task, "panic", r)
			err = errs.Internal("", nil)
		}
	}()
	if cancel() {
		return nil, errCancelled
	}
	return h(ctx, job, job.Payload, report, cancel)
}

// classifyAndRetry applies §4.C's failure classification: transient errors
// (oracle_unavailable, internal) retry with backoff up to maxAttempts;
// permanent errors (validation, extraction, oracle_schema) fail immediately.
func (p *Pool) classifyAndRetry(ctx context.Context, job *model.Job, err error) {
	e, _ := errs.As(err)
	transient := e == nil || e.Kind == errs.KindOracleUnavailable || e.Kind == errs.KindInternal

	if !transient || job.Attempt >= maxAttempts {
		p.fail(ctx, job, err)
		return
	}

	job.State = model.JobRetry
	job.UpdatedAt = timeNow()
	_ = p.store.Update(ctx, job)

	delay := backoffDelays[min(job.Attempt-1, len(backoffDelays)-1)]
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			job.State = model.JobPending
			_ = p.store.Update(ctx, job)
			_ = p.broker.Publish(ctx, job.ID)
		}
	}()
}

func (p *Pool) fail(ctx context.Context, job *model.Job, err error) {
	kind := errs.KindInternal
	if e, ok := errs.As(err); ok {
		kind = e.Kind
	}
	job.State = model.JobFailure
	job.Error = &model.JobError{Kind: string(kind), Message: err.Error()}
	job.UpdatedAt = timeNow()
	_ = p.store.Update(ctx, job)
}
