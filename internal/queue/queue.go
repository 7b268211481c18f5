// Package queue implements the job queue and worker pool of spec §4.C: a
// durable queue of idempotent jobs consumed by a parallel worker pool, with
// progress reporting, cooperative cancellation, and classified retry.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

const maxAttempts = 4 // one initial run plus up to 3 retries

// Store is the durable job record store. Repository (internal/repository)
// is the production implementation; tests use an in-memory fake.
type Store interface {
	Insert(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	Delete(ctx context.Context, id string) error
}

// Broker delivers job IDs to workers. The production backend is Cloud
// Pub/Sub (internal/queue/pubsub.go); tests use the in-memory channel
// broker.
type Broker interface {
	Publish(ctx context.Context, jobID string) error
	Subscribe(ctx context.Context) (<-chan string, error)
}

// Payload is the producer-supplied job input: task name and arbitrary
// JSON-encodable arguments.
type Payload struct {
	Task  string
	Owner string
	Args  json.RawMessage
}

// Handler executes one job to completion, reporting progress via
// reportProgress and checking cancel for cooperative cancellation at stage
// boundaries (§4.C: "a PROCESSING job has a cooperative cancellation token
// checked at each stage boundary").
type Handler func(ctx context.Context, job *model.Job, args json.RawMessage, report ProgressFunc, cancel CancelFunc) (result json.RawMessage, err error)

// ProgressFunc reports {percent, message} at a pipeline stage boundary.
type ProgressFunc func(percent int, message string)

// CancelFunc reports whether the job has been cancelled by request.
type CancelFunc func() bool

// Queue enqueues jobs and serves status lookups. It does not run workers
// itself — see Pool.
type Queue struct {
	store  Store
	broker Broker
}

func New(store Store, broker Broker) *Queue {
	return &Queue{store: store, broker: broker}
}

// Enqueue creates a PENDING job record and publishes it to the broker,
// returning immediately with the job ID (§4.C target: p99 ≤ 1s).
func (q *Queue) Enqueue(ctx context.Context, p Payload) (string, error) {
	now := timeNow()
	job := &model.Job{
		ID:        uuid.NewString(),
		Task:      p.Task,
		State:     model.JobPending,
		Owner:     p.Owner,
		Payload:   p.Args,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.store.Insert(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue: insert job: %w", err)
	}
	if err := q.broker.Publish(ctx, job.ID); err != nil {
		return "", fmt.Errorf("enqueue: publish job: %w", err)
	}
	return job.ID, nil
}

// Status returns a job's current state, verifying ownership (§4.C:
// "a worker MUST verify job-owner matches token-user before returning
// details").
func (q *Queue) Status(ctx context.Context, id, requestedBy string) (*model.Job, error) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errs.NotFound("job", id)
	}
	if job.Owner != requestedBy {
		return nil, errs.New(errs.KindForbidden, "job does not belong to requester")
	}
	return job, nil
}

// Cancel requests cancellation. A PENDING job is removed outright; a
// PROCESSING job is flagged so its cooperative cancel token trips at the
// next stage boundary (§4.C).
func (q *Queue) Cancel(ctx context.Context, id, requestedBy string) error {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return errs.NotFound("job", id)
	}
	if job.Owner != requestedBy {
		return errs.New(errs.KindForbidden, "job does not belong to requester")
	}

	switch job.State {
	case model.JobPending:
		return q.store.Delete(ctx, id)
	case model.JobProcessing, model.JobRetry:
		cancelRegistry.mark(id)
		return nil
	default:
		return errs.Conflict("job has already reached a terminal state")
	}
}

var timeNow = time.Now
