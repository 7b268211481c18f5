package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

func TestEnqueueAndStatus(t *testing.T) {
	store := NewMemoryStore()
	broker := NewMemoryBroker(4)
	q := New(store, broker)

	id, err := q.Enqueue(context.Background(), Payload{Task: "ingest", Owner: "alice"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Status(context.Background(), id, "alice")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if job.State != model.JobPending {
		t.Fatalf("expected PENDING, got %s", job.State)
	}

	if _, err := q.Status(context.Background(), id, "mallory"); err == nil {
		t.Fatal("expected forbidden error for mismatched owner")
	} else if e, ok := errs.As(err); !ok || e.Kind != errs.KindForbidden {
		t.Fatalf("expected forbidden kind, got %v", err)
	}
}

func TestPoolProcessesJobToSuccess(t *testing.T) {
	store := NewMemoryStore()
	broker := NewMemoryBroker(4)
	q := New(store, broker)
	registry := NewRegistry()
	registry.Register("echo", func(ctx context.Context, job *model.Job, args json.RawMessage, report ProgressFunc, cancel CancelFunc) (json.RawMessage, error) {
		report(50, "halfway")
		return json.RawMessage(`{"ok":true}`), nil
	})

	pool := NewPool(store, broker, registry, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pool.Run(ctx)

	id, err := q.Enqueue(ctx, Payload{Task: "echo", Owner: "alice"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := q.Status(ctx, id, "alice")
		if job.State == model.JobSuccess {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach SUCCESS in time")
}

func TestPoolFailsPermanentError(t *testing.T) {
	store := NewMemoryStore()
	broker := NewMemoryBroker(4)
	q := New(store, broker)
	registry := NewRegistry()
	registry.Register("bad", func(ctx context.Context, job *model.Job, args json.RawMessage, report ProgressFunc, cancel CancelFunc) (json.RawMessage, error) {
		return nil, errs.Extraction(".zip", "malformed archive", nil)
	})

	pool := NewPool(store, broker, registry, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pool.Run(ctx)

	id, err := q.Enqueue(ctx, Payload{Task: "bad", Owner: "alice"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := q.Status(ctx, id, "alice")
		if job.State == model.JobFailure {
			if job.Error == nil || job.Error.Kind != string(errs.KindExtraction) {
				t.Fatalf("expected extraction error kind, got %+v", job.Error)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach FAILURE in time")
}
