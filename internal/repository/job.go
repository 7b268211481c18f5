package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// JobRepo persists model.Job rows, implementing internal/queue.Store so the
// job broker survives process restarts (§4.C).
type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Insert(ctx context.Context, job *model.Job) error {
	errJSON, err := marshalJobError(job.Error)
	if err != nil {
		return fmt.Errorf("repository.JobRepo.Insert: marshal error: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, task, state, progress_percent, message, payload, result, error,
			owner, attempt, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.Task, string(job.State), job.ProgressPercent, job.Message,
		rawOrNil(job.Payload), rawOrNil(job.Result), errJSON,
		job.Owner, job.Attempt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.JobRepo.Insert: %w", err)
	}
	return nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	row := r.pool.QueryRow(ctx, jobSelectQuery+` WHERE id = $1`, id)
	job, err := scanJobRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository.JobRepo.Get: %w", err)
	}
	return job, nil
}

func (r *JobRepo) Update(ctx context.Context, job *model.Job) error {
	errJSON, err := marshalJobError(job.Error)
	if err != nil {
		return fmt.Errorf("repository.JobRepo.Update: marshal error: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE jobs SET
			state = $1, progress_percent = $2, message = $3, result = $4,
			error = $5, attempt = $6, updated_at = $7
		WHERE id = $8`,
		string(job.State), job.ProgressPercent, job.Message, rawOrNil(job.Result),
		errJSON, job.Attempt, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("repository.JobRepo.Update: %w", err)
	}
	return nil
}

func (r *JobRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.JobRepo.Delete: %w", err)
	}
	return nil
}

const jobSelectQuery = `
	SELECT id, task, state, progress_percent, message, payload, result, error,
		owner, attempt, created_at, updated_at
	FROM jobs`

func scanJobRow(row pgx.Row) (*model.Job, error) {
	var job model.Job
	var state string
	var payload, result, errJSON []byte

	err := row.Scan(
		&job.ID, &job.Task, &state, &job.ProgressPercent, &job.Message,
		&payload, &result, &errJSON,
		&job.Owner, &job.Attempt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.State = model.JobState(state)
	job.Payload = json.RawMessage(payload)
	job.Result = json.RawMessage(result)
	if len(errJSON) > 0 {
		var jerr model.JobError
		if err := json.Unmarshal(errJSON, &jerr); err != nil {
			return nil, fmt.Errorf("scan job: unmarshal error: %w", err)
		}
		job.Error = &jerr
	}
	return &job, nil
}

func marshalJobError(e *model.JobError) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

func rawOrNil(v json.RawMessage) []byte {
	if v == nil {
		return nil
	}
	return []byte(v)
}
