package model

import (
	"encoding/json"
	"time"
)

// JobState is a position in the job state machine of §4.C:
//
//	PENDING → PROCESSING → (SUCCESS | FAILURE)
//	                    ↘ RETRY → PROCESSING  (up to 3 retries, exponential backoff)
type JobState string

const (
	JobPending    JobState = "PENDING"
	JobProcessing JobState = "PROCESSING"
	JobSuccess    JobState = "SUCCESS"
	JobFailure    JobState = "FAILURE"
	JobRetry      JobState = "RETRY"
)

// Job is a unit of asynchronous pipeline work, idempotent by ID.
type Job struct {
	ID              string          `json:"id"`
	Task            string          `json:"task"`
	State           JobState        `json:"state"`
	ProgressPercent int             `json:"progressPercent"`
	Message         string          `json:"message"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *JobError       `json:"error,omitempty"`
	Owner           string          `json:"owner"`
	Attempt         int             `json:"attempt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// JobError is the terminal-state error payload for a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
