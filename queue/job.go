// Package queue provides the durable asynchronous job system backing
// Acadlyst's processing endpoints. Jobs are persisted to SQLite, picked up
// by a polling worker pool, and observed by clients through status polling.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/SnehaChouksey/Acadlyst/errors"
)

// JobStatus represents the current state of a job.
//
// Transitions are monotonic: waiting -> active -> completed | failed.
// A terminal job never changes status again.
type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusWaiting, JobStatusActive, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses that no longer change
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one unit of asynchronous work.
//
// The queue is domain-agnostic: HandlerName selects which registered handler
// executes the job, and Payload carries handler-specific data the queue never
// inspects. Result is whatever the handler returned, stored verbatim so the
// status endpoint can merge it into its response.
type Job struct {
	ID          string          `json:"id"`
	HandlerName string          `json:"handler_name"` // "summarize", "quiz-generate", "rag-index"
	Payload     json.RawMessage `json:"payload,omitempty"`
	Source      string          `json:"source"`  // original filename or URL, for logging and results
	UserID      string          `json:"user_id"` // requesting user, for job listings
	Status      JobStatus       `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewJob creates a new waiting job for the named handler.
func NewJob(handlerName, source, userID string, payload json.RawMessage) (*Job, error) {
	if handlerName == "" {
		return nil, errors.New("handlerName cannot be empty")
	}

	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		HandlerName: handlerName,
		Payload:     payload,
		Source:      source,
		UserID:      userID,
		Status:      JobStatusWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Start marks the job as active
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusActive
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete marks the job as completed with its result document
func (j *Job) Complete(result json.RawMessage) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Result = result
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job as failed with an error message
func (j *Job) Fail(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}
