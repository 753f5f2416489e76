package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/SnehaChouksey/Acadlyst/errors"
)

// Queue coordinates access to the persistent job store. All status
// transitions go through the queue so the monotonic ordering
// (waiting -> active -> terminal) holds even with concurrent workers.
type Queue struct {
	store *Store
	mu    sync.RWMutex
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store: NewStore(db),
	}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.CreateJob(job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		err = errors.WithDetail(err, fmt.Sprintf("Source: %s", job.Source))
		return err
	}

	return nil
}

// Dequeue claims the oldest waiting job and marks it active.
// Returns nil when no work is available.
func (q *Queue) Dequeue() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.NextWaitingJob()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get waiting job")
	}
	if job == nil {
		return nil, nil
	}

	job.Start()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to mark job as active")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.GetJob(id)
}

// ListJobs returns jobs newest-first, optionally filtered by status
func (q *Queue) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.ListJobs(status, limit)
}

// ListJobsByUser returns a user's jobs, newest first
func (q *Queue) ListJobsByUser(userID string, limit int) ([]*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.ListJobsByUser(userID, limit)
}

// CompleteJob marks an active job as completed with its result document
func (q *Queue) CompleteJob(id string, result json.RawMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to complete job %s", id)
	}

	if job.Status.IsTerminal() {
		err := errors.Newf("job %s already terminal (status: %s)", id, job.Status)
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		return err
	}

	job.Complete(result)

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to complete job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		return err
	}

	return nil
}

// FailJob marks an active job as failed with an error message
func (q *Queue) FailJob(id string, jobErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to fail job %s", id)
	}

	if job.Status.IsTerminal() {
		err := errors.Newf("job %s already terminal (status: %s)", id, job.Status)
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		return err
	}

	job.Fail(jobErr)

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to mark job as failed")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		return err
	}

	return nil
}

// Stats reports queue depth per status
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// GetStats returns current queue depth per status
func (q *Queue) GetStats() (*Stats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := &Stats{}
	for _, pair := range []struct {
		status JobStatus
		dest   *int
	}{
		{JobStatusWaiting, &stats.Waiting},
		{JobStatusActive, &stats.Active},
		{JobStatusCompleted, &stats.Completed},
		{JobStatusFailed, &stats.Failed},
	} {
		count, err := q.store.CountByStatus(pair.status)
		if err != nil {
			return nil, err
		}
		*pair.dest = count
	}

	return stats, nil
}

// Store exposes the underlying store for startup recovery and cleanup
func (q *Queue) Store() *Store {
	return q.store
}
