package queue

import (
	"database/sql"
	"time"

	"github.com/SnehaChouksey/Acadlyst/errors"
)

// Store handles persistence of async jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO jobs (
			id, handler_name, source, user_id, status,
			payload, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	handlerName := sql.NullString{String: job.HandlerName, Valid: job.HandlerName != ""}

	// The payload column is NOT NULL; a payload-less job stores "".
	_, err := s.db.Exec(query,
		job.ID,
		handlerName,
		job.Source,
		job.UserID,
		job.Status,
		string(job.Payload),
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	return nil
}

// GetJob retrieves a job by ID. Returns errors.ErrNotFound for unknown IDs.
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM jobs WHERE id = ?`

	var job Job
	args := GetJobScanArgs()
	targets := GetJobScanTargets(&job, args)

	err := s.db.QueryRow(query, id).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}

	if err := ProcessJobScanArgs(&job, args); err != nil {
		return nil, err
	}

	return &job, nil
}

// UpdateJob updates an existing job in the database
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE jobs
		SET handler_name = ?,
		    payload = ?,
		    status = ?,
		    result = ?,
		    error = ?,
		    started_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	handlerName := sql.NullString{String: job.HandlerName, Valid: job.HandlerName != ""}
	result := sql.NullString{String: string(job.Result), Valid: len(job.Result) > 0}

	_, err := s.db.Exec(query,
		handlerName,
		string(job.Payload),
		job.Status,
		result,
		job.Error,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}

	return nil
}

// NextWaitingJob returns the oldest waiting job, or nil when the queue is empty.
// Dequeue order is FIFO by creation time.
func (s *Store) NextWaitingJob() (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + `
		FROM jobs
		WHERE status = 'waiting'
		ORDER BY created_at ASC
		LIMIT 1`

	var job Job
	args := GetJobScanArgs()
	targets := GetJobScanTargets(&job, args)

	err := s.db.QueryRow(query).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get next waiting job")
	}

	if err := ProcessJobScanArgs(&job, args); err != nil {
		return nil, err
	}

	return &job, nil
}

// ListJobs returns jobs newest-first, optionally filtered by status
func (s *Store) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + StandardJobSelectColumns() + ` FROM jobs`
	if status != nil {
		query = baseQuery + ` WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = baseQuery + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "jobs")
}

// ListJobsByUser returns a user's jobs, newest first
func (s *Store) ListJobsByUser(userID string, limit int) ([]*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + `
		FROM jobs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs by user")
	}
	defer rows.Close()

	return scanJobs(rows, "user jobs")
}

// scanJobs is a helper that scans multiple jobs from query rows
func scanJobs(rows *sql.Rows, context string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := ScanJobFromRows(rows, &job); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return jobs, nil
}

// CountByStatus returns the number of jobs with the given status
func (s *Store) CountByStatus(status JobStatus) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count %s jobs", status)
	}
	return count, nil
}

// RequeueActiveJobs moves all active jobs back to waiting. Called on startup
// to recover jobs orphaned by a crash mid-execution. Returns the number of
// jobs requeued.
func (s *Store) RequeueActiveJobs() (int, error) {
	result, err := s.db.Exec(`
		UPDATE jobs
		SET status = 'waiting', started_at = NULL, updated_at = ?
		WHERE status = 'active'
	`, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to requeue active jobs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}

// CleanupOldJobs removes completed/failed jobs older than the specified duration
func (s *Store) CleanupOldJobs(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.Exec(`
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed')
		  AND updated_at < ?
	`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}
