package server

import (
	"encoding/json"
	"net/http"

	"github.com/SnehaChouksey/Acadlyst/queue"
)

const (
	// Default and max limits for job listing queries
	defaultJobLimit = 50
	maxJobLimit     = 200
)

// handleJobStatus serves GET /api/jobs/{id}: the client polling contract.
//
// Non-terminal jobs report only their status. A completed job's result
// fields are merged beside the status so the client needs no second
// fetch. A failed job reports its error with HTTP 200; the state machine
// lives in the body, not the status line.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if _, ok := requireUser(w, r); !ok {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	jobID := parts[0]

	job, err := s.queue.GetJob(jobID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, statusBody(job))
}

func statusBody(job *queue.Job) map[string]interface{} {
	body := map[string]interface{}{"status": string(job.Status)}

	switch job.Status {
	case queue.JobStatusCompleted:
		if len(job.Result) > 0 {
			var fields map[string]interface{}
			if err := json.Unmarshal(job.Result, &fields); err == nil {
				for k, v := range fields {
					if k != "status" {
						body[k] = v
					}
				}
			}
		}
	case queue.JobStatusFailed:
		body["error"] = job.Error
	}
	return body
}

// handleListJobs serves GET /api/jobs: the caller's recent jobs plus
// queue-wide stats.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)

	jobs, err := s.queue.ListJobsByUser(userID, limit)
	if err != nil {
		handleError(w, s.logger, err, "failed to list jobs")
		return
	}

	stats, err := s.queue.GetStats()
	if err != nil {
		handleError(w, s.logger, err, "failed to read queue stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
		"queue": stats,
	})
}
