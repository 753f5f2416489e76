package queue

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SnehaChouksey/Acadlyst/db"
	"github.com/SnehaChouksey/Acadlyst/errors"
)

// Metrics receives worker pool events. Implementations must be safe for
// concurrent use. A nil Metrics disables instrumentation.
type Metrics interface {
	JobStarted(handlerName string)
	JobCompleted(handlerName string, duration time.Duration)
	JobFailed(handlerName string, duration time.Duration)
	JobRequeued(handlerName string)
}

// WorkerPool manages a pool of workers that poll the queue for waiting jobs
type WorkerPool struct {
	queue         *Queue
	poolConfig    WorkerPoolConfig
	workers       int
	parentCtx     context.Context // parent context from which worker context is derived
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	executor      JobExecutor
	metrics       Metrics
	activeWorkers int
	logger        *zap.SugaredLogger
	mu            sync.Mutex
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           `json:"workers"`       // Number of concurrent workers
	PollInterval time.Duration `json:"poll_interval"` // How often each worker checks for jobs
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      10,
		PollInterval: 2 * time.Second,
	}
}

// NewWorkerPool creates a worker pool backed by its own queue over the given
// database. Callers must register handlers via Registry() before Start().
//
// The parent context controls the pool's lifetime: cancelling it stops the
// workers just as Stop() does.
func NewWorkerPool(ctx context.Context, database *sql.DB, poolCfg WorkerPoolConfig, logger *zap.SugaredLogger, metrics Metrics) *WorkerPool {
	if poolCfg.Workers <= 0 {
		poolCfg.Workers = DefaultWorkerPoolConfig().Workers
	}
	if poolCfg.PollInterval <= 0 {
		poolCfg.PollInterval = DefaultWorkerPoolConfig().PollInterval
	}

	workerCtx, cancel := context.WithCancel(ctx)
	registry := NewHandlerRegistry()

	return &WorkerPool{
		queue:      NewQueue(database),
		poolConfig: poolCfg,
		workers:    poolCfg.Workers,
		parentCtx:  ctx,
		ctx:        workerCtx,
		cancel:     cancel,
		executor:   NewRegistryExecutor(registry),
		metrics:    metrics,
		logger:     logger.Named("queue"),
	}
}

// Start begins processing jobs. Jobs left active by a previous crash are
// requeued before the workers spin up.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	// If the pool was stopped and restarted, derive a fresh context before
	// spawning workers.
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Debugw("Recreated worker context after previous shutdown")
	default:
	}
	wp.mu.Unlock()

	if requeued, err := wp.queue.Store().RequeueActiveJobs(); err != nil {
		wp.logger.Warnw("Failed to requeue orphaned jobs", "error", err)
		// Continue starting workers even if recovery fails
	} else if requeued > 0 {
		wp.logger.Infow("Requeued orphaned jobs from previous run", "count", requeued)
	}

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.logger.Infow("Worker pool started",
		"workers", wp.workers,
		"poll_interval", wp.poolConfig.PollInterval,
	)
}

// Stop gracefully stops the worker pool. In-flight jobs get a 30-second
// window to finish; after that Stop returns and leaves them to be requeued
// on the next Start.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	timeout := 30 * time.Second
	select {
	case <-done:
		wp.logger.Infow("Worker pool stopped, all workers exited cleanly")
	case <-time.After(timeout):
		wp.logger.Warnw("Worker pool stop timeout, workers may still be finishing", "timeout", timeout)
	}
}

// worker polls the queue on a ticker and processes one job per tick
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	ticker := time.NewTicker(wp.poolConfig.PollInterval)
	defer ticker.Stop()

	// Error backoff state
	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
			if err := wp.processNextJob(); err != nil {
				select {
				case <-wp.ctx.Done():
					// Shutting down, exit silently
					return
				default:
				}
				if errors.Is(err, sql.ErrConnDone) || db.IsDatabaseClosed(err) {
					// Database closed during shutdown, exit silently
					return
				}

				errorCount++
				wp.logger.Errorw("Worker error processing job",
					"worker_id", id,
					"error", err,
					"consecutive_errors", errorCount)

				if errorCount >= maxConsecutiveErrors {
					wp.logger.Warnw("Worker backing off due to consecutive errors",
						"worker_id", id,
						"backoff", backoffDuration,
						"consecutive_errors", errorCount)
					time.Sleep(backoffDuration)
					backoffDuration = min(backoffDuration*2, maxBackoff)
				}
			} else {
				if errorCount > 0 {
					wp.logger.Infow("Worker recovered from errors",
						"worker_id", id,
						"previous_error_count", errorCount)
				}
				errorCount = 0
				backoffDuration = time.Second
			}
		}
	}
}

// processNextJob claims the next waiting job and executes it through the
// registered handler. Handler errors fail the job permanently.
func (wp *WorkerPool) processNextJob() error {
	select {
	case <-wp.ctx.Done():
		return nil // graceful shutdown, stop claiming work
	default:
	}

	job, err := wp.queue.Dequeue()
	if err != nil {
		return errors.Wrap(err, "failed to dequeue job")
	}
	if job == nil {
		return nil // no jobs available
	}

	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	if wp.metrics != nil {
		wp.metrics.JobStarted(job.HandlerName)
	}
	started := time.Now()

	result, err := wp.executor.Execute(wp.ctx, job)
	if err != nil {
		select {
		case <-wp.ctx.Done():
			// Cancelled mid-execution: put the job back rather than failing it,
			// the next Start will pick it up.
			wp.logger.Warnw("Job interrupted by shutdown, requeuing", "job_id", job.ID)
			job.Status = JobStatusWaiting
			job.StartedAt = nil
			job.UpdatedAt = time.Now()
			if updateErr := wp.queue.store.UpdateJob(job); updateErr != nil {
				wp.logger.Errorw("Failed to requeue interrupted job", "job_id", job.ID, "error", updateErr)
			}
			// The job is waiting again, not active: balance JobStarted
			if wp.metrics != nil {
				wp.metrics.JobRequeued(job.HandlerName)
			}
			return nil
		default:
		}

		if wp.metrics != nil {
			wp.metrics.JobFailed(job.HandlerName, time.Since(started))
		}
		wp.logger.Warnw("Job failed",
			"job_id", job.ID,
			"handler", job.HandlerName,
			"duration", time.Since(started),
			"error", err)
		return wp.queue.FailJob(job.ID, err)
	}

	if wp.metrics != nil {
		wp.metrics.JobCompleted(job.HandlerName, time.Since(started))
	}
	wp.logger.Infow("Job completed",
		"job_id", job.ID,
		"handler", job.HandlerName,
		"duration", time.Since(started))
	return wp.queue.CompleteJob(job.ID, result)
}

// GetQueue returns the job queue (useful for enqueuing jobs)
func (wp *WorkerPool) GetQueue() *Queue {
	return wp.queue
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// ActiveWorkers returns how many workers are currently executing a job
func (wp *WorkerPool) ActiveWorkers() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.activeWorkers
}

// Registry returns the handler registry for registering job handlers.
// Handlers must be registered before Start().
func (wp *WorkerPool) Registry() *HandlerRegistry {
	if registryExec, ok := wp.executor.(*RegistryExecutor); ok {
		return registryExec.registry
	}
	return nil
}
