// Package observe exposes Prometheus metrics for the job pipelines.
package observe

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acadlyst_jobs_submitted_total",
		Help: "The total number of submitted jobs",
	}, []string{"handler"})

	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acadlyst_jobs_processed_total",
		Help: "The total number of processed jobs",
	}, []string{"handler", "status"}) // status: completed, failed

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acadlyst_job_duration_seconds",
		Help:    "Duration of job processing.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"handler"})

	jobsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "acadlyst_jobs_active",
		Help: "Jobs currently being processed",
	}, []string{"handler"})

	creditDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acadlyst_credit_denials_total",
		Help: "Requests refused because a credit allowance was exhausted",
	}, []string{"feature"})
)

// JobMetrics feeds the worker pool's instrumentation hooks into Prometheus.
// It satisfies queue.Metrics.
type JobMetrics struct{}

func (JobMetrics) JobStarted(handler string) {
	jobsActive.WithLabelValues(handler).Inc()
}

func (JobMetrics) JobCompleted(handler string, duration time.Duration) {
	jobsActive.WithLabelValues(handler).Dec()
	jobsProcessed.WithLabelValues(handler, "completed").Inc()
	jobDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

func (JobMetrics) JobFailed(handler string, duration time.Duration) {
	jobsActive.WithLabelValues(handler).Dec()
	jobsProcessed.WithLabelValues(handler, "failed").Inc()
	jobDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// JobRequeued undoes JobStarted for a job interrupted by shutdown. The job
// goes back to waiting, so no processed counter or duration is recorded.
func (JobMetrics) JobRequeued(handler string) {
	jobsActive.WithLabelValues(handler).Dec()
}

// JobSubmitted records one accepted job dispatch
func JobSubmitted(handler string) {
	jobsSubmitted.WithLabelValues(handler).Inc()
}

// CreditDenied records one request refused for lack of credits
func CreditDenied(feature string) {
	creditDenials.WithLabelValues(feature).Inc()
}

// Handler returns the /metrics scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
