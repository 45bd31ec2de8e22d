package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the Prometheus collectors of the focus pipeline.
type Metrics struct {
	FocusGenerations *prometheus.CounterVec
	TasksScored      prometheus.Counter
	ScoringFailures  prometheus.Counter
	Activities       *prometheus.CounterVec
	TasksExtracted   prometheus.Counter
	IntakeFallbacks  prometheus.Counter
	JobUserFailures  *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// Outcome labels for FocusGenerations.
const (
	OutcomeCreated  = "created"
	OutcomeExists   = "exists"
	OutcomeEmpty    = "empty"
	OutcomeAbsorbed = "absorbed"
	OutcomeReplaced = "replaced"
)

// New registers the collectors on the default registry the first time it is
// called and returns the same instance afterwards.
//
// Metrics:
//   - clearfocus_focus_generations_total{outcome}
//   - clearfocus_tasks_scored_total
//   - clearfocus_scoring_failures_total
//   - clearfocus_activities_total{type}
//   - clearfocus_tasks_extracted_total
//   - clearfocus_intake_fallbacks_total
//   - clearfocus_job_user_failures_total{job}
//   - clearfocus_job_duration_seconds{job}
//   - clearfocus_http_requests_total{method,route,status}
//   - clearfocus_http_request_duration_seconds{method,route}
func New() *Metrics {
	once.Do(func() {
		global = &Metrics{
			FocusGenerations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clearfocus_focus_generations_total",
					Help: "Daily focus generation attempts by outcome",
				},
				[]string{"outcome"},
			),
			TasksScored: promauto.NewCounter(prometheus.CounterOpts{
				Name: "clearfocus_tasks_scored_total",
				Help: "Tasks whose neglect score was recomputed",
			}),
			ScoringFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "clearfocus_scoring_failures_total",
				Help: "Tasks whose neglect score could not be stored",
			}),
			Activities: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clearfocus_activities_total",
					Help: "Task interactions applied, by type",
				},
				[]string{"type"},
			),
			TasksExtracted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "clearfocus_tasks_extracted_total",
				Help: "Tasks created from dump entries",
			}),
			IntakeFallbacks: promauto.NewCounter(prometheus.CounterOpts{
				Name: "clearfocus_intake_fallbacks_total",
				Help: "Dump entries stored as a single fallback task after extraction failed",
			}),
			JobUserFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clearfocus_job_user_failures_total",
					Help: "Users skipped by a background job because of an error",
				},
				[]string{"job"},
			),
			JobDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "clearfocus_job_duration_seconds",
					Help:    "Wall time of background jobs",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
				},
				[]string{"job"},
			),
			HTTPRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clearfocus_http_requests_total",
					Help: "HTTP requests by method, route and status",
				},
				[]string{"method", "route", "status"},
			),
			HTTPDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "clearfocus_http_request_duration_seconds",
					Help:    "HTTP request latency",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		}
	})
	return global
}
