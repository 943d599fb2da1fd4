// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// NBNOrders counts order submission outcomes: complete, rejected, malformed, fault, skipped.
	NBNOrders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbn_orders_total",
			Help: "NBN order submissions by outcome",
		},
		[]string{"outcome"},
	)

	NBNDispatchCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbn_dispatch_cycles_total",
			Help: "Dispatch cycles by result",
		},
		[]string{"result"},
	)

	NBNDispatchedApplications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbn_dispatched_applications_total",
			Help: "Applications handed to the order task queue",
		},
	)

	NBNB2BRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbn_b2b_request_duration_seconds",
			Help:    "Latency of calls to the B2B order endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status_class"},
	)

	QueueDeadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_queue_dead_letters_total",
			Help: "Tasks that exhausted their attempts in the in-process queue",
		},
		[]string{"task_type"},
	)
)
