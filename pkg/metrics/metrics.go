package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Copy pipeline (CP) metrics.

	CopyTasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filemgr_copy_tasks_total",
			Help: "Number of copy tasks that have entered each state",
		},
		[]string{"state"},
	)

	CopyBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemgr_copy_bytes_total",
			Help: "Total bytes copied by algorithm",
		},
		[]string{"algorithm"},
	)

	CopyTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filemgr_copy_task_duration_seconds",
			Help:    "Time from task start to a terminal state, by algorithm",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"algorithm"},
	)

	CopyFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filemgr_copy_range_fallbacks_total",
			Help: "Total number of times the kernel range-copy path fell back to chunked copy",
		},
	)

	// Master/worker dispatcher (MW) metrics.

	DispatcherSlavesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filemgr_dispatcher_slaves_total",
			Help: "Current number of registered slaves by health state",
		},
		[]string{"healthy"},
	)

	DispatcherTasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filemgr_dispatcher_tasks_pending",
			Help: "Current number of tasks waiting in the pending queue",
		},
	)

	DispatcherTasksAssigned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filemgr_dispatcher_tasks_assigned",
			Help: "Current number of tasks assigned to a slave",
		},
	)

	DispatcherTasksRetried = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filemgr_dispatcher_tasks_retried_total",
			Help: "Total number of task re-enqueues after a FAILED report",
		},
	)

	DispatcherTasksAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filemgr_dispatcher_tasks_abandoned_total",
			Help: "Total number of tasks dropped after exceeding maxRetries",
		},
	)

	DispatcherAssignmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filemgr_dispatcher_assignment_duration_seconds",
			Help:    "Time taken to pick a slave for a task",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scheduled worker framework (SWF) metrics.

	SWFWorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filemgr_swf_workers_total",
			Help: "Number of SWF workers added to a pool (state running) or failed at launch (state failed), by protocol",
		},
		[]string{"protocol", "state"},
	)

	SWFJobsRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filemgr_swf_jobs_running",
			Help: "Current number of running jobs by protocol",
		},
		[]string{"protocol"},
	)

	SWFJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filemgr_swf_job_duration_seconds",
			Help:    "Job duration by protocol and command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"protocol", "command"},
	)

	SWFWorkersLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemgr_swf_workers_launched_total",
			Help: "Total number of SWF worker processes launched, by protocol",
		},
		[]string{"protocol"},
	)

	SWFWorkerDeaths = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemgr_swf_worker_deaths_total",
			Help: "Total number of SWF workers that died mid-job, by protocol",
		},
		[]string{"protocol"},
	)
)

func init() {
	prometheus.MustRegister(
		CopyTasksTotal,
		CopyBytesTotal,
		CopyTaskDuration,
		CopyFallbacksTotal,
		DispatcherSlavesTotal,
		DispatcherTasksPending,
		DispatcherTasksAssigned,
		DispatcherTasksRetried,
		DispatcherTasksAbandoned,
		DispatcherAssignmentDuration,
		SWFWorkersTotal,
		SWFJobsRunning,
		SWFJobDuration,
		SWFWorkersLaunched,
		SWFWorkerDeaths,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
