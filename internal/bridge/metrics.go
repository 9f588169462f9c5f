package bridge

import "github.com/prometheus/client_golang/prometheus"

var (
	admissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_admissions_total",
			Help: "Total number of admitted chat requests.",
		},
		[]string{"mode"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_worker_events_total",
			Help: "Total number of worker events received.",
		},
		[]string{"type"},
	)

	correlationMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_correlation_misses_total",
			Help: "Worker events that could not be matched to a live request.",
		},
		[]string{"type"},
	)

	timeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_timeouts_total",
			Help: "Requests that hit a timeout, by timeout class.",
		},
		[]string{"class"},
	)

	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_completions_total",
			Help: "Terminal request outcomes.",
		},
		[]string{"outcome"},
	)

	liveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbridge_live_requests",
			Help: "Number of requests currently in flight.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbridge_task_queue_depth",
			Help: "Number of tasks waiting for the worker to poll.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		admissionsTotal,
		eventsTotal,
		correlationMissesTotal,
		timeoutsTotal,
		completionsTotal,
		liveRequests,
		queueDepth,
	)
}
