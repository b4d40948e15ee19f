package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulletin_runs_total",
			Help: "Total number of extraction runs by final status",
		},
		[]string{"source", "status"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulletin_run_duration_seconds",
			Help:    "Extraction run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulletin_events_total",
			Help: "Events processed by classification (new, update, duplicate, dropped, filtered)",
		},
		[]string{"source", "classification"},
	)

	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulletin_llm_requests_total",
			Help: "Total number of LLM requests",
		},
		[]string{"provider", "outcome"},
	)

	llmRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulletin_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulletin_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulletin_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulletin_task_queue_depth",
			Help: "Number of tasks waiting in the scheduler queue",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(eventsTotal)
	prometheus.MustRegister(llmRequestsTotal)
	prometheus.MustRegister(llmRequestDuration)
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(queueDepth)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordRun(source, status string, duration time.Duration) {
	runsTotal.WithLabelValues(source, status).Inc()
	runDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordEvents(source, classification string, count int) {
	if count <= 0 {
		return
	}
	eventsTotal.WithLabelValues(source, classification).Add(float64(count))
}

func ObserveLLMRequest(provider, outcome string, duration time.Duration) {
	llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
	llmRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}
