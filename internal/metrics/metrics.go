// Package metrics exposes Prometheus collectors for the HTTP API, the
// generation client and the report pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goassess_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goassess_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goassess_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	generationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goassess_generation_attempts_total",
			Help: "Generation attempts by stage and outcome (ok, empty, invalid, transport).",
		},
		[]string{"stage", "outcome"},
	)

	generationCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goassess_generation_calls_total",
			Help: "Generation calls, each spanning one or more attempts, by stage and result.",
		},
		[]string{"stage", "result"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goassess_generation_duration_seconds",
			Help:    "Wall time of a generation call including retries.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage"},
	)

	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goassess_pipeline_runs_total",
			Help: "Pipeline invocations by result kind.",
		},
		[]string{"result"},
	)

	pipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "goassess_pipeline_duration_seconds",
		Help:    "End-to-end pipeline duration.",
		Buckets: []float64{5, 15, 30, 60, 120, 240, 480},
	})

	risksAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "goassess_risks_added_total",
		Help: "Risks persisted by the pipeline.",
	})
)

var initOnce sync.Once

// Init registers every collector with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			generationAttempts, generationCalls, generationDuration,
			pipelineRuns, pipelineDuration, risksAdded,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer serves Handler at /metrics for processes without an API router.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func ObserveAttempt(stage, outcome string) {
	generationAttempts.WithLabelValues(stage, outcome).Inc()
}

func ObserveGeneration(stage string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	generationCalls.WithLabelValues(stage, result).Inc()
	generationDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func ObservePipeline(result string, risks int, d time.Duration) {
	pipelineRuns.WithLabelValues(result).Inc()
	pipelineDuration.Observe(d.Seconds())
	if risks > 0 {
		risksAdded.Add(float64(risks))
	}
}

// Instrument records request counts and latency labelled by chi route
// pattern so path parameters do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
