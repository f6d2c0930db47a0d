// Package monitoring provides Prometheus metrics and OpenTelemetry
// tracing for the API surface and the extraction pipeline.
package monitoring

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pipeline stages reported to metrics.
const (
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageExtract    = "extract"
)

// Pipeline run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCacheHit  = "cache_hit"
	OutcomeFailed    = "failed"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger *zap.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	// Pipeline metrics
	pipelineRuns          *prometheus.CounterVec
	pipelineRunDuration   prometheus.Histogram
	pipelineStageDuration *prometheus.HistogramVec
	pipelineStageFailures *prometheus.CounterVec

	// Model provider metrics
	aiRequestsTotal   *prometheus.CounterVec
	aiRequestDuration *prometheus.HistogramVec

	// Chat metrics
	chatStreamsTotal   *prometheus.CounterVec
	chatStreamDuration prometheus.Histogram

	// Timer metrics
	timersActive prometheus.Gauge
	timerSockets prometheus.Gauge

	// Cache metrics
	cacheOperations *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		logger: logger,

		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touille_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "touille_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		httpInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "touille_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),

		pipelineRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touille_pipeline_runs_total",
				Help: "Extraction pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		pipelineRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "touille_pipeline_run_duration_seconds",
				Help:    "End to end extraction pipeline duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		pipelineStageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "touille_pipeline_stage_duration_seconds",
				Help:    "Duration of one pipeline stage in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		pipelineStageFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touille_pipeline_stage_failures_total",
				Help: "Pipeline stage failures",
			},
			[]string{"stage"},
		),

		aiRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touille_ai_requests_total",
				Help: "Total number of model provider requests",
			},
			[]string{"provider", "operation", "status"},
		),
		aiRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "touille_ai_request_duration_seconds",
				Help:    "Model provider request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"provider", "operation"},
		),

		chatStreamsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touille_chat_streams_total",
				Help: "Step chat streams by outcome",
			},
			[]string{"outcome"},
		),
		chatStreamDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "touille_chat_stream_duration_seconds",
				Help:    "Step chat stream duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		timersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "touille_timers_active",
				Help: "Countdown timers currently tracked",
			},
		),
		timerSockets: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "touille_timer_sockets_open",
				Help: "Open timer WebSocket connections",
			},
		),

		cacheOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touille_cache_operations_total",
				Help: "Cache operations by status",
			},
			[]string{"operation", "status"},
		),
	}
}

// HTTPMiddleware creates a Chi middleware for HTTP metrics collection.
// The path label uses the route pattern, not the raw path, so IDs do
// not explode label cardinality.
func (m *MetricsCollector) HTTPMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			statusCode := strconv.Itoa(wrapped.status)

			m.httpRequestsTotal.WithLabelValues(r.Method, path, statusCode).Inc()
			m.httpRequestDuration.WithLabelValues(r.Method, path, statusCode).Observe(time.Since(start).Seconds())
		})
	}
}

// PipelineRun records one extraction pipeline outcome
func (m *MetricsCollector) PipelineRun(outcome string, duration time.Duration) {
	m.pipelineRuns.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCacheHit {
		m.pipelineRunDuration.Observe(duration.Seconds())
	}
}

// PipelineStage records the duration of one pipeline stage
func (m *MetricsCollector) PipelineStage(stage string, duration time.Duration, err error) {
	if err != nil {
		m.pipelineStageFailures.WithLabelValues(stage).Inc()
		return
	}
	m.pipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// AIRequest records one model provider call
func (m *MetricsCollector) AIRequest(provider, operation, status string, duration time.Duration) {
	m.aiRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.aiRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// ChatStream records one step chat stream outcome
func (m *MetricsCollector) ChatStream(outcome string, duration time.Duration) {
	m.chatStreamsTotal.WithLabelValues(outcome).Inc()
	m.chatStreamDuration.Observe(duration.Seconds())
}

// SetActiveTimers reports the current countdown timer count
func (m *MetricsCollector) SetActiveTimers(n int) {
	m.timersActive.Set(float64(n))
}

// TimerSocketOpened records a new timer WebSocket connection
func (m *MetricsCollector) TimerSocketOpened() {
	m.timerSockets.Inc()
}

// TimerSocketClosed records a closed timer WebSocket connection
func (m *MetricsCollector) TimerSocketClosed() {
	m.timerSockets.Dec()
}

// CacheOperation records one cache operation
func (m *MetricsCollector) CacheOperation(operation, status string) {
	m.cacheOperations.WithLabelValues(operation, status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("response writer does not support hijacking")
}
