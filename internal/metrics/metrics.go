// Package metrics exposes the gateway's Prometheus exposition: request and
// per-detector counters and latency histograms over a fixed bucket set,
// generalizing the teacher's metrics package from a single HTTP middleware
// pair to the full gateway decision surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBucketsMs are the fixed histogram bucket upper bounds, in
// milliseconds, shared by the global and per-detector latency histograms.
var latencyBucketsMs = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000}

// Registry holds every metric family the gateway exposes, registered once at
// startup on a dedicated prometheus.Registry and shared read-only across
// request handling goroutines.
type Registry struct {
	registry *prometheus.Registry

	requestsTotal        prometheus.Counter
	blocksTotal          prometheus.Counter
	auditSuppressedTotal prometheus.Counter

	requestLatencyMs prometheus.Histogram

	pluginEvalMsSum   *prometheus.CounterVec
	pluginEvalMsCount *prometheus.CounterVec
	pluginBlocksTotal *prometheus.CounterVec
	pluginLatencyMs   *prometheus.HistogramVec

	logFileSizeBytes prometheus.Gauge
	buildInfo        *prometheus.GaugeVec

	processStartTimeSeconds prometheus.Gauge
	startedAt               time.Time

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
}

// New constructs and registers every metric family. version is reported via
// sentra_build_info; telemetryLines/telemetryWriteErrors back the two
// telemetry counters by reading the live sink counters at scrape time, since
// the sink (not this package) owns that state.
func New(version string, telemetryLines, telemetryWriteErrors func() float64) *Registry {
	reg := prometheus.NewRegistry()
	startedAt := time.Now()

	r := &Registry{
		registry:  reg,
		startedAt: startedAt,

		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentra_requests_total",
			Help: "Total analyze requests processed",
		}),
		blocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentra_blocks_total",
			Help: "Total blocking decisions (pre audit override)",
		}),
		auditSuppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentra_audit_suppressed_total",
			Help: "Blocks suppressed due to audit-only mode",
		}),
		requestLatencyMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentra_request_latency_ms",
			Help:    "Request latency histogram milliseconds",
			Buckets: latencyBucketsMs,
		}),
		pluginEvalMsSum: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_plugin_eval_ms_sum",
			Help: "Cumulative evaluation time (ms) per plugin",
		}, []string{"plugin"}),
		pluginEvalMsCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_plugin_eval_ms_count",
			Help: "Evaluation count per plugin",
		}, []string{"plugin"}),
		pluginBlocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_plugin_blocks_total",
			Help: "Blocking decisions per plugin (would-be blocks)",
		}, []string{"plugin"}),
		pluginLatencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentra_plugin_latency_ms",
			Help:    "Plugin evaluation latency histogram (ms) per plugin",
			Buckets: latencyBucketsMs,
		}, []string{"plugin"}),
		logFileSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentra_log_file_size_bytes",
			Help: "Current size in bytes of active telemetry log file (0 if disabled)",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentra_build_info",
			Help: "Build information",
		}, []string{"version", "schemaVersion"}),
		processStartTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentra_process_start_time_seconds",
			Help: "Process start time (Unix epoch seconds)",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	telemetryLinesTotal := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "sentra_telemetry_lines_total",
		Help: "Telemetry/audit JSON lines written",
	}, telemetryLines)
	telemetryWriteErrorsTotal := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "sentra_telemetry_write_errors_total",
		Help: "Telemetry/audit JSON line write failures",
	}, telemetryWriteErrors)
	uptimeSeconds := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "sentra_process_uptime_seconds",
		Help: "Process uptime seconds",
	}, func() float64 { return time.Since(startedAt).Seconds() })

	r.buildInfo.WithLabelValues(version, "1").Set(1)
	r.processStartTimeSeconds.Set(float64(startedAt.Unix()))

	reg.MustRegister(
		r.requestsTotal,
		r.blocksTotal,
		r.auditSuppressedTotal,
		r.requestLatencyMs,
		r.pluginEvalMsSum,
		r.pluginEvalMsCount,
		r.pluginBlocksTotal,
		r.pluginLatencyMs,
		r.logFileSizeBytes,
		r.buildInfo,
		r.processStartTimeSeconds,
		r.httpRequestsTotal,
		r.httpRequestDurationSeconds,
		telemetryLinesTotal,
		telemetryWriteErrorsTotal,
		uptimeSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveRequest records one completed analyze request: the raw (pre audit
// override) block decision and the total pipeline latency.
func (r *Registry) ObserveRequest(latencyMs float64, rawBlocked, auditSuppressed bool) {
	r.requestsTotal.Inc()
	if rawBlocked {
		r.blocksTotal.Inc()
	}
	if auditSuppressed {
		r.auditSuppressedTotal.Inc()
	}
	r.requestLatencyMs.Observe(latencyMs)
}

// ObservePlugin records one detector invocation's elapsed time and whether
// it produced the raw blocking verdict for the request.
func (r *Registry) ObservePlugin(name string, latencyMs float64, blocked bool) {
	r.pluginEvalMsSum.WithLabelValues(name).Add(latencyMs)
	r.pluginEvalMsCount.WithLabelValues(name).Inc()
	r.pluginLatencyMs.WithLabelValues(name).Observe(latencyMs)
	if blocked {
		r.pluginBlocksTotal.WithLabelValues(name).Inc()
	}
}

// SetLogFileSize updates the active telemetry log file size gauge.
func (r *Registry) SetLogFileSize(bytes float64) {
	r.logFileSizeBytes.Set(bytes)
}

// Handler returns the Prometheus exposition endpoint for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and duration ambient HTTP metrics for
// every route, independent of the gateway-specific decision metrics above.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lw := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, req)

		duration := time.Since(start).Seconds()
		r.httpRequestsTotal.WithLabelValues(req.Method, req.URL.Path, strconv.Itoa(lw.statusCode)).Inc()
		r.httpRequestDurationSeconds.WithLabelValues(req.Method, req.URL.Path).Observe(duration)
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
