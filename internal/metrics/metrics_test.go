package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestRegistryExposesRequestCounters(t *testing.T) {
	r := New("test", func() float64 { return 0 }, func() float64 { return 0 })
	r.ObserveRequest(12.5, true, false)

	body := scrape(t, r)
	require.Contains(t, body, "sentra_requests_total 1")
	require.Contains(t, body, "sentra_blocks_total 1")
	require.Contains(t, body, "sentra_audit_suppressed_total 0")
}

func TestRegistryExposesAuditSuppressedCounter(t *testing.T) {
	r := New("test", func() float64 { return 0 }, func() float64 { return 0 })
	r.ObserveRequest(5, true, true)

	body := scrape(t, r)
	require.Contains(t, body, "sentra_audit_suppressed_total 1")
}

func TestRegistryExposesLatencyHistogramBuckets(t *testing.T) {
	r := New("test", func() float64 { return 0 }, func() float64 { return 0 })
	r.ObserveRequest(3, false, false)

	body := scrape(t, r)
	require.Contains(t, body, `sentra_request_latency_ms_bucket{le="5"}`)
	require.Contains(t, body, `sentra_request_latency_ms_bucket{le="+Inf"}`)
	require.Contains(t, body, "sentra_request_latency_ms_sum")
	require.Contains(t, body, "sentra_request_latency_ms_count 1")
}

func TestRegistryExposesPerPluginMetrics(t *testing.T) {
	r := New("test", func() float64 { return 0 }, func() float64 { return 0 })
	r.ObservePlugin("pii", 2.0, true)

	body := scrape(t, r)
	require.Contains(t, body, `sentra_plugin_eval_ms_sum{plugin="pii"} 2`)
	require.Contains(t, body, `sentra_plugin_eval_ms_count{plugin="pii"} 1`)
	require.Contains(t, body, `sentra_plugin_blocks_total{plugin="pii"} 1`)
	require.Contains(t, body, `sentra_plugin_latency_ms_bucket{le="2",plugin="pii"}`)
}

func TestRegistryExposesTelemetryCountersFromCallback(t *testing.T) {
	r := New("test", func() float64 { return 7 }, func() float64 { return 2 })

	body := scrape(t, r)
	require.Contains(t, body, "sentra_telemetry_lines_total 7")
	require.Contains(t, body, "sentra_telemetry_write_errors_total 2")
}

func TestRegistryExposesBuildInfoAndProcessGauges(t *testing.T) {
	r := New("1.2.3", func() float64 { return 0 }, func() float64 { return 0 })

	body := scrape(t, r)
	require.Contains(t, body, `sentra_build_info{schemaVersion="1",version="1.2.3"} 1`)
	require.Contains(t, body, "sentra_process_start_time_seconds")
	require.Contains(t, body, "sentra_process_uptime_seconds")
}

func TestRegistrySetLogFileSize(t *testing.T) {
	r := New("test", func() float64 { return 0 }, func() float64 { return 0 })
	r.SetLogFileSize(4096)

	body := scrape(t, r)
	require.True(t, strings.Contains(body, "sentra_log_file_size_bytes 4096"))
}
