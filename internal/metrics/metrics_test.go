package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewPrometheusMetricsWithRegistry("domfilter", registry, zap.NewNop()), registry
}

// findMetric returns the metric of family name whose labels include every pair in labels
func findMetric(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, m := range family.GetMetric() {
			for k, v := range labels {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == v {
						found = true
					}
				}
				if !found {
					continue metrics
				}
			}
			return m
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return nil
}

func TestRecordRequest(t *testing.T) {
	pm, registry := newTestMetrics(t)

	pm.RecordRequest("/api/v1/filter", 200, 20*time.Millisecond)
	pm.RecordRequest("/api/v1/filter", 201, 10*time.Millisecond)
	pm.RecordRequest("/api/v1/filter", 422, 5*time.Millisecond)

	ok := findMetric(t, registry, "domfilter_api_requests_total", map[string]string{"status": "2xx"})
	assert.Equal(t, 2.0, ok.GetCounter().GetValue())

	bad := findMetric(t, registry, "domfilter_api_requests_total", map[string]string{"status": "4xx"})
	assert.Equal(t, 1.0, bad.GetCounter().GetValue())

	hist := findMetric(t, registry, "domfilter_api_request_duration_seconds", map[string]string{"status": "2xx"})
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
}

func TestRecordParseAndFetch(t *testing.T) {
	pm, registry := newTestMetrics(t)

	pm.RecordParse(true, 2048, time.Millisecond)
	pm.RecordParse(false, 10, time.Microsecond)
	pm.RecordFetch("example.com", FetchOK, 100*time.Millisecond)
	pm.RecordFetch("example.com", FetchBlocked, 0)

	assert.Equal(t, 1.0, findMetric(t, registry, "domfilter_parser_documents_total",
		map[string]string{"result": "error"}).GetCounter().GetValue())
	assert.Equal(t, uint64(2), findMetric(t, registry, "domfilter_parser_input_bytes", nil).GetHistogram().GetSampleCount())
	assert.Equal(t, 1.0, findMetric(t, registry, "domfilter_fetch_requests_total",
		map[string]string{"host": "example.com", "result": FetchBlocked}).GetCounter().GetValue())
}

func TestCacheHitRatio(t *testing.T) {
	pm, registry := newTestMetrics(t)

	pm.RecordCacheMiss()
	assert.Equal(t, 0.0, findMetric(t, registry, "domfilter_cache_hit_ratio", nil).GetGauge().GetValue())

	pm.RecordCacheHit()
	pm.RecordCacheHit()
	pm.RecordCacheHit()
	assert.Equal(t, 0.75, findMetric(t, registry, "domfilter_cache_hit_ratio", nil).GetGauge().GetValue())
}

func TestRecordCompression(t *testing.T) {
	pm, registry := newTestMetrics(t)

	pm.RecordCompression("snappy", 1000, 400)
	pm.RecordCompression("snappy", 0, 0)
	pm.RecordDecompressionError("lz4")

	saved := findMetric(t, registry, "domfilter_cache_bytes_saved_total", map[string]string{"algorithm": "snappy"})
	assert.Equal(t, 600.0, saved.GetCounter().GetValue())

	ratio := findMetric(t, registry, "domfilter_cache_compression_ratio", map[string]string{"algorithm": "snappy"})
	assert.Equal(t, uint64(1), ratio.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.4, ratio.GetHistogram().GetSampleSum(), 1e-9)

	assert.Equal(t, 1.0, findMetric(t, registry, "domfilter_cache_decompression_errors_total",
		map[string]string{"algorithm": "lz4"}).GetCounter().GetValue())
}

func TestActiveRequestsAndMatches(t *testing.T) {
	pm, registry := newTestMetrics(t)

	pm.IncActiveRequests()
	pm.IncActiveRequests()
	pm.DecActiveRequests()
	pm.RecordMatches(3)

	assert.Equal(t, 1.0, findMetric(t, registry, "domfilter_api_active_requests", nil).GetGauge().GetValue())
	assert.Equal(t, 3.0, findMetric(t, registry, "domfilter_filter_matches", nil).GetHistogram().GetSampleSum())
}

func TestServeHTTP(t *testing.T) {
	pm, _ := newTestMetrics(t)
	pm.RecordFetch("example.com", FetchOK, time.Millisecond)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	ctx.Request.Header.SetMethod("GET")
	pm.ServeHTTP(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.ContentType()), "text/plain")
	body := string(ctx.Response.Body())
	assert.Contains(t, body, "# TYPE domfilter_fetch_requests_total counter")
	assert.Contains(t, body, `domfilter_fetch_requests_total{host="example.com",result="ok"} 1`)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(301))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(502))
	assert.Equal(t, "unknown", statusClass(0))
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordRequest("/", 200, time.Second)
	r.RecordCacheHit()
}
