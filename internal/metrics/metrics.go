// Package metrics records parse, fetch, filter and cache activity in Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Fetch outcomes used as the result label
const (
	FetchOK      = "ok"
	FetchError   = "error"
	FetchBlocked = "blocked"
	FetchCached  = "cached"
)

// Recorder is what the pipeline reports to. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordRequest(endpoint string, statusCode int, duration time.Duration)
	RecordParse(ok bool, size int, duration time.Duration)
	RecordFetch(host, result string, duration time.Duration)
	RecordMatches(count int)
	RecordCacheHit()
	RecordCacheMiss()
	RecordCompression(algorithm string, originalSize, compressedSize int)
	RecordDecompressionError(algorithm string)
	IncActiveRequests()
	DecActiveRequests()
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration)  {}
func (Nop) RecordParse(bool, int, time.Duration)      {}
func (Nop) RecordFetch(string, string, time.Duration) {}
func (Nop) RecordMatches(int)                         {}
func (Nop) RecordCacheHit()                           {}
func (Nop) RecordCacheMiss()                          {}
func (Nop) RecordCompression(string, int, int)        {}
func (Nop) RecordDecompressionError(string)           {}
func (Nop) IncActiveRequests()                        {}
func (Nop) DecActiveRequests()                        {}

var _ Recorder = Nop{}
var _ Recorder = (*PrometheusMetrics)(nil)

// PrometheusMetrics is the Prometheus-backed Recorder
type PrometheusMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	parseTotal    *prometheus.CounterVec
	parseDuration prometheus.Histogram
	parseBytes    prometheus.Histogram

	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	filterMatches prometheus.Histogram

	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	cacheHitRatio    prometheus.Gauge

	compressionRatio    *prometheus.HistogramVec
	bytesSavedTotal     *prometheus.CounterVec
	decompressionErrors *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler fasthttp.RequestHandler
}

// NewPrometheusMetrics registers collectors on the default registry
func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewPrometheusMetricsWithRegistry registers collectors on registerer.
// The HTTP handler gathers from registerer when it is also a Gatherer.
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{logger: logger}

	pm.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by endpoint and status code class",
	}, []string{"endpoint", "status"})

	pm.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	pm.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "active_requests",
		Help:      "Requests currently being processed",
	})

	pm.parseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parser",
		Name:      "documents_total",
		Help:      "Documents parsed, by result",
	}, []string{"result"})

	pm.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "parser",
		Name:      "duration_seconds",
		Help:      "Time to parse a document into a tree",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	pm.parseBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "parser",
		Name:      "input_bytes",
		Help:      "Size of parsed input",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	})

	pm.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Remote document fetches by host and result",
	}, []string{"host", "result"})

	pm.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Remote fetch latency including retries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"host", "result"})

	pm.filterMatches = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "filter",
		Name:      "matches",
		Help:      "Elements matched per filter request",
		Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 1000},
	})

	pm.cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Document cache hits",
	})

	pm.cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Document cache misses",
	})

	pm.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hit_ratio",
		Help:      "Document cache hit ratio (0-1)",
	})

	pm.compressionRatio = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "compression_ratio",
		Help:      "Compressed size divided by original size",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"algorithm"})

	pm.bytesSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "bytes_saved_total",
		Help:      "Bytes saved by compression",
	}, []string{"algorithm"})

	pm.decompressionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "decompression_errors_total",
		Help:      "Cached entries that failed to decompress (refetched)",
	}, []string{"algorithm"})

	registerer.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.activeRequests,
		pm.parseTotal,
		pm.parseDuration,
		pm.parseBytes,
		pm.fetchTotal,
		pm.fetchDuration,
		pm.filterMatches,
		pm.cacheHitsTotal,
		pm.cacheMissesTotal,
		pm.cacheHitRatio,
		pm.compressionRatio,
		pm.bytesSavedTotal,
		pm.decompressionErrors,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized", zap.String("namespace", namespace))
	return pm
}

func (pm *PrometheusMetrics) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	status := statusClass(statusCode)
	pm.requestsTotal.WithLabelValues(endpoint, status).Inc()
	pm.requestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) RecordParse(ok bool, size int, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	pm.parseTotal.WithLabelValues(result).Inc()
	pm.parseDuration.Observe(duration.Seconds())
	pm.parseBytes.Observe(float64(size))
}

func (pm *PrometheusMetrics) RecordFetch(host, result string, duration time.Duration) {
	pm.fetchTotal.WithLabelValues(host, result).Inc()
	pm.fetchDuration.WithLabelValues(host, result).Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) RecordMatches(count int) {
	pm.filterMatches.Observe(float64(count))
}

func (pm *PrometheusMetrics) RecordCacheHit() {
	pm.cacheHitsTotal.Inc()
	pm.updateCacheHitRatio()
}

func (pm *PrometheusMetrics) RecordCacheMiss() {
	pm.cacheMissesTotal.Inc()
	pm.updateCacheHitRatio()
}

// RecordCompression observes the size ratio and bytes saved for one stored entry
func (pm *PrometheusMetrics) RecordCompression(algorithm string, originalSize, compressedSize int) {
	if originalSize <= 0 {
		return
	}
	pm.compressionRatio.WithLabelValues(algorithm).Observe(float64(compressedSize) / float64(originalSize))
	if saved := originalSize - compressedSize; saved > 0 {
		pm.bytesSavedTotal.WithLabelValues(algorithm).Add(float64(saved))
	}
}

func (pm *PrometheusMetrics) RecordDecompressionError(algorithm string) {
	pm.decompressionErrors.WithLabelValues(algorithm).Inc()
}

func (pm *PrometheusMetrics) IncActiveRequests() {
	pm.activeRequests.Inc()
}

func (pm *PrometheusMetrics) DecActiveRequests() {
	pm.activeRequests.Dec()
}

// ServeHTTP serves the Prometheus exposition format
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}

func (pm *PrometheusMetrics) updateCacheHitRatio() {
	hits := pm.counterValue(pm.cacheHitsTotal)
	misses := pm.counterValue(pm.cacheMissesTotal)
	if total := hits + misses; total > 0 {
		pm.cacheHitRatio.Set(hits / total)
	}
}

func (pm *PrometheusMetrics) counterValue(counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		pm.logger.Warn("Failed to read counter value", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}

// statusClass converts a status code to 2xx, 3xx, 4xx, 5xx or unknown
func statusClass(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
