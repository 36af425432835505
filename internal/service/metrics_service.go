package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	scansTotal         *prometheus.CounterVec
	classifications    *prometheus.CounterVec
	recordFailures     prometheus.Counter
	pointChanges       *prometheus.CounterVec
	pointsExpired      *prometheus.CounterVec
	expirationRuns     *prometheus.CounterVec
	expirationDuration prometheus.Histogram
	reclassifyQueue    prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	scanCount            uint64
	recordFailureCount   uint64
	sroCount             uint64
	gbroCount            uint64
	lastRunUnix          int64
}

// MetricsSnapshot is a JSON-friendly digest of the counters.
type MetricsSnapshot struct {
	CacheHitRatio            float64    `json:"cache_hit_ratio"`
	CacheHits                uint64     `json:"cache_hits"`
	CacheMisses              uint64     `json:"cache_misses"`
	RequestsTotal            uint64     `json:"requests_total"`
	AverageRequestDurationMs float64    `json:"average_request_duration_ms"`
	ScansProcessed           uint64     `json:"scans_processed"`
	RecordFailures           uint64     `json:"record_failures"`
	PointsExpiredSRO         uint64     `json:"points_expired_sro"`
	PointsExpiredGBRO        uint64     `json:"points_expired_gbro"`
	LastExpirationRun        *time.Time `json:"last_expiration_run,omitempty"`
	Goroutines               int        `json:"goroutines"`
	GeneratedAt              time.Time  `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	scansTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_scans_total",
		Help: "Scans folded into shift records by outcome",
	}, []string{"outcome"})

	classifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_classifications_total",
		Help: "Shift record classifications by status",
	}, []string{"status"})

	recordFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_record_failures_total",
		Help: "Shift records that failed to process",
	})

	pointChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_point_changes_total",
		Help: "Point regeneration outcomes",
	}, []string{"outcome"})

	pointsExpired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_points_expired_total",
		Help: "Points expired by roll-off type",
	}, []string{"type"})

	expirationRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_expiration_runs_total",
		Help: "Expiration runs by result",
	}, []string{"result"})

	expirationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_expiration_run_seconds",
		Help:    "Duration of expiration runs",
		Buckets: prometheus.DefBuckets,
	})

	reclassifyQueue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_reclassify_queue_pending",
		Help: "Reclassification jobs waiting or running",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		scansTotal, classifications, recordFailures, pointChanges, pointsExpired, expirationRuns, expirationDuration,
		reclassifyQueue, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		scansTotal:         scansTotal,
		classifications:    classifications,
		recordFailures:     recordFailures,
		pointChanges:       pointChanges,
		pointsExpired:      pointsExpired,
		expirationRuns:     expirationRuns,
		expirationDuration: expirationDuration,
		reclassifyQueue:    reclassifyQueue,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordScan counts one scan by fold outcome.
func (m *MetricsService) RecordScan(outcome string) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.scanCount, 1)
}

// RecordClassification counts a status assignment.
func (m *MetricsService) RecordClassification(status string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(status).Inc()
}

// RecordRecordFailure counts a shift record that could not be processed.
func (m *MetricsService) RecordRecordFailure() {
	if m == nil {
		return
	}
	m.recordFailures.Inc()
	atomic.AddUint64(&m.recordFailureCount, 1)
}

// RecordPointChange counts a point regeneration outcome.
func (m *MetricsService) RecordPointChange(outcome string) {
	if m == nil {
		return
	}
	m.pointChanges.WithLabelValues(outcome).Inc()
}

// ObserveExpirationRun records the effect of one expiration run.
func (m *MetricsService) ObserveExpirationRun(result string, sro, gbro int, duration time.Duration) {
	if m == nil {
		return
	}
	m.expirationRuns.WithLabelValues(result).Inc()
	m.expirationDuration.Observe(duration.Seconds())
	m.pointsExpired.WithLabelValues("sro").Add(float64(sro))
	m.pointsExpired.WithLabelValues("gbro").Add(float64(gbro))
	atomic.AddUint64(&m.sroCount, uint64(sro))
	atomic.AddUint64(&m.gbroCount, uint64(gbro))
	atomic.StoreInt64(&m.lastRunUnix, time.Now().Unix())
}

// SetReclassifyPending publishes the reclassification backlog.
func (m *MetricsService) SetReclassifyPending(n int) {
	if m == nil {
		return
	}
	m.reclassifyQueue.Set(float64(n))
}

// Snapshot returns aggregated metrics suitable for a JSON endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	snap := MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ScansProcessed:           atomic.LoadUint64(&m.scanCount),
		RecordFailures:           atomic.LoadUint64(&m.recordFailureCount),
		PointsExpiredSRO:         atomic.LoadUint64(&m.sroCount),
		PointsExpiredGBRO:        atomic.LoadUint64(&m.gbroCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
	if last := atomic.LoadInt64(&m.lastRunUnix); last > 0 {
		t := time.Unix(last, 0).UTC()
		snap.LastExpirationRun = &t
	}
	return snap
}
