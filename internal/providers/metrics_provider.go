package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"countly/internal/structures"
)

type MetricsProviderInterface interface {
	IncUploadsTotal(queue string, status int)
	ObserveUploadDuration(queue string, duration time.Duration)
	IncRecordsDropped(queue string)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
}

// QueueSizer reports current queue lengths for the gauge funcs.
type QueueSizer interface {
	EventCount() int
	SessionCount() int
	ExceptionCount() int
	RequestCount() int
}

type MetricsProvider struct {
	uploadsTotal        *prometheus.CounterVec
	uploadDuration      *prometheus.HistogramVec
	recordsDropped      *prometheus.CounterVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
}

func (m *MetricsProvider) IncUploadsTotal(queue string, status int) {
	m.uploadsTotal.WithLabelValues(queue, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveUploadDuration(queue string, duration time.Duration) {
	m.uploadDuration.WithLabelValues(queue).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncRecordsDropped(queue string) {
	m.recordsDropped.WithLabelValues(queue).Inc()
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, sizer QueueSizer) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		uploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "countly_uploads_total",
			Help: "Total number of upload attempts by queue and status",
		}, []string{"queue", "status"}),

		uploadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "countly_upload_duration_seconds",
			Help:    "Upload request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),

		recordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "countly_records_dropped_total",
			Help: "Records dropped without upload (consent denied or invalid)",
		}, []string{"queue"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "countly_timed_event_cache_hits_total",
			Help: "Total number of timed-event cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "countly_timed_event_cache_misses_total",
			Help: "Total number of timed-event cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "countly_persistence_duration_seconds",
			Help:    "Duration of queue persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "countly_queue_events",
		Help: "Current number of queued events",
	}, func() float64 {
		return float64(sizer.EventCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "countly_queue_sessions",
		Help: "Current number of queued session records",
	}, func() float64 {
		return float64(sizer.SessionCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "countly_queue_exceptions",
		Help: "Current number of queued exception records",
	}, func() float64 {
		return float64(sizer.ExceptionCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "countly_queue_requests",
		Help: "Current number of queued stored requests",
	}, func() float64 {
		return float64(sizer.RequestCount())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncUploadsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveUploadDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncRecordsDropped(_ string)                      {}
func (n *noopMetrics) IncCacheHits()                                   {}
func (n *noopMetrics) IncCacheMisses()                                 {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)      {}
