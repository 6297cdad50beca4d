package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the memo server.
//
// Metrics:
//   - memo_saves_total{result} - save actions by outcome ("ok", "error")
//   - memo_entries_written_total{role} - entries upserted per role
//   - memo_grandchild_rejected_total - add-grandchild clicks at capacity
//   - memo_record_cache_hits_total / memo_record_cache_misses_total
//   - memo_publish_failures_total - save notifications that could not be sent
//   - memo_http_requests_total{method,status} / memo_http_request_duration_seconds{method}
type Metrics struct {
	SavesTotal          *prometheus.CounterVec
	EntriesWritten      *prometheus.CounterVec
	GrandchildRejected  prometheus.Counter
	RecordCacheHits     prometheus.Counter
	RecordCacheMisses   prometheus.Counter
	PublishFailures     prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Each server owns its registry so
// tests can build several servers in one process.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SavesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memo_saves_total",
			Help: "Save actions by result",
		}, []string{"result"}),
		EntriesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memo_entries_written_total",
			Help: "Birthday entries written per role",
		}, []string{"role"}),
		GrandchildRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "memo_grandchild_rejected_total",
			Help: "Add-grandchild requests refused because the form is at capacity",
		}),
		RecordCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "memo_record_cache_hits_total",
			Help: "Record loads served from cache",
		}),
		RecordCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "memo_record_cache_misses_total",
			Help: "Record loads that went to the store",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "memo_publish_failures_total",
			Help: "Save notifications that could not be published",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memo_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memo_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
