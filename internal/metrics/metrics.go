package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foresafe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foresafe_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// Alerts counts dispatch attempts by category and outcome code.
	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foresafe_alerts_total",
			Help: "Number of alert dispatch attempts",
		},
		[]string{"category", "result"},
	)

	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foresafe_registrations_total",
			Help: "Number of tag registration attempts",
		},
		[]string{"result"},
	)

	TagsImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foresafe_tags_imported_total",
			Help: "Number of tag rows created by inventory imports",
		},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(HTTPRequests, RequestDuration, Alerts, Registrations, TagsImported)
	})
}
