package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	ResponsesSavedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responses_saved_count",
			Help: "Total number of form responses persisted",
		},
		[]string{"step"},
	)

	StoriesPublishedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stories_published_count",
			Help: "Total number of story projects published",
		},
	)

	TokensRefreshedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_refreshed_count",
			Help: "Total number of story tokens refreshed after expiry or revocation",
		},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementResponsesSaved(step string, count int) {
	ResponsesSavedCount.WithLabelValues(step).Add(float64(count))
}

func IncrementStoriesPublished() {
	StoriesPublishedCount.Inc()
}

func IncrementTokensRefreshed() {
	TokensRefreshedCount.Inc()
}
