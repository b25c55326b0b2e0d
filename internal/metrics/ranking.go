package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ranking and embedding Prometheus metrics, registered explicitly (no init()).
var (
	RankingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidrank",
			Name:      "ranking_requests_total",
			Help:      "Ranking requests by mode and engine used",
		},
		[]string{"mode", "engine"},
	)

	RankingFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidrank",
			Name:      "ranking_fallbacks_total",
			Help:      "Requests degraded to the fallback scorer, by reason",
		},
		[]string{"mode", "reason"}, // reason: "index_unavailable" / "index_error" / "no_embedding" / "empty_result"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidrank",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vidrank",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidrank",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidrank",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// RegisterRankingMetrics registers all ranking and embedding metrics.
func RegisterRankingMetrics() {
	prometheus.MustRegister(
		RankingRequestsTotal,
		RankingFallbacksTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingErrorsTotal,
		EmbeddingCacheTotal,
	)
}
