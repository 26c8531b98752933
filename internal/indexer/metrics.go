package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts finished document passes.
	// Labels: status (indexed, skipped, failed, cancelled), reason
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Subsystem: "indexer",
			Name:      "documents_total",
			Help:      "Total number of document passes by outcome",
		},
		[]string{"status", "reason"},
	)

	// SectionsStored counts sections persisted by completed passes.
	SectionsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Subsystem: "indexer",
			Name:      "sections_stored_total",
			Help:      "Total number of sections embedded and stored",
		},
	)

	// TokensUsed counts provider tokens reported for embedded sections.
	TokensUsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Subsystem: "indexer",
			Name:      "provider_tokens_total",
			Help:      "Total number of tokens consumed by the embedding provider",
		},
	)

	// PassDuration tracks how long a document pass takes.
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docindex",
			Subsystem: "indexer",
			Name:      "document_pass_duration_seconds",
			Help:      "Duration of document passes in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RunsTotal counts indexing runs.
	// Labels: result (success, discovery_error)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Subsystem: "indexer",
			Name:      "runs_total",
			Help:      "Total number of indexing runs",
		},
		[]string{"result"},
	)
)

// observe records a finished document pass
func observe(result DocumentResult) {
	DocumentsTotal.WithLabelValues(string(result.Status), string(result.Reason)).Inc()
	PassDuration.Observe(result.Duration.Seconds())
	if result.Status == StatusIndexed {
		SectionsStored.Add(float64(result.Sections))
	}
	if result.Tokens > 0 {
		TokensUsed.Add(float64(result.Tokens))
	}
}
