package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragctl",
		Subsystem: "retrieval",
		Name:      "chunks_indexed_total",
		Help:      "Chunks embedded and written to the index",
	})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ragctl",
		Subsystem: "retrieval",
		Name:      "query_duration_seconds",
		Help:      "End-to-end query latency including the query embedding",
		Buckets:   prometheus.DefBuckets,
	})

	ResultsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ragctl",
		Subsystem: "retrieval",
		Name:      "results_returned",
		Help:      "Results surviving the distance threshold per query",
		Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
	})

	// CandidatesFiltered counts neighbours dropped by the distance threshold.
	CandidatesFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragctl",
		Subsystem: "retrieval",
		Name:      "candidates_filtered_total",
		Help:      "Nearest neighbours discarded for exceeding the distance threshold",
	})
)
