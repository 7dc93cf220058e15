package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesTotal counts files by outcome: extracted, skipped, failed.
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragctl",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files seen during folder ingestion by outcome",
		},
		[]string{"outcome"},
	)

	// FailuresTotal counts per-file failures by reason.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragctl",
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Per-file extraction failures by reason",
		},
		[]string{"reason"},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragctl",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Raw records extracted by record type",
		},
		[]string{"record_type"},
	)

	DuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragctl",
		Subsystem: "ingest",
		Name:      "duplicates_dropped_total",
		Help:      "Records dropped because their content hash was already seen in the run",
	})

	ChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragctl",
		Subsystem: "ingest",
		Name:      "chunks_total",
		Help:      "Chunks produced by folder ingestion",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ragctl",
		Subsystem: "ingest",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full folder ingestion",
		Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
	})
)
