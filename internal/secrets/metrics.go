package secrets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SecretsRedacted counts secrets removed from ingested records.
var SecretsRedacted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ragctl",
	Subsystem: "ingest",
	Name:      "secrets_redacted_total",
	Help:      "Secrets replaced with redaction markers during ingestion",
})
