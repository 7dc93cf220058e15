// Package events publishes index lifecycle notifications over NATS so
// downstream consumers (test-case generators, dashboards) can react to a
// fresh index without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
)

// Subject suffixes, appended to the configured prefix.
const (
	SubjectIngestCompleted = "ingest.completed"
	SubjectIndexCleared    = "index.cleared"
)

// IngestCompleted is published after a successful ingest transaction.
type IngestCompleted struct {
	RunID          string              `json:"run_id"`
	Root           string              `json:"root"`
	FilesExtracted int                 `json:"files_extracted"`
	FilesSkipped   int                 `json:"files_skipped"`
	FilesFailed    int                 `json:"files_failed"`
	Records        int                 `json:"records"`
	Chunks         int                 `json:"chunks"`
	DurationMs     int64               `json:"duration_ms"`
	Failures       []ingestion.Failure `json:"failures,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// IndexCleared is published after the collection is reset.
type IndexCleared struct {
	Collection string    `json:"collection"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends events. A nil *Publisher drops everything, so callers
// can hold one unconditionally.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials cfg.URL. It returns nil, nil when events are disabled.
func Connect(cfg config.EventsConfig, logger *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("ragctl"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	if logger != nil {
		logger.Info("connected to NATS", zap.String("url", cfg.URL))
	}
	return NewPublisher(nc, cfg.SubjectPrefix, logger), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "rag"
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the full subject for suffix.
func (p *Publisher) Subject(suffix string) string {
	return p.prefix + "." + suffix
}

// IngestCompleted implements ingestion.Notifier.
func (p *Publisher) IngestCompleted(_ context.Context, report *ingestion.RunReport) {
	if p == nil || report == nil {
		return
	}
	p.publish(SubjectIngestCompleted, IngestCompleted{
		RunID:          report.RunID,
		Root:           report.Root,
		FilesExtracted: report.FilesExtracted,
		FilesSkipped:   report.FilesSkipped,
		FilesFailed:    report.FilesFailed,
		Records:        report.Records,
		Chunks:         report.Chunks,
		DurationMs:     report.Duration.Milliseconds(),
		Failures:       report.Failures,
		OccurredAt:     time.Now().UTC(),
	})
}

// IndexCleared announces a reset of collection.
func (p *Publisher) IndexCleared(_ context.Context, collection string) {
	if p == nil {
		return
	}
	p.publish(SubjectIndexCleared, IndexCleared{Collection: collection, OccurredAt: time.Now().UTC()})
}

// publish is fire-and-forget; failures are logged.
func (p *Publisher) publish(suffix string, payload any) {
	subject := p.Subject(suffix)
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("publish event", zap.String("subject", subject), zap.Error(err))
		return
	}
	p.logger.Debug("published event", zap.String("subject", subject))
}

// Close drains the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
