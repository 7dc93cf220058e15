package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

// Indexer is the write side of the retrieval engine.
type Indexer interface {
	AddDocuments(ctx context.Context, chunks []document.ChunkRecord) error
	Rebuild(ctx context.Context, chunks []document.ChunkRecord) error
}

// Notifier is told about finished runs. Implementations must not block.
type Notifier interface {
	IngestCompleted(ctx context.Context, report *RunReport)
}

// Service runs the full ingest transaction: process the folder, then
// replace (or extend) the index with the result.
type Service struct {
	pipeline *Pipeline
	index    Indexer
	notifier Notifier
	logger   *zap.Logger
}

// NewService wires a pipeline to an index. notifier and logger may be nil.
func NewService(pipeline *Pipeline, index Indexer, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pipeline: pipeline, index: index, notifier: notifier, logger: logger}
}

// Ingest processes root. With keep=false the collection is cleared and
// refilled in one write; with keep=true chunks are appended. Extraction
// runs before the clear, so a failed run leaves the old index intact.
func (s *Service) Ingest(ctx context.Context, root string, keep bool) (*RunReport, error) {
	chunks, report, err := s.pipeline.ProcessFolderWithReport(ctx, root)
	if err != nil {
		return report, err
	}

	if keep {
		err = s.index.AddDocuments(ctx, chunks)
	} else {
		err = s.index.Rebuild(ctx, chunks)
	}
	if err != nil {
		s.logger.Error("failed to index chunks",
			zap.String("run_id", report.RunID),
			zap.Int("chunks", len(chunks)),
			zap.Error(err))
		return report, fmt.Errorf("indexing %s: %w", root, err)
	}

	if s.notifier != nil {
		s.notifier.IngestCompleted(ctx, report)
	}
	return report, nil
}
