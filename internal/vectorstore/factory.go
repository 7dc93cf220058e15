package vectorstore

import (
	"fmt"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
	"go.uber.org/zap"
)

// NewStore creates the backend named by cfg.Provider:
//   - "chromem" (default): embedded store under cfg.Path, no external service
//   - "qdrant": requires a reachable Qdrant server
//
// The returned store has no open collection; call EnsureCollection next.
func NewStore(cfg config.VectorStoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "chromem", "":
		store, err := NewChromemStore(ChromemConfig{Path: cfg.Path, Compress: cfg.Compress}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "qdrant":
		store, err := NewQdrantStore(QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			UseTLS: cfg.QdrantTLS,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)",
			ErrInvalidConfig, cfg.Provider)
	}
}
