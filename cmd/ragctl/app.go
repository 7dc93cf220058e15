package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/chunking"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/embeddings"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/events"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/extraction"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ignore"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/logging"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/retrieval"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/secrets"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/telemetry"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/vectorstore"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	zap       *zap.Logger
	telemetry *telemetry.Telemetry
	engine    *retrieval.Engine
	redactor  *secrets.Redactor
	publisher *events.Publisher

	// built lazily; query and clear never extract
	service *ingestion.Service
}

// loadConfig applies the global flags on top of file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newApp wires logging, telemetry, the embedding provider, the vector
// store and the retrieval engine. Logs always go to stderr so stdout stays
// free for command output and MCP frames.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logCfg.Output = logging.OutputConfig{Stderr: true}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, zap: logger.Underlying()}

	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		BatchSize: cfg.Embeddings.BatchSize,
	}, a.zap)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	embedder = embeddings.Instrument(embedder, embeddings.NewMetrics(a.zap))

	store, err := vectorstore.NewStore(cfg.VectorStore, a.zap)
	if err != nil {
		_ = embedder.Close()
		a.close(ctx)
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	a.engine, err = retrieval.New(ctx, store, embedder, retrieval.Config{
		Collection:        cfg.VectorStore.Collection,
		TopK:              cfg.VectorStore.TopK,
		DistanceThreshold: cfg.VectorStore.DistanceThreshold,
		BatchSize:         cfg.Embeddings.BatchSize,
	}, a.zap)
	if err != nil {
		_ = errors.Join(store.Close(), embedder.Close())
		a.close(ctx)
		return nil, err
	}

	if cfg.Ingest.RedactSecrets {
		allowlist, err := secrets.LoadAllowlists(cfg.Data.Folder, cfg.Ingest.AllowlistPath)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to load secret allowlist: %w", err)
		}
		detector, err := secrets.NewDetector(allowlist)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to create secret detector: %w", err)
		}
		a.redactor = secrets.NewRedactor(detector, a.zap)
	}

	a.publisher, err = events.Connect(cfg.Events, a.zap)
	if err != nil {
		// events are advisory; the index works without them
		a.zap.Warn("events disabled", zap.Error(err))
	}
	return a, nil
}

// ingestService builds the extraction pipeline on first use.
func (a *app) ingestService() (*ingestion.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	registry, err := extraction.NewDefaultRegistry(a.cfg, nil, a.zap)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractors: %w", err)
	}
	chunker, err := chunking.New(chunking.Config{
		ChunkSize:    a.cfg.Chunking.ChunkSize,
		ChunkOverlap: a.cfg.Chunking.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	opts := ingestion.Options{
		Workers:     a.cfg.Ingest.Workers,
		Dedupe:      a.cfg.Ingest.Dedupe,
		MaxFileSize: a.cfg.Ingest.MaxFileSize(),
		Ignore:      ignore.NewParser(a.cfg.Ingest.IgnoreFiles, ignore.DirPatterns(a.cfg.Ingest.SkipDirs)),
	}
	if a.redactor != nil {
		opts.Redactor = a.redactor
	}

	var notifier ingestion.Notifier
	if a.publisher != nil {
		notifier = a.publisher
	}
	pipeline := ingestion.NewPipeline(registry, chunker, opts, a.zap)
	a.service = ingestion.NewService(pipeline, a.engine, notifier, a.zap)
	return a.service, nil
}

// folderArg picks the positional folder or the configured default.
func (a *app) folderArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.cfg.Data.Folder
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.zap.Warn("closing index", zap.Error(err))
		}
	}
	if err := a.publisher.Close(); err != nil {
		a.zap.Warn("closing event publisher", zap.Error(err))
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.zap.Warn("telemetry shutdown", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
