// Package retrieval embeds chunks into the vector index and answers
// free-text queries with distance-filtered nearest neighbours.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/embeddings"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/vectorstore"
)

var tracer = otel.Tracer("ragctl.retrieval")

const (
	DefaultCollection        = "rag_collection"
	DefaultTopK              = 5
	DefaultDistanceThreshold = 1.2
	DefaultBatchSize         = 64
)

// ErrEmptyQuery is returned for blank query text.
var ErrEmptyQuery = errors.New("query text is empty")

// Config holds engine defaults. Query arguments override TopK and
// DistanceThreshold per call.
type Config struct {
	Collection        string
	TopK              int
	DistanceThreshold float64
	BatchSize         int
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.DistanceThreshold <= 0 {
		c.DistanceThreshold = DefaultDistanceThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Engine owns one collection. Writes (AddDocuments, Clear, Rebuild) are
// serialized; queries run concurrently with each other.
type Engine struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	cfg      Config
	logger   *zap.Logger

	mu sync.RWMutex
}

// Stats describes the index for status surfaces.
type Stats struct {
	Collection        string  `json:"collection"`
	Backend           string  `json:"backend"`
	EmbeddingModel    string  `json:"embedding_model"`
	Dimension         int     `json:"dimension"`
	Count             int     `json:"count"`
	TopK              int     `json:"top_k"`
	DistanceThreshold float64 `json:"distance_threshold"`
}

// New opens the collection for embedder's model. A collection built with a
// different model is not fatal here: the engine is returned and every read
// or write reports vectorstore.ErrEmbeddingMismatch until Clear succeeds.
func New(ctx context.Context, store vectorstore.Store, embedder embeddings.Provider, cfg Config, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	e := &Engine{store: store, embedder: embedder, cfg: cfg, logger: logger}
	err := store.EnsureCollection(ctx, e.spec())
	switch {
	case errors.Is(err, vectorstore.ErrEmbeddingMismatch):
		logger.Warn("collection built with a different embedding model; clear it and re-ingest",
			zap.String("collection", cfg.Collection),
			zap.String("model", embedder.ModelName()),
			zap.Error(err))
	case err != nil:
		return nil, fmt.Errorf("opening collection %s: %w", cfg.Collection, err)
	}
	return e, nil
}

func (e *Engine) spec() vectorstore.CollectionSpec {
	return vectorstore.CollectionSpec{
		Name:      e.cfg.Collection,
		Model:     e.embedder.ModelName(),
		Dimension: e.embedder.Dimension(),
	}
}

// AddDocuments embeds chunks in batches and stores them under fresh UUIDs.
// An empty slice is a no-op.
func (e *Engine) AddDocuments(ctx context.Context, chunks []document.ChunkRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.add(ctx, chunks)
}

func (e *Engine) add(ctx context.Context, chunks []document.ChunkRecord) error {
	if len(chunks) == 0 {
		e.logger.Warn("no documents to add")
		return nil
	}

	ctx, span := tracer.Start(ctx, "Engine.AddDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	start := time.Now()
	for lo := 0; lo < len(chunks); lo += e.cfg.BatchSize {
		hi := min(lo+e.cfg.BatchSize, len(chunks))
		batch := chunks[lo:hi]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := e.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("embedding chunks %d-%d: %w", lo, hi-1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: got %d vectors for %d chunks", embeddings.ErrEmbeddingFailed, len(vectors), len(batch))
		}

		entries := make([]vectorstore.Entry, len(batch))
		for i, c := range batch {
			entries[i] = vectorstore.Entry{
				ID:       uuid.NewString(),
				Vector:   vectors[i],
				Content:  c.Content,
				Metadata: c.Metadata.Clone(),
			}
		}
		if err := e.store.Upsert(ctx, entries); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("storing chunks %d-%d: %w", lo, hi-1, err)
		}
	}

	ChunksIndexed.Add(float64(len(chunks)))
	e.logger.Info("added documents to vector store",
		zap.Int("count", len(chunks)),
		zap.String("collection", e.cfg.Collection),
		zap.Duration("duration", time.Since(start)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns up to topK chunks with distance strictly below threshold,
// closest first. topK <= 0 and threshold <= 0 select the configured
// defaults. An empty collection or no surviving candidate yields an empty
// slice and no error.
func (e *Engine) Query(ctx context.Context, text string, topK int, threshold float64) ([]document.QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	if threshold <= 0 {
		threshold = e.cfg.DistanceThreshold
	}

	ctx, span := tracer.Start(ctx, "Engine.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK), attribute.Float64("threshold", threshold))

	e.mu.RLock()
	defer e.mu.RUnlock()

	start := time.Now()
	defer func() { QueryDuration.Observe(time.Since(start).Seconds()) }()

	count, err := e.store.Count(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("counting collection: %w", err)
	}
	if count == 0 {
		e.logger.Warn("collection is empty; ingest documents first",
			zap.String("collection", e.cfg.Collection))
		return []document.QueryResult{}, nil
	}

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := e.store.Query(ctx, vector, min(topK, count))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]document.QueryResult, 0, len(matches))
	for _, m := range matches {
		meta := document.Metadata(m.Metadata)
		fields := []zap.Field{
			zap.String("source", meta.Source()),
			zap.Float64("distance", m.Distance),
		}
		if m.Distance < threshold {
			e.logger.Debug("retrieved chunk", fields...)
			results = append(results, document.QueryResult{
				Chunk:    document.ChunkRecord{Content: m.Content, Metadata: meta},
				Distance: m.Distance,
			})
			continue
		}
		e.logger.Debug("filtered chunk", append(fields, zap.Float64("threshold", threshold))...)
		CandidatesFiltered.Inc()
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })

	if len(results) == 0 {
		e.logger.Warn("no chunks within distance threshold",
			zap.Int("candidates", len(matches)),
			zap.Float64("threshold", threshold))
	}
	ResultsReturned.Observe(float64(len(results)))
	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Clear deletes and recreates the collection. It also resolves an
// embedding model mismatch.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clear(ctx)
}

func (e *Engine) clear(ctx context.Context) error {
	if err := e.store.Reset(ctx); err != nil {
		e.logger.Error("failed to clear collection",
			zap.String("collection", e.cfg.Collection),
			zap.Error(err))
		return fmt.Errorf("clearing collection %s: %w", e.cfg.Collection, err)
	}
	e.logger.Info("cleared collection", zap.String("collection", e.cfg.Collection))
	return nil
}

// Rebuild clears the collection and adds chunks as one write, so no other
// write lands between the two steps.
func (e *Engine) Rebuild(ctx context.Context, chunks []document.ChunkRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.clear(ctx); err != nil {
		return err
	}
	return e.add(ctx, chunks)
}

// Count returns the number of indexed chunks.
func (e *Engine) Count(ctx context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Count(ctx)
}

// Stats describes the collection and the query defaults.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	info, err := e.store.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Collection:        info.Name,
		Backend:           info.Backend,
		EmbeddingModel:    info.Model,
		Dimension:         info.Dimension,
		Count:             info.Count,
		TopK:              e.cfg.TopK,
		DistanceThreshold: e.cfg.DistanceThreshold,
	}, nil
}

// Close releases the store and the embedding provider.
func (e *Engine) Close() error {
	return errors.Join(e.store.Close(), e.embedder.Close())
}
