package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("ragctl.vectorstore.chromem")

const backendChromem = "chromem"

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the persistence directory; "~" expands to the home directory.
	// Empty keeps everything in memory.
	Path string

	// Compress enables gzip compression of the stored gob files.
	Compress bool
}

// ChromemStore implements Store with chromem-go.
//
// Vectors are supplied by the caller; the collection's embedding function
// is never invoked.
type ChromemStore struct {
	db       *chromem.DB
	cfg      ChromemConfig
	logger   *zap.Logger
	manifest *manifest

	mu      sync.RWMutex
	spec    CollectionSpec
	coll    *chromem.Collection
	openErr error
}

// NewChromemStore opens (or creates) the database directory.
func NewChromemStore(cfg ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	path := ""
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		path, err = expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	m, err := loadManifest(path)
	if err != nil {
		return nil, err
	}

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
		zap.Bool("in_memory", path == ""))

	return &ChromemStore{db: db, cfg: cfg, logger: logger, manifest: m}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// noEmbedding satisfies chromem's EmbeddingFunc; vectors always arrive precomputed.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem store expects precomputed embeddings")
}

// Backend returns "chromem".
func (s *ChromemStore) Backend() string { return backendChromem }

// EnsureCollection opens the named collection, creating it if needed.
func (s *ChromemStore) EnsureCollection(ctx context.Context, spec CollectionSpec) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()
	defer observe(backendChromem, "ensure_collection", time.Now(), &err)

	if err := spec.Validate(); err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("collection", spec.Name),
		attribute.String("model", spec.Model),
		attribute.Int("dimension", spec.Dimension))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spec = spec

	existing := s.db.GetCollection(spec.Name, noEmbedding)
	if recorded, ok := s.manifest.get(spec.Name); ok && existing != nil && existing.Count() > 0 {
		if recorded.Model != spec.Model || recorded.Dimension != spec.Dimension {
			s.coll = nil
			s.openErr = fmt.Errorf("%w: %q holds %s (%d dims), configured %s (%d dims)",
				ErrEmbeddingMismatch, spec.Name, recorded.Model, recorded.Dimension, spec.Model, spec.Dimension)
			span.SetStatus(codes.Error, "embedding mismatch")
			return s.openErr
		}
	}

	if err := s.open(spec); err != nil {
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// open must be called with mu held.
func (s *ChromemStore) open(spec CollectionSpec) error {
	coll, err := s.db.GetOrCreateCollection(spec.Name, map[string]string{
		"embedding_model": spec.Model,
		"dimension":       strconv.Itoa(spec.Dimension),
	}, noEmbedding)
	if err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", spec.Name, err)
	}
	if err := s.manifest.put(spec); err != nil {
		return err
	}
	s.coll = coll
	s.openErr = nil
	EntriesStored.WithLabelValues(backendChromem, spec.Name).Set(float64(coll.Count()))
	return nil
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	if s.coll == nil {
		if s.openErr != nil {
			return nil, s.openErr
		}
		return nil, ErrCollectionNotFound
	}
	return s.coll, nil
}

// Upsert stores entries, replacing any with the same ID.
func (s *ChromemStore) Upsert(ctx context.Context, entries []Entry) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	defer observe(backendChromem, "upsert", time.Now(), &err)
	span.SetAttributes(attribute.Int("entry_count", len(entries)))

	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection()
	if err != nil {
		return err
	}
	if err := checkDimension(entries, s.spec.Dimension); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Content,
			Metadata:  e.Metadata,
			Embedding: e.Vector,
		}
	}
	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	EntriesStored.WithLabelValues(backendChromem, s.spec.Name).Set(float64(coll.Count()))
	s.logger.Debug("added entries to chromem",
		zap.String("collection", s.spec.Name),
		zap.Int("count", len(entries)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns the k nearest entries.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int) (_ []Match, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	defer observe(backendChromem, "query", time.Now(), &err)
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	count := coll.Count()
	if count == 0 {
		return []Match{}, nil
	}
	if len(vector) != s.spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection expects %d",
			ErrEmbeddingFailed, len(vector), s.spec.Dimension)
	}
	if k > count {
		k = count
	}

	results, err := coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.spec.Name, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Distance: DistanceFromCosine(r.Similarity),
		}
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Count returns the number of stored entries.
func (s *ChromemStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.collection()
	if err != nil {
		return 0, err
	}
	return coll.Count(), nil
}

// Reset drops and recreates the collection.
func (s *ChromemStore) Reset(ctx context.Context) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Reset")
	defer span.End()
	defer observe(backendChromem, "reset", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spec.Name == "" {
		return ErrCollectionNotFound
	}
	span.SetAttributes(attribute.String("collection", s.spec.Name))

	if err := s.db.DeleteCollection(s.spec.Name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", s.spec.Name, err)
	}
	s.coll = nil
	if err := s.open(s.spec); err != nil {
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Info describes the open collection.
func (s *ChromemStore) Info(context.Context) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:      s.spec.Name,
		Model:     s.spec.Model,
		Dimension: s.spec.Dimension,
		Count:     coll.Count(),
		Backend:   backendChromem,
	}, nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}
