package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("ragctl.vectorstore.qdrant")

const (
	backendQdrant = "qdrant"

	payloadContent = "content"
	payloadID      = "id"
	payloadModel   = "embedding_model"
)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), not the HTTP REST port.
	Port int

	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// RetryBackoff is the initial backoff; it doubles on each retry.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before opening circuit.
	CircuitBreakerThreshold int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// breaker opens after threshold consecutive transient failures and
// closes again 30 seconds after the last one.
type breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	lastFail  time.Time
}

func (b *breaker) record() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFail = time.Now()
}

func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

func (b *breaker) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return false
	}
	if time.Since(b.lastFail) > 30*time.Second {
		b.failures = 0
		return false
	}
	return true
}

// QdrantStore implements Store over Qdrant's native gRPC API. Each point
// carries its chunk text, metadata and the embedding model name in the
// payload.
type QdrantStore struct {
	client  *qdrant.Client
	config  QdrantConfig
	logger  *zap.Logger
	breaker *breaker

	mu      sync.RWMutex
	spec    CollectionSpec
	ready   bool
	openErr error
}

// NewQdrantStore connects and runs a health check.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client:  client,
		config:  config,
		logger:  logger,
		breaker: &breaker{threshold: config.CircuitBreakerThreshold},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port))
	return store, nil
}

// Backend returns "qdrant".
func (s *QdrantStore) Backend() string { return backendQdrant }

// retryOperation retries op with exponential backoff while errors are transient.
func (s *QdrantStore) retryOperation(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			s.breaker.reset()
			return nil
		}
		if s.breaker.open() {
			return fmt.Errorf("%s: circuit breaker open: %w", name, err)
		}
		if !IsTransientError(err) {
			return err
		}
		s.breaker.record()
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}
		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

// EnsureCollection creates the collection when missing and otherwise checks
// that its vector size and stored model match spec.
func (s *QdrantStore) EnsureCollection(ctx context.Context, spec CollectionSpec) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	defer observe(backendQdrant, "ensure_collection", time.Now(), &err)

	if err := spec.Validate(); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("collection", spec.Name), attribute.Int("dimension", spec.Dimension))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spec = spec
	s.ready = false

	var info *qdrant.CollectionInfo
	err = s.retryOperation(ctx, "get_collection_info", func() error {
		res, err := s.client.GetCollectionInfo(ctx, spec.Name)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		info = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("checking collection %s: %w", spec.Name, err)
	}

	if info == nil {
		if err := s.create(ctx, spec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		s.ready, s.openErr = true, nil
		span.SetStatus(codes.Ok, "created")
		return nil
	}

	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && int(size) != spec.Dimension {
		s.openErr = fmt.Errorf("%w: %q has %d dimensions, configured %s (%d dims)",
			ErrEmbeddingMismatch, spec.Name, size, spec.Model, spec.Dimension)
		span.SetStatus(codes.Error, "embedding mismatch")
		return s.openErr
	}
	model, err := s.storedModel(ctx, spec.Name)
	if err != nil {
		return err
	}
	if model != "" && model != spec.Model {
		s.openErr = fmt.Errorf("%w: %q holds %s, configured %s",
			ErrEmbeddingMismatch, spec.Name, model, spec.Model)
		span.SetStatus(codes.Error, "embedding mismatch")
		return s.openErr
	}

	s.ready, s.openErr = true, nil
	span.SetStatus(codes.Ok, "success")
	return nil
}

func (s *QdrantStore) create(ctx context.Context, spec CollectionSpec) error {
	err := s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: spec.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(spec.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", spec.Name, err)
	}
	s.logger.Info("created qdrant collection",
		zap.String("collection", spec.Name),
		zap.Int("dimension", spec.Dimension))
	EntriesStored.WithLabelValues(backendQdrant, spec.Name).Set(0)
	return nil
}

// storedModel reads the model name from any one point; "" when empty.
func (s *QdrantStore) storedModel(ctx context.Context, name string) (string, error) {
	var points []*qdrant.RetrievedPoint
	err := s.retryOperation(ctx, "scroll", func() error {
		res, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Limit:          qdrant.PtrOf(uint32(1)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading collection %s: %w", name, err)
	}
	if len(points) == 0 {
		return "", nil
	}
	return points[0].GetPayload()[payloadModel].GetStringValue(), nil
}

func (s *QdrantStore) checkReady() error {
	if !s.ready {
		if s.openErr != nil {
			return s.openErr
		}
		return ErrCollectionNotFound
	}
	return nil
}

// pointID maps an entry ID onto a UUID point ID. Non-UUID IDs are hashed
// so repeated upserts of the same ID overwrite one point.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// Upsert writes entries as points.
func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	defer observe(backendQdrant, "upsert", time.Now(), &err)
	span.SetAttributes(attribute.Int("entry_count", len(entries)))

	if len(entries) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkReady(); err != nil {
		return err
	}
	if err := checkDimension(entries, s.spec.Dimension); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		payload := make(map[string]*qdrant.Value, len(e.Metadata)+3)
		for k, v := range e.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}
		payload[payloadContent] = qdrant.NewValueString(e.Content)
		payload[payloadID] = qdrant.NewValueString(e.ID)
		payload[payloadModel] = qdrant.NewValueString(s.spec.Model)

		points[i] = &qdrant.PointStruct{
			Id:      pointID(e.ID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payload,
		}
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.spec.Name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", s.spec.Name, err)
	}

	if n, cerr := s.count(ctx); cerr == nil {
		EntriesStored.WithLabelValues(backendQdrant, s.spec.Name).Set(float64(n))
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns the k nearest points.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int) (_ []Match, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	defer observe(backendQdrant, "query", time.Now(), &err)
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if len(vector) != s.spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection expects %d",
			ErrEmbeddingFailed, len(vector), s.spec.Dimension)
	}

	var results []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.spec.Name,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.spec.Name, err)
	}

	matches := make([]Match, 0, len(results))
	for _, p := range results {
		m := Match{
			Distance: DistanceFromCosine(p.GetScore()),
			Metadata: make(map[string]string, len(p.GetPayload())),
		}
		for key, v := range p.GetPayload() {
			str, ok := v.GetKind().(*qdrant.Value_StringValue)
			if !ok {
				continue
			}
			switch key {
			case payloadContent:
				m.Content = str.StringValue
			case payloadID:
				m.ID = str.StringValue
			case payloadModel:
			default:
				m.Metadata[key] = str.StringValue
			}
		}
		matches = append(matches, m)
	}

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

func (s *QdrantStore) count(ctx context.Context) (int, error) {
	var n uint64
	err := s.retryOperation(ctx, "count", func() error {
		res, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.spec.Name,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return err
		}
		n = res
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", s.spec.Name, err)
	}
	return int(n), nil
}

// Count returns the exact number of points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	return s.count(ctx)
}

// Reset drops and recreates the collection.
func (s *QdrantStore) Reset(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Reset")
	defer span.End()
	defer observe(backendQdrant, "reset", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spec.Name == "" {
		return ErrCollectionNotFound
	}
	span.SetAttributes(attribute.String("collection", s.spec.Name))

	err = s.retryOperation(ctx, "delete_collection", func() error {
		err := s.client.DeleteCollection(ctx, s.spec.Name)
		if isNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", s.spec.Name, err)
	}
	if err := s.create(ctx, s.spec); err != nil {
		span.RecordError(err)
		return err
	}
	s.ready, s.openErr = true, nil
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Info describes the collection.
func (s *QdrantStore) Info(ctx context.Context) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	n, err := s.count(ctx)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:      s.spec.Name,
		Model:     s.spec.Model,
		Dimension: s.spec.Dimension,
		Count:     n,
		Backend:   backendQdrant,
	}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
