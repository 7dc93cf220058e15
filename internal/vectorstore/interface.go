package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates a vector of the wrong size or an
	// embedding provider failure surfaced through the store.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmbeddingMismatch means the collection was built with another model.
	ErrEmbeddingMismatch = errors.New("collection was built with a different embedding model")
)

// CollectionSpec names a collection and the embedding model that fills it.
type CollectionSpec struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Validate checks the name pattern and dimension.
func (s CollectionSpec) Validate() error {
	if err := ValidateCollectionName(s.Name); err != nil {
		return err
	}
	if s.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, s.Dimension)
	}
	return nil
}

// Entry is one stored chunk with its embedding.
type Entry struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Match is a query hit.
type Match struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// CollectionInfo describes the active collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
	Backend   string `json:"backend"`
}

// Store is a single-collection vector index.
type Store interface {
	// EnsureCollection opens or creates the collection described by spec.
	// It must be called before the other methods.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error

	// Upsert writes entries; existing IDs are replaced.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to k entries nearest to vector, closest first. k is
	// capped at the collection size; an empty collection yields no matches.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Reset deletes the collection and recreates it empty with the same spec.
	Reset(ctx context.Context) error

	// Info describes the collection.
	Info(ctx context.Context) (*CollectionInfo, error)

	// Backend names the implementation.
	Backend() string

	Close() error
}

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Rejects uppercase, special characters, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// DistanceFromCosine converts cosine similarity between unit vectors to
// squared Euclidean distance.
func DistanceFromCosine(similarity float32) float64 {
	d := 2 * (1 - float64(similarity))
	if d < 0 {
		return 0
	}
	return d
}

func checkDimension(entries []Entry, dim int) error {
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d has %d dimensions, collection expects %d",
				ErrEmbeddingFailed, i, len(e.Vector), dim)
		}
	}
	return nil
}
