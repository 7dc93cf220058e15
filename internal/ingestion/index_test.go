package ingestion_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/extraction"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/retrieval"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/vectorstore"
)

// topicEmbedder puts text mentioning sign up on one axis and everything
// else on another, so distances are known in advance.
type topicEmbedder struct{}

func (topicEmbedder) embed(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "sign up") {
		return []float32{1, 0, 0}
	}
	return []float32{0, 1, 0}
}

func (e topicEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (topicEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	// mostly sign-up, slightly off axis
	n := float32(math.Sqrt(0.9*0.9 + 0.1*0.1))
	if strings.Contains(strings.ToLower(text), "sign up") {
		return []float32{0.9 / n, 0.1 / n, 0}, nil
	}
	return []float32{0, 0, 1}, nil
}

func (topicEmbedder) Dimension() int    { return 3 }
func (topicEmbedder) ModelName() string { return "topic-test" }
func (topicEmbedder) Close() error      { return nil }

func TestProcessFolder_IndexedAndQueried(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"signup.txt":  "Registration: the user enters email and password, then clicks Sign Up.",
		"finance.txt": "Quarterly revenue grew in the northern region.",
	})

	text, err := extraction.NewTextExtractor(nil)
	require.NoError(t, err)
	registry := extraction.NewRegistry()
	registry.Register(text, ".txt")

	pipeline := ingestion.NewPipeline(registry, newChunker(t), ingestion.Options{}, nil)
	chunks, err := pipeline.ProcessFolder(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)
	engine, err := retrieval.New(context.Background(), store, topicEmbedder{}, retrieval.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	require.NoError(t, engine.AddDocuments(context.Background(), chunks))

	results, err := engine.Query(context.Background(), "How does a user sign up?", 0, 0)
	require.NoError(t, err)
	require.Len(t, results, 1, "the finance chunk is beyond the default threshold")

	hit := results[0]
	assert.Contains(t, hit.Chunk.Content, "Sign Up")
	assert.Equal(t, "signup.txt", hit.Chunk.Metadata.Source())
	assert.Equal(t, document.TypeText, hit.Chunk.Metadata.RecordType())
	assert.NotEmpty(t, hit.Chunk.Metadata.ContentHash())
	assert.Less(t, hit.Distance, retrieval.DefaultDistanceThreshold)
	assert.InDelta(t, 2*(1-0.9/math.Sqrt(0.82)), hit.Distance, 1e-3)
}
