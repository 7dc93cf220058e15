package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/retrieval"
)

type fakeRetriever struct {
	results  []document.QueryResult
	err      error
	clearErr error
	cleared  int

	gotTopK      int
	gotThreshold float64
}

func (f *fakeRetriever) Query(_ context.Context, text string, topK int, threshold float64) ([]document.QueryResult, error) {
	f.gotTopK, f.gotThreshold = topK, threshold
	if text == "" {
		return nil, retrieval.ErrEmptyQuery
	}
	return f.results, f.err
}

func (f *fakeRetriever) Clear(context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared++
	f.results = nil
	return nil
}

func (f *fakeRetriever) Stats(context.Context) (*retrieval.Stats, error) {
	return &retrieval.Stats{Collection: "rag_collection", Backend: "chromem", Count: len(f.results), TopK: 5, DistanceThreshold: 1.2}, nil
}

type fakeIngester struct {
	mu      sync.Mutex
	folders []string
	keep    []bool
	err     error
	block   chan struct{}
}

func (f *fakeIngester) Ingest(_ context.Context, root string, keep bool) (*ingestion.RunReport, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders = append(f.folders, root)
	f.keep = append(f.keep, keep)
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.RunReport{RunID: "run-1", Root: root, FilesExtracted: 2, Chunks: 4}, nil
}

type clearRecorder struct{ collections []string }

func (c *clearRecorder) IndexCleared(_ context.Context, collection string) {
	c.collections = append(c.collections, collection)
}

func newTestServer(t *testing.T, r *fakeRetriever, i *fakeIngester, n ClearNotifier) *Server {
	t.Helper()
	deps := Deps{Retriever: r, Ingester: i, DefaultFolder: "rag_data_source", Version: "test"}
	if n != nil {
		deps.Notifier = n
	}
	s, err := NewServer(deps, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s := newTestServer(t, &fakeRetriever{}, &fakeIngester{}, nil)
		assert.Equal(t, "127.0.0.1", s.config.Host)
		assert.Equal(t, 9090, s.config.Port)
	})

	t.Run("requires retriever", func(t *testing.T) {
		_, err := NewServer(Deps{Ingester: &fakeIngester{}}, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "retriever")
	})

	t.Run("requires ingester", func(t *testing.T) {
		_, err := NewServer(Deps{Retriever: &fakeRetriever{}}, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "ingester")
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := NewServer(Deps{Retriever: &fakeRetriever{}, Ingester: &fakeIngester{}}, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{}, &fakeIngester{}, nil)
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleMetrics(t *testing.T) {
	s := newTestServer(t, &fakeRetriever{}, &fakeIngester{}, nil)
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHandleStatus(t *testing.T) {
	r := &fakeRetriever{results: []document.QueryResult{{}}}
	s := newTestServer(t, r, &fakeIngester{}, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	require.NotNil(t, resp.Index)
	assert.Equal(t, "rag_collection", resp.Index.Collection)
	assert.Equal(t, 1, resp.Index.Count)
}

func TestHandleQuery(t *testing.T) {
	t.Run("returns results with metadata and distance", func(t *testing.T) {
		r := &fakeRetriever{results: []document.QueryResult{{
			Chunk: document.ChunkRecord{
				Content:  "Login requires email and password.",
				Metadata: document.Metadata{document.KeySource: "reqs.pdf"},
			},
			Distance: 0.4,
		}}}
		s := newTestServer(t, r, &fakeIngester{}, nil)

		rec := do(t, s, http.MethodPost, "/api/v1/query", QueryRequest{Query: "login", TopK: 3, DistanceThreshold: 0.9})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp QueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "reqs.pdf", resp.Results[0].Metadata.Source())
		assert.InDelta(t, 0.4, resp.Results[0].Distance, 1e-9)
		assert.Empty(t, resp.Warning)
		assert.Equal(t, 3, r.gotTopK)
		assert.InDelta(t, 0.9, r.gotThreshold, 1e-9)
	})

	t.Run("empty result is an empty array with a warning", func(t *testing.T) {
		s := newTestServer(t, &fakeRetriever{}, &fakeIngester{}, nil)

		rec := do(t, s, http.MethodPost, "/api/v1/query", QueryRequest{Query: "weather"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"results":[]`)
		assert.Contains(t, rec.Body.String(), `"warning"`)
	})

	t.Run("missing query", func(t *testing.T) {
		s := newTestServer(t, &fakeRetriever{}, &fakeIngester{}, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/query", QueryRequest{Query: "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative top_k", func(t *testing.T) {
		s := newTestServer(t, &fakeRetriever{}, &fakeIngester{}, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/query", QueryRequest{Query: "q", TopK: -1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t, &fakeRetriever{}, &fakeIngester{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("index failure is a server error", func(t *testing.T) {
		s := newTestServer(t, &fakeRetriever{err: errors.New("store unavailable")}, &fakeIngester{}, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/query", QueryRequest{Query: "login"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleIngest(t *testing.T) {
	t.Run("defaults to the configured folder", func(t *testing.T) {
		ing := &fakeIngester{}
		s := newTestServer(t, &fakeRetriever{}, ing, nil)

		rec := do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{})
		require.Equal(t, http.StatusOK, rec.Code)

		var report ingestion.RunReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, "run-1", report.RunID)
		assert.Equal(t, 4, report.Chunks)
		want, err := filepath.Abs("rag_data_source")
		require.NoError(t, err)
		assert.Equal(t, []string{want}, ing.folders)
		assert.Equal(t, []bool{false}, ing.keep)
	})

	t.Run("explicit folder and keep", func(t *testing.T) {
		ing := &fakeIngester{}
		s := newTestServer(t, &fakeRetriever{}, ing, nil)

		rec := do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{Folder: "/data/specs", Keep: true})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"/data/specs"}, ing.folders)
		assert.Equal(t, []bool{true}, ing.keep)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		ing := &fakeIngester{}
		s := newTestServer(t, &fakeRetriever{}, ing, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{Folder: "../../etc"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, ing.folders)
	})

	t.Run("folder outside the ingest root", func(t *testing.T) {
		ing := &fakeIngester{}
		s, err := NewServer(Deps{
			Retriever:  &fakeRetriever{},
			Ingester:   ing,
			IngestRoot: t.TempDir(),
		}, zap.NewNop(), nil)
		require.NoError(t, err)
		rec := do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{Folder: "/etc"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, ing.folders)
	})

	t.Run("not a directory", func(t *testing.T) {
		ing := &fakeIngester{err: fmt.Errorf("x: %w", ingestion.ErrNotDirectory)}
		s := newTestServer(t, &fakeRetriever{}, ing, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{Folder: "file.txt"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("index failure", func(t *testing.T) {
		ing := &fakeIngester{err: errors.New("indexing failed")}
		s := newTestServer(t, &fakeRetriever{}, ing, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("overlapping run is rejected", func(t *testing.T) {
		ing := &fakeIngester{block: make(chan struct{})}
		s := newTestServer(t, &fakeRetriever{}, ing, nil)

		done := make(chan int)
		go func() {
			done <- do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{}).Code
		}()

		require.Eventually(t, func() bool {
			if s.ingestMu.TryLock() {
				s.ingestMu.Unlock()
				return false
			}
			return true
		}, time.Second, 5*time.Millisecond)

		rec := do(t, s, http.MethodPost, "/api/v1/ingest", IngestRequest{})
		assert.Equal(t, http.StatusConflict, rec.Code)

		close(ing.block)
		assert.Equal(t, http.StatusOK, <-done)
	})
}

func TestHandleClear(t *testing.T) {
	t.Run("clears and notifies", func(t *testing.T) {
		r := &fakeRetriever{results: []document.QueryResult{{}}}
		n := &clearRecorder{}
		s := newTestServer(t, r, &fakeIngester{}, n)

		rec := do(t, s, http.MethodPost, "/api/v1/clear", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"cleared","collection":"rag_collection"}`, rec.Body.String())
		assert.Equal(t, 1, r.cleared)
		assert.Equal(t, []string{"rag_collection"}, n.collections)

		// clear then query is empty
		rec = do(t, s, http.MethodPost, "/api/v1/query", QueryRequest{Query: "anything"})
		assert.Contains(t, rec.Body.String(), `"results":[]`)
	})

	t.Run("failure", func(t *testing.T) {
		n := &clearRecorder{}
		s := newTestServer(t, &fakeRetriever{clearErr: errors.New("boom")}, &fakeIngester{}, n)
		rec := do(t, s, http.MethodPost, "/api/v1/clear", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, n.collections)
	})
}
