package http

import (
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/retrieval"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version,omitempty"`
	Index   *retrieval.Stats `json:"index,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// QueryRequest is the request body for POST /api/v1/query. Zero values
// select the configured defaults.
type QueryRequest struct {
	Query             string  `json:"query"`
	TopK              int     `json:"top_k,omitempty"`
	DistanceThreshold float64 `json:"distance_threshold,omitempty"`
}

// QueryHit is one retrieved chunk.
type QueryHit struct {
	Content  string            `json:"content"`
	Metadata document.Metadata `json:"metadata"`
	Distance float64           `json:"distance"`
}

// QueryResponse is the response body for POST /api/v1/query. Results is
// never null.
type QueryResponse struct {
	Query   string     `json:"query"`
	Results []QueryHit `json:"results"`
	Warning string     `json:"warning,omitempty"`
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	Folder string `json:"folder,omitempty"`
	Keep   bool   `json:"keep,omitempty"`
}

// ClearResponse is the response body for POST /api/v1/clear.
type ClearResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection,omitempty"`
}
