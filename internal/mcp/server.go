package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/retrieval"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/secrets"
)

// Retriever is the subset of retrieval.Engine the tools call.
type Retriever interface {
	Query(ctx context.Context, text string, topK int, threshold float64) ([]document.QueryResult, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*retrieval.Stats, error)
}

// Ingester runs a full ingest transaction.
type Ingester interface {
	Ingest(ctx context.Context, root string, keep bool) (*ingestion.RunReport, error)
}

// ClearNotifier is told when the collection was reset.
type ClearNotifier interface {
	IndexCleared(ctx context.Context, collection string)
}

// Server registers the RAG tools on an MCP server.
type Server struct {
	mcp       *mcp.Server
	retriever Retriever
	ingester  Ingester
	notifier  ClearNotifier
	redactor  *secrets.Redactor
	metrics   *Metrics
	logger    *zap.Logger
	cfg       *Config

	ingestMu sync.Mutex
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "ragctl")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// DefaultFolder is ingested when rag_ingest gets no folder.
	DefaultFolder string

	// IngestRoot confines rag_ingest folders; empty allows any path
	// without ".." segments.
	IngestRoot string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:          "ragctl",
		Version:       "dev",
		DefaultFolder: "rag_data_source",
		Logger:        zap.NewNop(),
	}
}

// NewServer creates the MCP server. notifier and redactor are optional.
func NewServer(cfg *Config, retriever Retriever, ingester Ingester, notifier ClearNotifier, redactor *secrets.Redactor) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if ingester == nil {
		return nil, errors.New("ingester is required")
	}

	s := &Server{
		mcp:       mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		retriever: retriever,
		ingester:  ingester,
		notifier:  notifier,
		redactor:  redactor,
		metrics:   NewMetrics(cfg.Logger),
		logger:    cfg.Logger,
		cfg:       cfg,
	}
	s.registerTools()
	return s, nil
}

// Run serves on stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// MCPServer exposes the underlying server for custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
