// Package http serves the retrieval engine over a small JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/logging"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/retrieval"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/sanitize"
)

// Retriever is the read side of the index plus Clear.
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

// Deps are the components the handlers call. Notifier may be nil.
type Deps struct {
	Retriever     Retriever
	Ingester      Ingester
	Notifier      ClearNotifier
	DefaultFolder string
	// IngestRoot confines requested folders; empty allows any path
	// without ".." segments.
	IngestRoot    string
	Version       string
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	logger  *zap.Logger
	config  *Config
	metrics *apiMetrics

	// ingestMu rejects overlapping ingest runs.
	ingestMu sync.Mutex
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Retriever == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if deps.Ingester == nil {
		return nil, fmt.Errorf("ingester cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 9090}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	metrics := defaultAPIMetrics(logger)
	e.Use(metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)

			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return err
		}
	})

	s := &Server{echo: e, deps: deps, logger: logger, config: cfg, metrics: metrics}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/query", s.handleQuery)
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/clear", s.handleClear)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	stats, err := s.deps.Retriever.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("status unavailable", zap.Error(err))
		return c.JSON(http.StatusOK, StatusResponse{
			Status:  "degraded",
			Version: s.deps.Version,
			Error:   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok", Version: s.deps.Version, Index: stats})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.TopK < 0 || req.DistanceThreshold < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k and distance_threshold must not be negative")
	}

	results, err := s.deps.Retriever.Query(c.Request().Context(), req.Query, req.TopK, req.DistanceThreshold)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed: "+err.Error())
	}

	s.metrics.recordQuery(c.Request().Context(), len(results))

	resp := QueryResponse{Query: req.Query, Results: make([]QueryHit, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, QueryHit{
			Content:  r.Chunk.Content,
			Metadata: r.Chunk.Metadata,
			Distance: r.Distance,
		})
	}
	if len(resp.Results) == 0 {
		resp.Warning = "no relevant documents found"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	folder := req.Folder
	if folder == "" {
		folder = s.deps.DefaultFolder
	}
	folder, err := sanitize.FolderPath(folder, s.deps.IngestRoot)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid folder: "+err.Error())
	}

	if !s.ingestMu.TryLock() {
		return echo.NewHTTPError(http.StatusConflict, "an ingest run is already in progress")
	}
	defer s.ingestMu.Unlock()

	report, err := s.deps.Ingester.Ingest(c.Request().Context(), folder, req.Keep)
	if err != nil {
		s.logger.Error("ingest failed", zap.String("folder", folder), zap.Error(err))
		if errors.Is(err, ingestion.ErrNotDirectory) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "ingest failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleClear(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.deps.Retriever.Clear(ctx); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "clear failed: "+err.Error())
	}
	collection := ""
	if stats, err := s.deps.Retriever.Stats(ctx); err == nil {
		collection = stats.Collection
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.IndexCleared(ctx, collection)
	}
	return c.JSON(http.StatusOK, ClearResponse{Status: "cleared", Collection: collection})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
