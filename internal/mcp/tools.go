package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/sanitize"
)

const (
	toolQuery  = "rag_query"
	toolIngest = "rag_ingest"
	toolClear  = "rag_clear"
)

var (
	errInvalidInput = errors.New("invalid input")
	errIngestBusy   = errors.New("an ingest run is already in progress")
)

type queryInput struct {
	Query             string  `json:"query" jsonschema:"Natural language query, e.g. a feature or requirement to generate test cases for"`
	TopK              int     `json:"top_k,omitempty" jsonschema:"Maximum chunks to return (default: configured top_k)"`
	DistanceThreshold float64 `json:"distance_threshold,omitempty" jsonschema:"Drop chunks at or beyond this distance; lower is more similar (default: configured threshold)"`
}

type queryHit struct {
	Content  string            `json:"content" jsonschema:"Chunk text"`
	Source   string            `json:"source" jsonschema:"File name the chunk came from"`
	Distance float64           `json:"distance" jsonschema:"Distance to the query, lower is more similar"`
	Metadata map[string]string `json:"metadata" jsonschema:"All chunk metadata"`
}

type queryOutput struct {
	Query   string     `json:"query" jsonschema:"Query used"`
	Results []queryHit `json:"results" jsonschema:"Chunks ordered by ascending distance"`
	Count   int        `json:"count" jsonschema:"Number of results"`
	Warning string     `json:"warning,omitempty" jsonschema:"Set when nothing relevant was found"`
}

type ingestInput struct {
	Folder string `json:"folder,omitempty" jsonschema:"Folder to ingest (default: configured data folder)"`
	Keep   bool   `json:"keep,omitempty" jsonschema:"Append to the existing collection instead of rebuilding it"`
}

type ingestOutput struct {
	RunID          string              `json:"run_id" jsonschema:"Ingest run identifier"`
	Folder         string              `json:"folder" jsonschema:"Folder that was ingested"`
	FilesExtracted int                 `json:"files_extracted" jsonschema:"Files that produced records"`
	FilesSkipped   int                 `json:"files_skipped" jsonschema:"Ignored or unsupported files"`
	FilesFailed    int                 `json:"files_failed" jsonschema:"Files that failed extraction"`
	Chunks         int                 `json:"chunks" jsonschema:"Chunks written to the index"`
	Failures       []ingestion.Failure `json:"failures,omitempty" jsonschema:"Per-file failures"`
}

type clearInput struct{}

type clearOutput struct {
	Collection string `json:"collection" jsonschema:"Collection that was cleared"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolQuery,
		Description: "Retrieve document chunks relevant to a query from the ingested knowledge base. Use the results as grounding context when writing test cases or use cases.",
	}, s.handleQuery)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolIngest,
		Description: "Ingest a folder of documents (text, PDF, Word, images) into the knowledge base. Rebuilds the collection unless keep is set.",
	}, s.handleIngest)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolClear,
		Description: "Delete every chunk from the knowledge base collection.",
	}, s.handleClear)
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, args queryInput) (res *mcp.CallToolResult, out queryOutput, err error) {
	done := s.metrics.start(ctx, toolQuery)
	defer func() { done(err) }()

	if strings.TrimSpace(args.Query) == "" {
		return nil, queryOutput{}, fmt.Errorf("%w: query is required", errInvalidInput)
	}
	if args.TopK < 0 || args.DistanceThreshold < 0 {
		return nil, queryOutput{}, fmt.Errorf("%w: top_k and distance_threshold must not be negative", errInvalidInput)
	}

	results, err := s.retriever.Query(ctx, args.Query, args.TopK, args.DistanceThreshold)
	if err != nil {
		return nil, queryOutput{}, fmt.Errorf("query failed: %w", err)
	}

	s.metrics.recordHits(ctx, len(results))

	out = queryOutput{Query: args.Query, Results: make([]queryHit, 0, len(results)), Count: len(results)}
	for _, r := range results {
		out.Results = append(out.Results, s.hit(r))
	}
	if out.Count == 0 {
		out.Warning = "no relevant documents found"
		return textResult(out.Warning), out, nil
	}
	return textResult(formatHits(out.Results)), out, nil
}

func (s *Server) hit(r document.QueryResult) queryHit {
	content := r.Chunk.Content
	if s.redactor != nil {
		content = s.redactor.Redact(content).Content
	}
	return queryHit{
		Content:  content,
		Source:   r.Chunk.Metadata.Source(),
		Distance: r.Distance,
		Metadata: r.Chunk.Metadata.Clone(),
	}
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, args ingestInput) (res *mcp.CallToolResult, out ingestOutput, err error) {
	done := s.metrics.start(ctx, toolIngest)
	defer func() { done(err) }()

	folder := args.Folder
	if folder == "" {
		folder = s.cfg.DefaultFolder
	}
	folder, err = sanitize.FolderPath(folder, s.cfg.IngestRoot)
	if err != nil {
		return nil, ingestOutput{}, fmt.Errorf("%w: %w", errInvalidInput, err)
	}
	if !s.ingestMu.TryLock() {
		return nil, ingestOutput{}, errIngestBusy
	}
	defer s.ingestMu.Unlock()

	report, err := s.ingester.Ingest(ctx, folder, args.Keep)
	if err != nil {
		s.logger.Error("ingest failed", zap.String("folder", folder), zap.Error(err))
		return nil, ingestOutput{}, fmt.Errorf("ingest failed: %w", err)
	}

	out = ingestOutput{
		RunID:          report.RunID,
		Folder:         folder,
		FilesExtracted: report.FilesExtracted,
		FilesSkipped:   report.FilesSkipped,
		FilesFailed:    report.FilesFailed,
		Chunks:         report.Chunks,
		Failures:       report.Failures,
	}
	msg := fmt.Sprintf("Ingested %s: %d files, %d chunks, %d failures",
		folder, out.FilesExtracted, out.Chunks, out.FilesFailed)
	return textResult(msg), out, nil
}

func (s *Server) handleClear(ctx context.Context, _ *mcp.CallToolRequest, _ clearInput) (res *mcp.CallToolResult, out clearOutput, err error) {
	done := s.metrics.start(ctx, toolClear)
	defer func() { done(err) }()

	if err = s.retriever.Clear(ctx); err != nil {
		return nil, clearOutput{}, fmt.Errorf("clear failed: %w", err)
	}
	if stats, statErr := s.retriever.Stats(ctx); statErr == nil {
		out.Collection = stats.Collection
	}
	if s.notifier != nil {
		s.notifier.IndexCleared(ctx, out.Collection)
	}
	return textResult("Cleared collection " + out.Collection), out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func formatHits(hits []queryHit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (distance %.3f)\n%s", i+1, h.Source, h.Distance, h.Content)
	}
	return b.String()
}
