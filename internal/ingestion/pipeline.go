package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ignore"
)

var tracer = otel.Tracer("ragctl.ingestion")

// ErrNotDirectory is returned when the ingest root exists but is a file.
var ErrNotDirectory = errors.New("ingest path is not a directory")

// Dispatcher routes a file to the extractor for its extension.
// *extraction.Registry implements it.
type Dispatcher interface {
	Supports(path string) bool
	Extract(ctx context.Context, path string) ([]document.RawRecord, error)
}

// Splitter turns records into chunks. *chunking.Chunker implements it.
type Splitter interface {
	Split(records []document.RawRecord) ([]document.ChunkRecord, error)
}

// RecordRedactor scrubs a record before hashing. *secrets.Redactor implements it.
type RecordRedactor interface {
	RedactRecord(rec document.RawRecord) document.RawRecord
}

// Options tunes a Pipeline. The zero value extracts sequentially with no
// size limit, no ignore rules, no dedupe and no redaction.
type Options struct {
	Workers     int
	Dedupe      bool
	MaxFileSize int64
	Ignore      *ignore.Parser
	Redactor    RecordRedactor
}

// Pipeline runs folder ingestion.
type Pipeline struct {
	dispatcher Dispatcher
	splitter   Splitter
	opts       Options
	logger     *zap.Logger
}

// NewPipeline builds a pipeline. logger may be nil.
func NewPipeline(dispatcher Dispatcher, splitter Splitter, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{dispatcher: dispatcher, splitter: splitter, opts: opts, logger: logger}
}

// ProcessFolder extracts and chunks every supported file under root.
// A missing root yields no chunks and no error.
func (p *Pipeline) ProcessFolder(ctx context.Context, root string) ([]document.ChunkRecord, error) {
	chunks, _, err := p.ProcessFolderWithReport(ctx, root)
	return chunks, err
}

// candidate is a supported file awaiting extraction.
type candidate struct {
	abs  string
	rel  string
	size int64
}

// ProcessFolderWithReport is ProcessFolder plus run statistics.
func (p *Pipeline) ProcessFolderWithReport(ctx context.Context, root string) ([]document.ChunkRecord, *RunReport, error) {
	start := time.Now()
	report := &RunReport{RunID: uuid.NewString(), Root: root}
	logger := p.logger.With(zap.String("run_id", report.RunID), zap.String("root", root))

	ctx, span := tracer.Start(ctx, "Pipeline.ProcessFolder")
	defer span.End()
	span.SetAttributes(attribute.String("root", root), attribute.String("run_id", report.RunID))

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("ingest folder does not exist")
		return []document.ChunkRecord{}, report, nil
	}
	if err != nil {
		return nil, report, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, report, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var matcher *ignore.Matcher
	if p.opts.Ignore != nil {
		if matcher, err = p.opts.Ignore.Load(root); err != nil {
			return nil, report, fmt.Errorf("loading ignore rules: %w", err)
		}
	}

	files, err := p.walk(ctx, root, matcher, report, logger)
	if err != nil {
		span.RecordError(err)
		return nil, report, err
	}

	results, err := p.extractAll(ctx, files, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, report, err
	}

	records := p.merge(results, report, logger)

	chunks, err := p.splitter.Split(records)
	if err != nil {
		span.RecordError(err)
		return nil, report, fmt.Errorf("chunking: %w", err)
	}

	report.Chunks = len(chunks)
	report.Duration = time.Since(start)
	ChunksTotal.Add(float64(len(chunks)))
	RunDuration.Observe(report.Duration.Seconds())

	logger.Info("processed folder",
		zap.Int("files_seen", report.FilesSeen),
		zap.Int("files_extracted", report.FilesExtracted),
		zap.Int("files_skipped", report.FilesSkipped),
		zap.Int("files_failed", report.FilesFailed),
		zap.Int("records", report.Records),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("chunks", report.Chunks),
		zap.Duration("duration", report.Duration))
	span.SetAttributes(attribute.Int("chunks", len(chunks)), attribute.Int("files_failed", report.FilesFailed))
	span.SetStatus(codes.Ok, "success")
	return chunks, report, nil
}

// walk lists supported regular files, pruning ignored directories.
// Unsupported, ignored and oversized files are recorded in report.
func (p *Pipeline) walk(ctx context.Context, root string, matcher *ignore.Matcher, report *RunReport, logger *zap.Logger) ([]candidate, error) {
	var files []candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("cannot read path, skipping", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("computing relative path: %w", relErr)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && matcher.Match(rel, true) {
				logger.Debug("skipping ignored directory", zap.String("path", rel))
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		report.FilesSeen++
		if matcher.Match(rel, false) {
			p.skip(report, rel, "ignored", logger)
			return nil
		}
		if !p.dispatcher.Supports(path) {
			p.skip(report, rel, "unsupported", logger)
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			report.addFailure(FileResult{Path: rel, Err: statErr, Reason: ReasonStat})
			logger.Warn("failed to stat file", zap.String("path", rel), zap.Error(statErr))
			return nil
		}
		if p.opts.MaxFileSize > 0 && fi.Size() > p.opts.MaxFileSize {
			tooLarge := fmt.Errorf("file is %d bytes, limit %d", fi.Size(), p.opts.MaxFileSize)
			report.addFailure(FileResult{Path: rel, Err: tooLarge, Reason: ReasonTooLarge})
			logger.Warn("file exceeds size limit", zap.String("path", rel), zap.Int64("size", fi.Size()))
			return nil
		}

		files = append(files, candidate{abs: path, rel: rel, size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (p *Pipeline) skip(report *RunReport, rel, why string, logger *zap.Logger) {
	report.FilesSkipped++
	FilesTotal.WithLabelValues("skipped").Inc()
	logger.Debug("skipping file", zap.String("path", rel), zap.String("reason", why))
}

// extractAll runs extraction on up to Workers goroutines. Results keep the
// order of files. Cancellation stops scheduling and returns ctx.Err().
func (p *Pipeline) extractAll(ctx context.Context, files []candidate, logger *zap.Logger) ([]FileResult, error) {
	results := make([]FileResult, len(files))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = p.extractOne(ctx, f, logger)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) extractOne(ctx context.Context, f candidate, logger *zap.Logger) FileResult {
	res := FileResult{Path: f.rel}
	records, err := p.dispatcher.Extract(ctx, f.abs)
	if err != nil {
		res.Err = err
		res.Reason = failureReason(err)
		return res
	}

	for i := range records {
		rec := records[i].WithMeta(document.KeySourcePath, f.rel)
		if p.opts.Redactor != nil {
			rec = p.opts.Redactor.RedactRecord(rec)
		}
		records[i] = rec.WithMeta(document.KeyContentHash, ContentHash(rec.Content))
	}
	res.Records = records
	logger.Debug("extracted file", zap.String("path", f.rel), zap.Int("records", len(records)))
	return res
}

// merge orders results by path, books failures and applies dedupe.
func (p *Pipeline) merge(results []FileResult, report *RunReport, logger *zap.Logger) []document.RawRecord {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	seen := make(map[string]bool)
	var records []document.RawRecord
	for _, res := range results {
		if res.Failed() {
			report.addFailure(res)
			logger.Warn("failed to extract file",
				zap.String("path", res.Path),
				zap.String("reason", res.Reason),
				zap.Error(res.Err))
			continue
		}
		report.FilesExtracted++
		FilesTotal.WithLabelValues("extracted").Inc()

		for _, rec := range res.Records {
			hash := rec.Metadata.ContentHash()
			if p.opts.Dedupe && seen[hash] {
				report.Duplicates++
				DuplicatesTotal.Inc()
				logger.Debug("dropping duplicate record",
					zap.String("path", res.Path),
					zap.String("content_hash", hash))
				continue
			}
			seen[hash] = true
			RecordsTotal.WithLabelValues(string(rec.Metadata.RecordType())).Inc()
			records = append(records, rec)
		}
	}
	report.Records = len(records)
	return records
}
