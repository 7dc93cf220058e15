package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/documentloaders"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

// DefaultMinTextChars is the non-whitespace floor below which a PDF is
// treated as scanned.
const DefaultMinTextChars = 50

// PageReader returns the text of every page of a PDF, in order.
type PageReader func(ctx context.Context, path string) ([]string, error)

// PageOCR renders and recognises every page of a PDF.
type PageOCR interface {
	PDFPages(ctx context.Context, path string) ([]string, error)
}

// PDFConfig configures PDFExtractor.
type PDFConfig struct {
	MinTextChars int
	OCRFallback  bool
}

// PDFExtractor reads embedded text page by page and falls back to OCR when
// the document looks scanned or cannot be parsed. It emits pdf and
// scanned_pdf records; pdf_markdown is reserved for a layout-aware
// converter producing Markdown pages.
type PDFExtractor struct {
	cfg       PDFConfig
	readPages PageReader
	ocr       PageOCR
	logger    *zap.Logger
}

// NewPDFExtractor builds a PDF extractor. A nil reader uses the langchaingo
// PDF loader; a nil ocr disables the fallback.
func NewPDFExtractor(cfg PDFConfig, reader PageReader, ocr PageOCR, logger *zap.Logger) *PDFExtractor {
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	if reader == nil {
		reader = LoadPDFPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFExtractor{cfg: cfg, readPages: reader, ocr: ocr, logger: logger}
}

// Extract returns one record per non-empty page, or a single scanned_pdf
// record built from OCR output.
func (p *PDFExtractor) Extract(ctx context.Context, path string) ([]document.RawRecord, error) {
	name := filepath.Base(path)

	pages, err := p.readPages(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("direct pdf extraction failed, trying ocr",
			zap.String("file", name), zap.Error(err))
		return p.scanned(ctx, path, err)
	}

	if n := nonSpaceCount(pages); n < p.cfg.MinTextChars {
		p.logger.Warn("pdf seems to be scanned, attempting ocr",
			zap.String("file", name),
			zap.Int("text_chars", n),
			zap.Int("min_text_chars", p.cfg.MinTextChars))
		return p.scanned(ctx, path, nil)
	}

	records := make([]document.RawRecord, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec := document.NewRawRecord(text, name, document.TypePDF).WithPage(i + 1)
		records = append(records, rec)
	}
	return records, nil
}

// scanned runs the OCR fallback. directErr is the direct extraction
// failure, if any, and is reported when the fallback is disabled.
func (p *PDFExtractor) scanned(ctx context.Context, path string, directErr error) ([]document.RawRecord, error) {
	name := filepath.Base(path)
	if !p.cfg.OCRFallback || p.ocr == nil {
		if directErr != nil {
			return nil, directErr
		}
		p.logger.Info("ocr fallback disabled, skipping scanned pdf", zap.String("file", name))
		return nil, nil
	}

	texts, err := p.ocr.PDFPages(ctx, path)
	if err != nil {
		if errors.Is(err, ErrOCRUnavailable) {
			p.logger.Warn("ocr unavailable, skipping scanned pdf",
				zap.String("file", name), zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("pdf ocr fallback: %w", err)
	}

	var b strings.Builder
	for i, text := range texts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i+1, text)
	}
	if nonSpaceCount(texts) == 0 {
		p.logger.Warn("ocr found no text in pdf", zap.String("file", name))
		return nil, nil
	}
	return []document.RawRecord{
		document.NewRawRecord(b.String(), name, document.TypeScannedPDF),
	}, nil
}

func nonSpaceCount(pages []string) int {
	n := 0
	for _, page := range pages {
		for _, r := range page {
			if !unicode.IsSpace(r) {
				n++
			}
		}
	}
	return n
}

// LoadPDFPages reads page text with the langchaingo PDF loader. The
// underlying parser panics on some malformed files; that is reported as
// an error.
func LoadPDFPages(ctx context.Context, path string) (pages []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing pdf: %w", err)
	}

	pages = make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.PageContent)
	}
	return pages, nil
}
