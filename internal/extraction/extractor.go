package extraction

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

var (
	// ErrUnsupportedExtension is returned by Registry.Extract for unknown extensions.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrUndecodable means no configured text encoding accepted the bytes.
	ErrUndecodable = errors.New("content could not be decoded")

	// ErrOCRUnavailable means the OCR toolchain is missing.
	ErrOCRUnavailable = errors.New("ocr tools unavailable")

	// ErrVisionUnavailable means the vision endpoint could not be used.
	ErrVisionUnavailable = errors.New("vision model unavailable")

	// ErrEmptyDocument means the file parsed but yielded no text.
	ErrEmptyDocument = errors.New("document has no extractable text")
)

// Extractor converts one file into zero or more records. Records carry
// source (base name) and record_type; callers add path and hash keys.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]document.RawRecord, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) ([]document.RawRecord, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) ([]document.RawRecord, error) {
	return f(ctx, path)
}

// Registry dispatches on lowercased file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// Register binds extensions (with leading dot) to an extractor.
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Lookup returns the extractor for path's extension.
func (r *Registry) Lookup(path string) (Extractor, bool) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return e, ok
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.Lookup(path)
	return ok
}

// Extensions lists registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract dispatches path to its extractor.
func (r *Registry) Extract(ctx context.Context, path string) ([]document.RawRecord, error) {
	e, ok := r.Lookup(path)
	if !ok {
		return nil, ErrUnsupportedExtension
	}
	return e.Extract(ctx, path)
}

// Extension groups.
var (
	TextExtensions  = []string{".md", ".txt", ".yaml", ".yml", ".json", ".csv", ".log"}
	ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".bmp"}
	WordExtensions  = []string{".docx", ".doc"}
	PDFExtensions   = []string{".pdf"}
)
