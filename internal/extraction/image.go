package extraction

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

// ImageProvider turns an image into records. Implementations return zero
// records when the image yields no text.
type ImageProvider interface {
	Extractor
	Name() string
}

// Describer produces a free-text description of an image.
type Describer interface {
	Describe(ctx context.Context, path string) (string, error)
}

// ImageTextReader recognises text in an image.
type ImageTextReader interface {
	ImageText(ctx context.Context, path string) (string, error)
}

// VisionImageProvider describes images with a vision model.
type VisionImageProvider struct {
	describer Describer
	logger    *zap.Logger
}

// NewVisionImageProvider wraps a describer.
func NewVisionImageProvider(d Describer, logger *zap.Logger) *VisionImageProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionImageProvider{describer: d, logger: logger}
}

// Name returns "vision".
func (p *VisionImageProvider) Name() string { return "vision" }

// Extract returns a single image record on page 1.
func (p *VisionImageProvider) Extract(ctx context.Context, path string) ([]document.RawRecord, error) {
	name := filepath.Base(path)
	desc, err := p.describer.Describe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", name, err)
	}
	if desc == "" {
		p.logger.Warn("vision model returned no description", zap.String("file", name))
		return nil, nil
	}
	content := fmt.Sprintf("[IMAGE SOURCE: %s]\nDescription: %s", name, desc)
	return []document.RawRecord{
		document.NewRawRecord(content, name, document.TypeImage).WithPage(1),
	}, nil
}

// OCRImageProvider wraps tesseract output in image markers.
type OCRImageProvider struct {
	reader ImageTextReader
	logger *zap.Logger
}

// NewOCRImageProvider wraps an OCR reader.
func NewOCRImageProvider(r ImageTextReader, logger *zap.Logger) *OCRImageProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OCRImageProvider{reader: r, logger: logger}
}

// Name returns "ocr".
func (p *OCRImageProvider) Name() string { return "ocr" }

// Extract returns one marked record, or none when tesseract is missing or
// finds no text.
func (p *OCRImageProvider) Extract(ctx context.Context, path string) ([]document.RawRecord, error) {
	name := filepath.Base(path)
	text, err := p.reader.ImageText(ctx, path)
	if err != nil {
		if isOCRUnavailable(err) {
			p.logger.Warn("ocr unavailable, skipping image", zap.String("file", name), zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("ocr %s: %w", name, err)
	}
	if strings.TrimSpace(text) == "" {
		p.logger.Warn("no text found in image", zap.String("file", name))
		return nil, nil
	}
	content := fmt.Sprintf("--- IMAGE START: %s ---\n%s\n--- IMAGE END ---", name, text)
	return []document.RawRecord{
		document.NewRawRecord(content, name, document.TypeImage).WithPage(1),
	}, nil
}

// NoneImageProvider skips images.
type NoneImageProvider struct{}

// Name returns "none".
func (NoneImageProvider) Name() string { return "none" }

// Extract always returns no records.
func (NoneImageProvider) Extract(context.Context, string) ([]document.RawRecord, error) {
	return nil, nil
}
