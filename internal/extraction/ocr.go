package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OCRConfig locates tesseract and pdftoppm.
type OCRConfig struct {
	TesseractCmd string
	PdftoppmCmd  string
	Language     string
	DPI          int
	Timeout      time.Duration
}

// OCREngine recognises text in images and rendered PDF pages.
type OCREngine struct {
	cfg    OCRConfig
	runner CommandRunner
	logger *zap.Logger
}

// NewOCREngine fills zero config fields with tesseract defaults.
func NewOCREngine(cfg OCRConfig, runner CommandRunner, logger *zap.Logger) *OCREngine {
	if cfg.TesseractCmd == "" {
		cfg.TesseractCmd = "tesseract"
	}
	if cfg.PdftoppmCmd == "" {
		cfg.PdftoppmCmd = "pdftoppm"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OCREngine{cfg: cfg, runner: runner, logger: logger}
}

func (o *OCREngine) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}
	out, err := o.runner.Run(ctx, name, args...)
	if err != nil {
		if isMissingTool(err) {
			return nil, fmt.Errorf("%w: %s not found", ErrOCRUnavailable, name)
		}
		return nil, err
	}
	return out, nil
}

// ImageText runs tesseract on one image and returns trimmed text.
func (o *OCREngine) ImageText(ctx context.Context, imagePath string) (string, error) {
	out, err := o.run(ctx, o.cfg.TesseractCmd, imagePath, "stdout", "-l", o.cfg.Language)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// PDFPages renders every page of pdfPath to PNG and OCRs each one.
// The result holds one entry per rendered page, in page order.
func (o *OCREngine) PDFPages(ctx context.Context, pdfPath string) ([]string, error) {
	tmp, err := os.MkdirTemp("", "ragctl-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating render dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	if _, err := o.run(ctx, o.cfg.PdftoppmCmd,
		"-r", strconv.Itoa(o.cfg.DPI), "-png", pdfPath, prefix); err != nil {
		return nil, fmt.Errorf("rendering pages: %w", err)
	}

	images, err := renderedPages(tmp)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("rendered pdf pages",
		zap.String("file", filepath.Base(pdfPath)),
		zap.Int("pages", len(images)))

	texts := make([]string, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := o.ImageText(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("ocr %s: %w", filepath.Base(img), err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// renderedPages lists pdftoppm output sorted by the page number after the
// last dash. pdftoppm zero-pads the number based on the page count.
func renderedPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

func isOCRUnavailable(err error) bool {
	return errors.Is(err, ErrOCRUnavailable)
}
