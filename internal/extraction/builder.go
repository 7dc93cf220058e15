package extraction

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
)

// NewImageProvider selects the image strategy from cfg.Image.Provider. A
// vision provider without an API key degrades to none.
func NewImageProvider(cfg *config.Config, ocr *OCREngine, logger *zap.Logger) (ImageProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Image.Provider {
	case config.ImageProviderVision:
		if !cfg.Vision.APIKey.IsSet() {
			logger.Warn("no vision api key configured, images will be skipped")
			return NoneImageProvider{}, nil
		}
		d, err := NewVisionDescriber(VisionConfig{
			BaseURL:     cfg.Vision.BaseURL,
			Model:       cfg.Vision.Model,
			APIKey:      cfg.Vision.APIKey.Value(),
			Temperature: cfg.Vision.Temperature,
			MaxTokens:   cfg.Vision.MaxTokens,
			RateLimit:   cfg.Vision.RateLimit,
			Burst:       cfg.Vision.Burst,
			MaxRetries:  cfg.Vision.MaxRetries,
			Timeout:     cfg.Vision.Timeout.Duration(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return NewVisionImageProvider(d, logger), nil
	case config.ImageProviderOCR:
		return NewOCRImageProvider(ocr, logger), nil
	case config.ImageProviderNone:
		return NoneImageProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.Image.Provider)
	}
}

// NewDefaultRegistry wires every extractor from cfg. A nil runner executes
// real binaries.
func NewDefaultRegistry(cfg *config.Config, runner CommandRunner, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	text, err := NewTextExtractor(cfg.Text.Encodings)
	if err != nil {
		return nil, err
	}

	ocr := NewOCREngine(OCRConfig{
		TesseractCmd: cfg.OCR.TesseractCmd,
		PdftoppmCmd:  cfg.OCR.PdftoppmCmd,
		Language:     cfg.OCR.Language,
		DPI:          cfg.PDF.DPI,
		Timeout:      cfg.OCR.Timeout.Duration(),
	}, runner, logger.Named("ocr"))

	images, err := NewImageProvider(cfg, ocr, logger.Named("image"))
	if err != nil {
		return nil, err
	}

	pdf := NewPDFExtractor(PDFConfig{
		MinTextChars: cfg.PDF.MinTextChars,
		OCRFallback:  cfg.PDF.OCRFallback,
	}, nil, ocr, logger.Named("pdf"))

	word := NewWordExtractor(WordConfig{
		ConverterCmd: cfg.Doc.ConverterCmd,
		Timeout:      cfg.Doc.Timeout.Duration(),
	}, runner, logger.Named("word"))

	r := NewRegistry()
	r.Register(text, TextExtensions...)
	r.Register(pdf, PDFExtensions...)
	r.Register(word, WordExtensions...)
	r.Register(images, ImageExtensions...)

	logger.Debug("extractors registered",
		zap.Strings("extensions", r.Extensions()),
		zap.String("image_provider", images.Name()))
	return r, nil
}
