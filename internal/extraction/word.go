package extraction

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

const docxBodyPart = "word/document.xml"

// WordConfig names the converter used for .doc files and failed .docx parses.
type WordConfig struct {
	ConverterCmd string
	Timeout      time.Duration
}

// WordExtractor reads .docx natively and shells out for everything else.
type WordExtractor struct {
	cfg    WordConfig
	runner CommandRunner
	logger *zap.Logger
}

// NewWordExtractor builds a Word extractor; the converter defaults to antiword.
func NewWordExtractor(cfg WordConfig, runner CommandRunner, logger *zap.Logger) *WordExtractor {
	if cfg.ConverterCmd == "" {
		cfg.ConverterCmd = "antiword"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WordExtractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract returns a single record typed docx or doc after the extension.
func (w *WordExtractor) Extract(ctx context.Context, path string) ([]document.RawRecord, error) {
	name := filepath.Base(path)
	kind := document.TypeDoc
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		kind = document.TypeDocx
	}

	var primaryErr error
	if kind == document.TypeDocx {
		text, err := ReadDocxText(path)
		if err == nil && strings.TrimSpace(text) != "" {
			return []document.RawRecord{document.NewRawRecord(text, name, kind)}, nil
		}
		if err == nil {
			err = ErrEmptyDocument
		}
		primaryErr = err
		w.logger.Debug("docx parse failed, using converter",
			zap.String("file", name), zap.Error(err))
	}

	text, err := w.convert(ctx, path)
	if err != nil {
		if primaryErr != nil {
			return nil, errors.Join(primaryErr, err)
		}
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	rec := document.NewRawRecord(text, name, kind).WithMeta("converter", w.cfg.ConverterCmd)
	return []document.RawRecord{rec}, nil
}

func (w *WordExtractor) convert(ctx context.Context, path string) (string, error) {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}
	out, err := w.runner.Run(ctx, w.cfg.ConverterCmd, path)
	if err != nil {
		if isMissingTool(err) {
			return "", fmt.Errorf("word converter %s not installed: %w", w.cfg.ConverterCmd, err)
		}
		return "", fmt.Errorf("converting %s: %w", filepath.Base(path), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ReadDocxText extracts the body text of an OOXML document. Paragraphs end
// with a newline, table cells are tab-separated and rows newline-separated.
func ReadDocxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", docxBodyPart, err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return "", fmt.Errorf("docx has no %s", docxBodyPart)
}

func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b         strings.Builder
		inText    bool
		cellDepth int
		cellBreak bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			case "tc":
				cellDepth++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cellDepth > 0 {
					cellBreak = true
				} else {
					b.WriteByte('\n')
				}
			case "tc":
				cellDepth--
				cellBreak = false
				b.WriteByte('\t')
			case "tr":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				if cellBreak {
					b.WriteByte(' ')
					cellBreak = false
				}
				b.Write(t)
			}
		}
	}
	return tidyLines(b.String()), nil
}

// tidyLines trims trailing blanks from each line and the document edges.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
