package extraction

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decoder turns raw bytes into a string or reports that it cannot.
type decoder struct {
	name   string
	decode func([]byte) (string, bool)
}

func strictUTF8(b []byte) (string, bool) {
	b = bytes.TrimPrefix(b, utf8BOM)
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func charmapDecoder(enc encoding.Encoding) func([]byte) (string, bool) {
	return func(b []byte) (string, bool) {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
}

func lookupDecoder(name string) (decoder, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8":
		return decoder{name: "utf-8", decode: strictUTF8}, nil
	case "latin-1", "latin1", "iso-8859-1":
		return decoder{name: "latin-1", decode: charmapDecoder(charmap.ISO8859_1)}, nil
	case "cp1252", "windows-1252":
		return decoder{name: "cp1252", decode: charmapDecoder(charmap.Windows1252)}, nil
	default:
		return decoder{}, fmt.Errorf("unknown text encoding %q", name)
	}
}

// TextExtractor reads plain and structured text files as a single record,
// trying each encoding in order. Latin-1 maps every byte, so encodings
// listed after it are only reached if it is removed from the chain.
type TextExtractor struct {
	decoders []decoder
}

// NewTextExtractor builds an extractor for the given encoding chain.
func NewTextExtractor(encodings []string) (*TextExtractor, error) {
	if len(encodings) == 0 {
		encodings = []string{"utf-8", "latin-1", "cp1252"}
	}
	t := &TextExtractor{}
	for _, name := range encodings {
		d, err := lookupDecoder(name)
		if err != nil {
			return nil, err
		}
		t.decoders = append(t.decoders, d)
	}
	return t, nil
}

// Extract returns one text record, or none for a whitespace-only file.
func (t *TextExtractor) Extract(_ context.Context, path string) ([]document.RawRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	content, encName, err := t.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	rec := document.NewRawRecord(content, filepath.Base(path), document.TypeText).
		WithMeta("encoding", encName)
	return []document.RawRecord{rec}, nil
}

// Decode applies the encoding chain and reports which encoding succeeded.
func (t *TextExtractor) Decode(raw []byte) (string, string, error) {
	for _, d := range t.decoders {
		if s, ok := d.decode(raw); ok {
			return s, d.name, nil
		}
	}
	return "", "", ErrUndecodable
}
