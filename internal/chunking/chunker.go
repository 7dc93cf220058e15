// Package chunking splits extracted records into overlapping,
// size-bounded chunks using a recursive separator strategy.
package chunking

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// ErrInvalidConfig is returned for size/overlap combinations the splitter
// cannot honor.
var ErrInvalidConfig = errors.New("invalid chunking config")

// Config holds splitter parameters. Sizes count Unicode code points.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Chunker splits RawRecords into ChunkRecords. It is stateless and safe
// for concurrent use.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// New validates cfg and builds a Chunker. Zero values fall back to defaults.
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultSeparators
	}
	if cfg.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(cfg.Separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Split chunks every record in order. Each chunk copies its record's
// metadata and adds chunk_index, counted per record from zero. Records with
// empty or whitespace-only content produce no chunks.
func (c *Chunker) Split(records []document.RawRecord) ([]document.ChunkRecord, error) {
	out := make([]document.ChunkRecord, 0, len(records))
	for _, rec := range records {
		chunks, err := c.SplitRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}

// SplitRecord chunks a single record.
func (c *Chunker) SplitRecord(rec document.RawRecord) ([]document.ChunkRecord, error) {
	texts, err := c.splitter.SplitText(rec.Content)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", rec.Metadata.Source(), err)
	}

	chunks := make([]document.ChunkRecord, 0, len(texts))
	for _, text := range texts {
		if text == "" {
			continue
		}
		chunks = append(chunks, document.ChunkRecord{
			Content:  text,
			Metadata: rec.Metadata.With(document.KeyChunkIndex, strconv.Itoa(len(chunks))),
		})
	}
	return chunks, nil
}
