// Package document defines the records that flow through ingestion and
// retrieval: RawRecord from extractors, ChunkRecord from the chunker and
// QueryResult from the index.
package document

import (
	"strconv"
)

// Metadata keys shared by extractors, the chunker and the index.
const (
	KeySource      = "source"
	KeySourcePath  = "source_path"
	KeyRecordType  = "record_type"
	KeyPage        = "page"
	KeyContentHash = "content_hash"
	KeyChunkIndex  = "chunk_index"
)

// RecordType names the extraction path a record came from.
type RecordType string

const (
	TypeText        RecordType = "text"
	TypeImage       RecordType = "image"
	TypePDF         RecordType = "pdf"
	// TypePDFMarkdown is reserved for a layout-aware PDF converter that
	// emits Markdown pages. No built-in extractor produces it.
	TypePDFMarkdown RecordType = "pdf_markdown"
	TypeScannedPDF  RecordType = "scanned_pdf"
	TypeDocx        RecordType = "docx"
	TypeDoc         RecordType = "doc"
)

// Metadata is a string-keyed attribute map. Values are strings so every
// backend can store them unchanged.
type Metadata map[string]string

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// With returns a copy with key set to value.
func (m Metadata) With(key, value string) Metadata {
	out := m.Clone()
	out[key] = value
	return out
}

// Source is the base name of the originating file.
func (m Metadata) Source() string { return m[KeySource] }

// SourcePath is the path relative to the ingested folder.
func (m Metadata) SourcePath() string { return m[KeySourcePath] }

// RecordType reports which extractor produced the record.
func (m Metadata) RecordType() RecordType { return RecordType(m[KeyRecordType]) }

// ContentHash is the MD5 hex fingerprint of the record content, if set.
func (m Metadata) ContentHash() string { return m[KeyContentHash] }

// Page returns the 1-based page number, or 0 when absent.
func (m Metadata) Page() int {
	n, _ := strconv.Atoi(m[KeyPage])
	return n
}

// ChunkIndex returns the chunk's position within its record, or -1.
func (m Metadata) ChunkIndex() int {
	v, ok := m[KeyChunkIndex]
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// RawRecord is one unit of extracted text before chunking.
type RawRecord struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// NewRawRecord builds a record with the standard source keys set.
func NewRawRecord(content, source string, kind RecordType) RawRecord {
	return RawRecord{
		Content: content,
		Metadata: Metadata{
			KeySource:     source,
			KeyRecordType: string(kind),
		},
	}
}

// WithPage returns a copy tagged with a 1-based page number.
func (r RawRecord) WithPage(page int) RawRecord {
	r.Metadata = r.Metadata.With(KeyPage, strconv.Itoa(page))
	return r
}

// WithMeta returns a copy with an extra metadata key.
func (r RawRecord) WithMeta(key, value string) RawRecord {
	r.Metadata = r.Metadata.With(key, value)
	return r
}

// ChunkRecord is a retrievable slice of a RawRecord.
type ChunkRecord struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// QueryResult pairs a stored chunk with its distance to the query.
// Lower is more similar.
type QueryResult struct {
	Chunk    ChunkRecord `json:"chunk"`
	Distance float64     `json:"distance"`
}
