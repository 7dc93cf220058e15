package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

func TestTextExtractor_Encodings(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		want     string
		encoding string
	}{
		{"utf-8", []byte("Sign-up requires email and password."), "Sign-up requires email and password.", "utf-8"},
		{"utf-8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("héllo")...), "héllo", "utf-8"},
		{"latin-1", []byte{'c', 'a', 'f', 0xE9}, "café", "latin-1"},
	}

	x, err := NewTextExtractor(nil)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "doc.txt", tt.data)

			recs, err := x.Extract(context.Background(), path)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.want, recs[0].Content)
			assert.Equal(t, "doc.txt", recs[0].Metadata.Source())
			assert.Equal(t, document.TypeText, recs[0].Metadata.RecordType())
			assert.Equal(t, tt.encoding, recs[0].Metadata["encoding"])
		})
	}
}

func TestTextExtractor_CP1252(t *testing.T) {
	x, err := NewTextExtractor([]string{"utf-8", "cp1252"})
	require.NoError(t, err)

	// 0x93 and 0x94 are curly quotes in Windows-1252.
	s, enc, err := x.Decode([]byte{0x93, 'o', 'k', 0x94})
	require.NoError(t, err)
	assert.Equal(t, "“ok”", s)
	assert.Equal(t, "cp1252", enc)
}

func TestTextExtractor_Undecodable(t *testing.T) {
	x, err := NewTextExtractor([]string{"utf-8"})
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "bad.log", []byte{0xff, 0xfe, 0xfd})
	_, err = x.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestTextExtractor_WhitespaceOnly(t *testing.T) {
	x, err := NewTextExtractor(nil)
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "blank.md", []byte("  \n\t\n"))
	recs, err := x.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNewTextExtractor_UnknownEncoding(t *testing.T) {
	_, err := NewTextExtractor([]string{"utf-8", "koi8-r"})
	assert.Error(t, err)
}
