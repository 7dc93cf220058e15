package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "query", "clear", "serve", "watch", "mcp", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "ragctl dev")
}

func TestQueryCmd_RequiresText(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"query"})
	assert.Error(t, root.Execute())
}

func TestIngestCmd_Flags(t *testing.T) {
	cmd := newIngestCmd()
	require.NotNil(t, cmd.Flags().Lookup("keep"))
	require.NotNil(t, cmd.Flags().Lookup("json"))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestPrintResults(t *testing.T) {
	var out bytes.Buffer
	printResults(&out, []document.QueryResult{{
		Chunk: document.ChunkRecord{
			Content: "Users reset passwords via emailed link.",
			Metadata: document.Metadata{
				document.KeySource:     "auth.pdf",
				document.KeyPage:       "3",
				document.KeyRecordType: "pdf",
			},
		},
		Distance: 0.41234,
	}})
	assert.Contains(t, out.String(), "[1] auth.pdf p.3 (pdf, distance 0.4123)")
	assert.Contains(t, out.String(), "emailed link")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &ingestion.RunReport{
		Root:           "rag_data_source",
		FilesExtracted: 4,
		FilesSkipped:   1,
		FilesFailed:    1,
		Records:        6,
		Chunks:         12,
		Duration:       1234567 * time.Microsecond,
		Failures:       []ingestion.Failure{{Path: "scan.png", Reason: "ocr_unavailable", Error: "tesseract not found"}},
	})
	s := out.String()
	assert.Contains(t, s, "Ingested rag_data_source in 1.235s")
	assert.Contains(t, s, "4 extracted, 1 skipped, 1 failed")
	assert.Contains(t, s, "chunks:  12")
	assert.Contains(t, s, "failed scan.png [ocr_unavailable]")
}

func TestWatchAlongside_MissingFolderKeepsServing(t *testing.T) {
	a := &app{cfg: config.NewDefaultConfig(), zap: zap.NewNop()}
	missing := filepath.Join(t.TempDir(), "rag_data_source")

	err := watchAlongside(context.Background(), a, nil, missing)
	assert.NoError(t, err)
}
