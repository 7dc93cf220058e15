package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid server port"},
		{name: "zero chunk size", mutate: func(c *Config) { c.Chunking.ChunkSize = 0 }, wantErr: "chunk_size"},
		{name: "overlap equals size", mutate: func(c *Config) { c.Chunking.ChunkOverlap = 1000 }, wantErr: "chunk_overlap"},
		{name: "negative overlap", mutate: func(c *Config) { c.Chunking.ChunkOverlap = -1 }, wantErr: "chunk_overlap"},
		{name: "unknown image provider", mutate: func(c *Config) { c.Image.Provider = "magic" }, wantErr: "image.provider"},
		{name: "unknown embeddings provider", mutate: func(c *Config) { c.Embeddings.Provider = "bert" }, wantErr: "embeddings.provider"},
		{name: "unknown vectorstore", mutate: func(c *Config) { c.VectorStore.Provider = "pinecone" }, wantErr: "vectorstore.provider"},
		{name: "zero threshold", mutate: func(c *Config) { c.VectorStore.DistanceThreshold = 0 }, wantErr: "distance_threshold"},
		{name: "zero top_k", mutate: func(c *Config) { c.VectorStore.TopK = 0 }, wantErr: "top_k"},
		{name: "no workers", mutate: func(c *Config) { c.Ingest.Workers = 0 }, wantErr: "workers"},
		{name: "no encodings", mutate: func(c *Config) { c.Text.Encodings = nil }, wantErr: "encodings"},
		{name: "events without url", mutate: func(c *Config) {
			c.Events.Enabled = true
			c.Events.URL = ""
		}, wantErr: "nats_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverPrintsValue(t *testing.T) {
	s := Secret("gsk_live_abc")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "gsk_live_abc")

	out, err := json.Marshal(struct{ Key Secret }{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "gsk_live_abc")

	assert.Equal(t, "gsk_live_abc", s.Value())
	assert.True(t, s.IsSet())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, "1m30s", d.Duration().String())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestIngestConfig_MaxFileSize(t *testing.T) {
	assert.Equal(t, int64(100*1024*1024), NewDefaultConfig().Ingest.MaxFileSize())
	assert.Equal(t, int64(0), IngestConfig{}.MaxFileSize())
}
