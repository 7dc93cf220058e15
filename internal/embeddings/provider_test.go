package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr error
		model   string
	}{
		{
			name:  "tei with base url",
			cfg:   ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080"},
			model: DefaultModel,
		},
		{
			name:    "tei without base url",
			cfg:     ProviderConfig{Provider: "tei"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:  "openai with key",
			cfg:   ProviderConfig{Provider: "openai", APIKey: "sk-test", Model: "text-embedding-3-small"},
			model: "text-embedding-3-small",
		},
		{
			name:    "openai without key",
			cfg:     ProviderConfig{Provider: "openai"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "unknown provider",
			cfg:     ProviderConfig{Provider: "word2vec"},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			assert.Equal(t, tt.model, p.ModelName())
			assert.Positive(t, p.Dimension())
		})
	}
}

func TestDimensionForModel(t *testing.T) {
	assert.Equal(t, 384, DimensionForModel("sentence-transformers/all-MiniLM-L6-v2"))
	assert.Equal(t, 768, DimensionForModel("BAAI/bge-base-en-v1.5"))
	assert.Equal(t, 1536, DimensionForModel("text-embedding-3-small"))
	assert.Equal(t, 1024, DimensionForModel("intfloat/e5-large"))
	assert.Equal(t, 768, DimensionForModel("nomic-embed-text-base"))
	assert.Equal(t, 384, DimensionForModel("something-custom"))
}

func TestSymmetricModel(t *testing.T) {
	assert.True(t, SymmetricModel("sentence-transformers/all-MiniLM-L6-v2"))
	assert.True(t, SymmetricModel("all-MiniLM-L6-v2"))
	assert.True(t, SymmetricModel("fast-all-MiniLM-L6-v2"))
	assert.False(t, SymmetricModel("BAAI/bge-small-en-v1.5"))
	assert.False(t, SymmetricModel("fast-bge-base-en"))
}

func TestBatches(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, batches(texts, 2))
	assert.Equal(t, [][]string{texts}, batches(texts, 0))
	assert.Equal(t, [][]string{texts}, batches(texts, 10))
}
