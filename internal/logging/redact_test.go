package logging

import (
	"testing"
	"time"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encode(t *testing.T, enc zapcore.Encoder, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m", Time: time.Unix(0, 0)}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestSecretField(t *testing.T) {
	f := Secret("api_key", config.Secret("gsk_abcdef"))
	assert.Equal(t, "[REDACTED:10]", f.String)
}

func TestRedactingEncoder_CallSiteFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encode(t, enc,
		zap.String("api_key", "plain-value"),
		zap.String("header", "Bearer abc.def"),
		zap.String("key_hint", "gsk_0123456789abcdefghijkl"),
		zap.String("source", "login.md"),
	)

	assert.NotContains(t, out, "plain-value")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "gsk_0123456789")
	assert.Contains(t, out, "login.md")
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	child := enc.Clone()
	zap.String("token", "hunter2").AddTo(child)

	out := encode(t, child)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: false, Patterns: []string{"[bad"}})
	require.NoError(t, err)

	out := encode(t, enc, zap.String("api_key", "visible"))
	assert.Contains(t, out, "visible")
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"[bad"}})
	assert.Error(t, err)
}
