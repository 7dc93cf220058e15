package logging

import (
	"testing"
	"time"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampledLogger(levels map[zapcore.Level]LevelSamplingConfig) (*zap.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  levels,
	})
	return zap.New(sampled), observed
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestNewSampledCore_PerLevelBudgets(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel:  {Initial: 3, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 1, Thereafter: 0},
	})

	for i := 0; i < 10; i++ {
		logger.Info("same info")
		logger.Debug("same debug")
		logger.Warn("same warn")
	}

	assert.Equal(t, 3, observed.FilterMessage("same info").Len())
	assert.Equal(t, 1, observed.FilterMessage("same debug").Len())
	// no budget configured for warn
	assert.Equal(t, 10, observed.FilterMessage("same warn").Len())
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.ErrorLevel: {Initial: 1, Thereafter: 0},
	})

	for i := 0; i < 25; i++ {
		logger.Error("index write failed")
	}
	assert.Equal(t, 25, observed.FilterMessage("index write failed").Len())
}

func TestLevelFilterCore_WithKeepsFilter(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := &levelFilterCore{Core: core, accept: exactly(zapcore.WarnLevel)}
	logger := zap.New(filtered.With([]zapcore.Field{zap.String("k", "v")}))

	logger.Info("dropped")
	logger.Warn("kept")

	assert.Equal(t, 1, observed.Len())
	assert.Equal(t, "v", observed.All()[0].ContextMap()["k"])
}
