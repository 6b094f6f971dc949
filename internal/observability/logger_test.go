// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/billfetch/billfetch-cli/internal/config"
)

// syncBuffer is a minimal zapcore.WriteSyncer backed by a bytes.Buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInitializeRespectsLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "warn", Format: "json", ServiceName: "billfetch-test"}, out)

	logger := GetLogger()
	require.NotNil(t, logger)

	logger.Debug("should be filtered")
	logger.Info("should be filtered too")
	logger.Warn("should appear", zap.String("k", "v"))

	output := out.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
	assert.Contains(t, output, `"k":"v"`)
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, second)

	GetLogger().Info("hello")

	assert.Contains(t, first.String(), "hello", "first initialization should win")
	assert.Empty(t, second.String(), "second initialization must be a no-op")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json", ServiceName: "billfetch-test"}, out)

	GetLogger().Debug("debug suppressed")
	GetLogger().Info("info visible")

	assert.NotContains(t, out.String(), "debug suppressed")
	assert.Contains(t, out.String(), "info visible")
}

func TestGetLoggerBeforeInitializeReturnsFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must be usable without panicking.
	logger.Info("fallback works")
}

func TestConsoleEncoderFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "billfetch-test"}, out)

	GetLogger().Named("statestore").Info("console line")

	assert.Contains(t, out.String(), "billfetch-test.statestore.")
	assert.Contains(t, out.String(), "console line")
}

var _ zapcore.WriteSyncer = (*syncBuffer)(nil)
