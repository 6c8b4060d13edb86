package logging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLogger(t *testing.T) {
	err := InitLogger()
	require.NoError(t, err)
	assert.NotNil(t, Logger)
	assert.NotNil(t, Logger.logger)
}

func TestInitLogger_WithLogLevel(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("LOG_LEVEL")

	err := InitLogger()
	require.NoError(t, err)
	assert.True(t, Logger.Unwrap().Core().Enabled(zap.DebugLevel))
}

func TestInitLogger_WithInvalidLogLevel(t *testing.T) {
	// invalid level falls back to the production default
	os.Setenv("LOG_LEVEL", "loud")
	defer os.Unsetenv("LOG_LEVEL")

	err := InitLogger()
	require.NoError(t, err)
	assert.False(t, Logger.Unwrap().Core().Enabled(zap.DebugLevel))
}

func TestSafeLogger_Levels(t *testing.T) {
	logger := NewNop()

	logger.Debug("debug", zap.Bool("flag", true))
	logger.Info("info", zap.String("provider_id", "p-1"))
	logger.Warn("warn", zap.Int("attempt", 2))
	logger.Error("error", zap.String("check", "sanctions"))
}

func TestSafeLogger_NilLogger(t *testing.T) {
	logger := &SafeLogger{logger: nil}

	logger.Info("test")
	logger.Warn("test")
	logger.Debug("test")
	logger.Error("test")
	assert.NoError(t, logger.Sync())
}

func TestSafeLogger_NilSafeLogger(t *testing.T) {
	var logger *SafeLogger

	logger.Info("test")
	logger.Warn("test")
	logger.Debug("test")
	logger.Error("test")
	assert.Nil(t, logger.With(zap.String("key", "value")))
	assert.NotNil(t, logger.Unwrap())
}

func TestSafeLogger_With(t *testing.T) {
	logger := NewNop()

	child := logger.With(zap.String("provider_id", "p-1")).Named("lifecycle")

	require.NotNil(t, child)
	assert.NotNil(t, child.logger)
	child.Info("transition applied")
}

func TestSafeLogger_With_NilLogger(t *testing.T) {
	logger := &SafeLogger{logger: nil}

	assert.Equal(t, logger, logger.With(zap.String("key", "value")))
}

func TestSafeLogger_Unwrap(t *testing.T) {
	zapLogger := zap.NewNop()
	logger := NewSafeLogger(zapLogger)

	assert.Equal(t, zapLogger, logger.Unwrap())
}

func TestGlobalLogger_UsableBeforeInit(t *testing.T) {
	assert.NotNil(t, Logger)
	Logger.Info("test message")
}
