package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/cardpricer/internal/model"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger(model.LoggingConfig{Level: "info", Format: format})
		require.NoError(t, err, "format %q should be valid", format)
		assert.NotNil(t, logger)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(model.LoggingConfig{Level: level, Format: "json"})
		require.NoError(t, err, "level %q should be valid", level)

		want, _ := zapcore.ParseLevel(level)
		assert.True(t, logger.Core().Enabled(want))
		if want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(want-1))
		}
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(model.LoggingConfig{Level: "trace", Format: "json"})
	assert.Error(t, err)

	_, err = NewLogger(model.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger(model.DefaultConfig().Logging)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
