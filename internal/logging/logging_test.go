package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolmeta/toolregistry/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LoggingConfig
		enabled  zapcore.Level
		disabled zapcore.Level
	}{
		{"console info", config.LoggingConfig{LogLevel: "info"}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"json warn", config.LoggingConfig{LogLevel: "warn", UseDetailedFormat: true}, zapcore.WarnLevel, zapcore.InfoLevel},
		{"debug", config.LoggingConfig{LogLevel: "debug"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := New(tc.cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tc.enabled))
			assert.False(t, logger.Core().Enabled(tc.disabled))
		})
	}
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{LogLevel: "chatty"})
	assert.Error(t, err)
}
