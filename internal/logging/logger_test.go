package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	require.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	require.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New("warn", "console", "garmin-to-notion")
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
}
