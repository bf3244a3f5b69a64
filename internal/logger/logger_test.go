package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext_Fallback ensures a bare context yields the global logger
// and a context with an attached logger yields that logger.
func TestFromContext_Fallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.Same(t, Logger(), FromContext(ctx))

	named := Logger().Named("test-component")
	ctx = ToContext(ctx, named)
	require.Same(t, named, FromContext(ctx))
}
