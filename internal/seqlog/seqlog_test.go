package seqlog

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	t.Setenv("SEQ_DEBUG_WIDGET", "")
	logger := New("widget")
	require.False(t, logger.Enabled(nil, slog.LevelDebug))
	require.True(t, logger.Enabled(nil, slog.LevelInfo))
}

func TestNew_DebugEnvVarEnablesDebugLevel(t *testing.T) {
	t.Setenv("SEQ_DEBUG_WIDGET", "1")
	logger := New("widget")
	require.True(t, logger.Enabled(nil, slog.LevelDebug))
}

func TestNew_UppercasesSubsystemForEnvVarName(t *testing.T) {
	t.Setenv("SEQ_DEBUG_TYPECHECK", "1")
	logger := New("typecheck")
	require.True(t, logger.Enabled(nil, slog.LevelDebug))
}
