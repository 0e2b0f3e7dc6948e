// Package seqlog centralizes the compiler's per-subsystem debug loggers.
//
// Every phase (lexer, parser, typecheck, codegen) and every runtime
// subsystem (strand, chan) gets its own slog.Logger at LevelInfo by
// default, escalated to LevelDebug by a phase-specific SEQ_DEBUG_<PHASE>
// environment variable — the same check-one-env-var-then-build-a-
// TextHandler shape the teacher uses per-package (runtime/lexer.New,
// cli/internal/parser.New), generalized into one constructor so each
// subsystem doesn't repeat the ReplaceAttr boilerplate.
package seqlog

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a logger named subsystem, at LevelDebug if the
// SEQ_DEBUG_<SUBSYSTEM> environment variable is set to any non-empty
// value, LevelInfo otherwise. Output goes to stderr as text, with the
// timestamp and level attributes stripped the way the teacher's
// lexer/parser loggers do, since a compiler's debug trace is read
// top-to-bottom in a terminal, not fed to a log aggregator.
func New(subsystem string) *slog.Logger {
	envVar := "SEQ_DEBUG_" + strings.ToUpper(subsystem)
	level := slog.LevelInfo
	if os.Getenv(envVar) != "" {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler).With("subsystem", subsystem)
}
