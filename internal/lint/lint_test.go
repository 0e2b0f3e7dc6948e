package lint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/internal/parser"
)

func lintSource(t *testing.T, src string, deny bool) []*Finding {
	t.Helper()
	mod, bag := parser.Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	return Lint(mod.Items, deny)
}

func TestLint_PreferNip(t *testing.T) {
	findings := lintSource(t, `: f ( Int Int -- Int ) swap drop ;`, false)
	require.Len(t, findings, 1)
	require.Equal(t, PreferNip, findings[0].ID)
	require.Equal(t, Warning, findings[0].Severity)
}

func TestLint_RedundantDupDrop(t *testing.T) {
	findings := lintSource(t, `: f ( Int -- Int ) dup drop ;`, false)
	require.Len(t, findings, 1)
	require.Equal(t, RedundantDupDrop, findings[0].ID)
}

func TestLint_UncheckedChanReceiveSafe(t *testing.T) {
	findings := lintSource(t, `: f ( Channel -- ) chan.receive-safe drop ;`, false)
	require.Len(t, findings, 1)
	require.Equal(t, UncheckedChanReceive, findings[0].ID)
}

func TestLint_SuppressionSkipsFinding(t *testing.T) {
	findings := lintSource(t, `: f ( Int -- Int ) @allow:redundant-dup-drop dup drop ;`, false)
	require.Empty(t, findings)
}

func TestLint_UnusedWord(t *testing.T) {
	findings := lintSource(t, `: helper ( Int -- Int ) dup ; : main ( -- ) 1 drop ;`, false)
	require.Len(t, findings, 1)
	require.Equal(t, UnusedWord, findings[0].ID)
	require.Equal(t, "helper", extractWordName(findings[0].Message))
}

func TestLint_DenyWarningsEscalates(t *testing.T) {
	findings := lintSource(t, `: f ( Int -- Int ) dup drop ;`, true)
	require.Len(t, findings, 1)
	require.Equal(t, Error, findings[0].Severity)
}

func TestLint_CalledWordIsNotUnused(t *testing.T) {
	findings := lintSource(t, `: helper ( Int -- Int ) dup ; : main ( -- ) 1 helper drop ;`, false)
	require.Empty(t, findings)
}

// extractWordName pulls the quoted word name out of an "unused-word"
// message for assertion convenience.
func extractWordName(msg string) string {
	start := -1
	for i, r := range msg {
		if r == '"' {
			if start == -1 {
				start = i + 1
			} else {
				return msg[start:i]
			}
		}
	}
	return ""
}
