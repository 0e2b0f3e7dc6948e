package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/internal/token"
)

func TestBag_AccumulatesAcrossErrors(t *testing.T) {
	var b Bag
	require.False(t, b.HasErrors())

	b.Addf(UndefinedWord, token.Position{Line: 1, Column: 1}, "word %q is not defined", "fooo")
	b.Addf(TypeMismatch, token.Position{Line: 2, Column: 3}, "expected Int, got String")

	require.True(t, b.HasErrors())
	require.Len(t, b.Errors(), 2)
	require.Contains(t, b.Errors()[0].Error(), "fooo")
}

func TestSuggest_FindsClosestCandidate(t *testing.T) {
	got := Suggest("fib", []string{"fib-helper", "fizz", "main", "fibo"})
	require.Contains(t, got, "Did you mean")
}

func TestSuggest_NoCandidatesReturnsEmpty(t *testing.T) {
	require.Equal(t, "", Suggest("fib", nil))
}

func TestSuggest_NothingCloseEnough(t *testing.T) {
	got := Suggest("x", []string{"completely-unrelated-long-word"})
	require.Equal(t, "", got)
}

func TestMerge(t *testing.T) {
	var a, b Bag
	a.Addf(ArityMismatch, token.Position{}, "boom")
	b.Addf(OccursCheck, token.Position{}, "cycle")
	a.Merge(&b)
	require.Len(t, a.Errors(), 2)
}
