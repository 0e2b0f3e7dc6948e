// Package diagnostics implements Seq's cross-phase compile-error model:
// every phase from the lexer through the linter accumulates Errors into
// a Bag rather than aborting at the first one, and reports are rendered
// with source-span context and, where applicable, a "did you mean"
// suggestion.
//
// The model generalizes a parser-only ParseError/ErrorType pattern into
// one shared across every compile-time phase.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/seq-lang/seq/internal/token"
)

// Kind enumerates every compile-time error kind the pipeline can raise,
// from lexing through linting.
type Kind int

const (
	// Lexer
	UnknownChar Kind = iota
	UnterminatedString
	InvalidEscape
	InvalidNumeric

	// Parser
	ExpectedToken
	UnexpectedEOF

	// Resolver
	CircularInclude
	UnresolvedModule

	// Union elaborator
	NameCollision

	// Type checker
	TypeMismatch
	RowMismatch
	ArityMismatch
	UndefinedWord
	SignatureMismatch
	UnreachableBranch
	NonExhaustiveMatch
	OccursCheck

	// Linter (when escalated via --deny-warnings)
	LintDenied
)

var kindNames = map[Kind]string{
	UnknownChar:         "UnknownChar",
	UnterminatedString:  "UnterminatedString",
	InvalidEscape:       "InvalidEscape",
	InvalidNumeric:      "InvalidNumeric",
	ExpectedToken:       "ExpectedToken",
	UnexpectedEOF:       "UnexpectedEOF",
	CircularInclude:     "CircularInclude",
	UnresolvedModule:    "UnresolvedModule",
	NameCollision:       "NameCollision",
	TypeMismatch:        "TypeMismatch",
	RowMismatch:         "RowMismatch",
	ArityMismatch:       "ArityMismatch",
	UndefinedWord:       "UndefinedWord",
	SignatureMismatch:   "SignatureMismatch",
	UnreachableBranch:   "UnreachableBranch",
	NonExhaustiveMatch:  "NonExhaustiveMatch",
	OccursCheck:         "OccursCheck",
	LintDenied:          "LintDenied",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is one compile-time diagnostic.
type Error struct {
	Kind       Kind
	Message    string
	Span       token.Position
	Suggestion string
}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s at %s: %s (%s)", e.Kind, e.Span, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Span, e.Message)
}

// Bag accumulates diagnostics across a phase (or a whole pipeline run).
// Phases are expected to keep going after a recoverable error so the
// user sees every problem in one pass instead of one-at-a-time.
type Bag struct {
	errors []*Error
}

// Add appends an error to the bag.
func (b *Bag) Add(err *Error) { b.errors = append(b.errors, err) }

// Addf is a convenience wrapper constructing and adding an Error.
func (b *Bag) Addf(kind Kind, span token.Position, format string, args ...interface{}) {
	b.Add(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span})
}

// HasErrors reports whether any diagnostics were recorded.
func (b *Bag) HasErrors() bool { return len(b.errors) > 0 }

// Errors returns all accumulated diagnostics in insertion order.
func (b *Bag) Errors() []*Error { return b.errors }

// Merge appends another bag's diagnostics onto this one.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.errors = append(b.errors, other.errors...)
}

// Suggest computes a "did you mean <closest>?" hint for name against the
// set of candidates, using fuzzy string distance. Returns "" if no
// candidate is close enough to be useful.
func Suggest(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	best := ""
	bestRank := -1
	for _, c := range sorted {
		r := fuzzy.RankMatch(name, c)
		if r < 0 {
			continue
		}
		if bestRank == -1 || r < bestRank {
			bestRank = r
			best = c
		}
	}
	if best == "" || bestRank > maxSuggestDistance(name) {
		return ""
	}
	return fmt.Sprintf("Did you mean '%s'?", best)
}

// maxSuggestDistance bounds how far a fuzzy match may be before it stops
// being a useful suggestion; scaled by name length so short names don't
// match everything.
func maxSuggestDistance(name string) int {
	n := len(name)/2 + 1
	if n > 6 {
		return 6
	}
	return n
}

// FormatAll renders every diagnostic in the bag, one per line.
func (b *Bag) FormatAll() string {
	var sb strings.Builder
	for _, e := range b.errors {
		sb.WriteString(e.Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}
