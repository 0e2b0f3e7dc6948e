// Package lint implements Seq's pattern-directed style and safety
// diagnostics over the typed AST. Each lint carries a stable id and a
// default severity; a "@allow:<id>" annotation directly preceding a
// statement suppresses that lint for that statement only, and chained
// annotations suppress multiple ids at once. --deny-warnings promotes
// every Warning finding to an Error.
//
// The id+message+severity shape mirrors the Suggestion field already
// used by diagnostics.Error, generalized here into a standalone finding
// type since lints are not compile errors unless escalated.
package lint

import (
	"fmt"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/token"
)

// Severity is a lint finding's default or (post deny-warnings) escalated
// severity.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Finding is one lint diagnostic.
type Finding struct {
	ID       string
	Severity Severity
	Message  string
	Pos      token.Position
}

func (f *Finding) String() string {
	return fmt.Sprintf("%s: [%s] %s at %s", f.Severity, f.ID, f.Message, f.Pos)
}

// Rule ids, stable across releases so "@allow:<id>" annotations and
// --deny-warnings tooling keep working as lints are added.
const (
	UncheckedChanReceive = "unchecked-chan-receive"
	UncheckedMapGet      = "unchecked-map-get"
	PreferNip            = "prefer-nip"
	RedundantDupDrop     = "redundant-dup-drop"
	UnusedWord           = "unused-word"
)

var defaultSeverity = map[string]Severity{
	UncheckedChanReceive: Warning,
	UncheckedMapGet:      Warning,
	PreferNip:            Warning,
	RedundantDupDrop:     Warning,
	UnusedWord:           Warning,
}

// Lint runs every rule over a flattened, elaborated module's word
// definitions and returns findings in declaration order. denyWarnings
// escalates every Warning finding to Error; callers (the CLI's "lint
// --deny-warnings") then typically treat any Error finding as build-
// breaking.
func Lint(items []ast.Item, denyWarnings bool) []*Finding {
	l := &linter{}

	words := map[string]*ast.WordDef{}
	var order []string
	for _, item := range items {
		if wd, ok := item.(*ast.WordDef); ok {
			words[wd.Name] = wd
			order = append(order, wd.Name)
		}
	}

	for _, name := range order {
		l.lintBody(words[name].Body)
	}
	l.lintUnusedWords(order, words)

	if denyWarnings {
		for _, f := range l.findings {
			f.Severity = Error
		}
	}
	return l.findings
}

type linter struct {
	findings []*Finding
}

func (l *linter) report(id string, pos token.Position, format string, args ...interface{}) {
	l.findings = append(l.findings, &Finding{
		ID: id, Severity: defaultSeverity[id], Message: fmt.Sprintf(format, args...), Pos: pos,
	})
}

// isSuppressed reports whether stmt carries "@allow:<id>" — only Call
// statements can carry suppression annotations (the parser attaches
// them there), so any other statement kind is never suppressed.
func isSuppressed(stmt ast.Statement, id string) bool {
	call, ok := stmt.(*ast.Call)
	if !ok {
		return false
	}
	for _, s := range call.SuppressedLints {
		if s == id {
			return true
		}
	}
	return false
}

func (l *linter) lintBody(body []ast.Statement) {
	for i, stmt := range body {
		switch s := stmt.(type) {
		case *ast.Call:
			l.lintPairAt(body, i)
			l.lintUncheckedSafeResult(body, i, s)
		case *ast.Quot:
			l.lintBody(s.Body)
		case *ast.If:
			l.lintBody(s.Then)
			l.lintBody(s.Else)
		case *ast.Match:
			for _, arm := range s.Arms {
				l.lintBody(arm.Body)
			}
			l.lintBody(s.Default)
		}
	}
}

// safeWordLint maps a "-safe"-suffixed fallible word to the lint id
// that fires when its success flag is dropped unexamined.
var safeWordLint = map[string]string{
	"chan.receive-safe": UncheckedChanReceive,
	"map.get-safe":      UncheckedMapGet,
}

// lintUncheckedSafeResult fires when a fallible "-safe" word is
// immediately followed by a bare "drop": the success Bool is discarded
// without ever branching on it.
func (l *linter) lintUncheckedSafeResult(body []ast.Statement, i int, call *ast.Call) {
	id, ok := safeWordLint[call.Name]
	if !ok || i+1 >= len(body) {
		return
	}
	next, ok := body[i+1].(*ast.Call)
	if !ok || next.Name != "drop" {
		return
	}
	if isSuppressed(call, id) || isSuppressed(next, id) {
		return
	}
	l.report(id, next.Pos(), "result of %q is discarded without checking the success flag", call.Name)
}

// lintPairAt fires the two shuffle-simplification lints: "swap drop"
// (use nip) and "dup drop" (redundant, has no effect).
func (l *linter) lintPairAt(body []ast.Statement, i int) {
	if i+1 >= len(body) {
		return
	}
	a, ok := body[i].(*ast.Call)
	if !ok {
		return
	}
	b, ok := body[i+1].(*ast.Call)
	if !ok {
		return
	}
	switch {
	case a.Name == "swap" && b.Name == "drop":
		if !isSuppressed(a, PreferNip) && !isSuppressed(b, PreferNip) {
			l.report(PreferNip, b.Pos(), "'swap drop' can be written as 'nip'")
		}
	case a.Name == "dup" && b.Name == "drop":
		if !isSuppressed(a, RedundantDupDrop) && !isSuppressed(b, RedundantDupDrop) {
			l.report(RedundantDupDrop, b.Pos(), "'dup drop' has no effect")
		}
	}
}

// lintUnusedWords flags private (non-"main") words that no other word
// in the module ever calls. A module with no "main" word is not checked.
func (l *linter) lintUnusedWords(order []string, words map[string]*ast.WordDef) {
	if _, hasMain := words["main"]; !hasMain {
		return
	}
	called := map[string]bool{}
	for _, name := range order {
		for _, c := range callsOf(words[name].Body) {
			called[c] = true
		}
	}
	for _, name := range order {
		if name == "main" || called[name] {
			continue
		}
		l.report(UnusedWord, words[name].Position, "word %q is never called", name)
	}
}

func callsOf(body []ast.Statement) []string {
	var names []string
	var walk func([]ast.Statement)
	walk = func(stmts []ast.Statement) {
		for _, stmt := range stmts {
			switch s := stmt.(type) {
			case *ast.Call:
				if s.Name != "call" {
					names = append(names, s.Name)
				}
			case *ast.Quot:
				walk(s.Body)
			case *ast.If:
				walk(s.Then)
				walk(s.Else)
			case *ast.Match:
				for _, arm := range s.Arms {
					walk(arm.Body)
				}
				walk(s.Default)
			}
		}
	}
	walk(body)
	return names
}
