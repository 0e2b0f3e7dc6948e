// Package ast defines the Seq abstract syntax tree produced by the parser
// and annotated in place by the type checker.
package ast

import "github.com/seq-lang/seq/internal/token"

// Module is an ordered sequence of top-level items, exactly as parsed
// from one source file (before include resolution flattens the graph).
type Module struct {
	Path  string // source file path, for diagnostics
	Items []Item
}

// Item is a top-level module member: an Include, a UnionDecl, or a
// WordDef.
type Item interface {
	itemNode()
	Pos() token.Position
}

// Include is a "include <module-ref>" top-level item.
type Include struct {
	Ref      string // "std:json", "ffi:curl", "./helpers", etc.
	Position token.Position
}

func (*Include) itemNode()              {}
func (i *Include) Pos() token.Position  { return i.Position }

// UnionDecl declares a nominal sum type.
type UnionDecl struct {
	Name     string
	Variants []Variant
	Position token.Position
}

func (*UnionDecl) itemNode()             {}
func (u *UnionDecl) Pos() token.Position { return u.Position }

// Variant is one tagged alternative of a union.
type Variant struct {
	Tag    string
	Fields []Field
}

// Field is a named, typed member of a union variant.
type Field struct {
	Name string
	Type Type
}

// WordDef defines a word (the Seq unit of composition): a name, an
// optional declared stack effect, and a body of statements.
type WordDef struct {
	Name           string
	DeclaredEffect *Effect // nil if the signature is to be fully inferred
	Body           []Statement
	Position       token.Position

	// InferredEffect is filled in by the type checker after inference and
	// unification with DeclaredEffect (if present).
	InferredEffect *Effect
}

func (*WordDef) itemNode()             {}
func (w *WordDef) Pos() token.Position { return w.Position }

// ---- Types ----

// TypeKind enumerates the shapes a Type node can take.
type TypeKind int

const (
	TInt TypeKind = iota
	TFloat
	TString
	TBool
	TSymbol
	TChannel
	TQuotation // holds an Effect
	TUnion     // holds a Name
	TVar       // holds an ID
)

// Type is a (possibly still-unresolved) Seq type.
type Type struct {
	Kind   TypeKind
	Name   string  // for TUnion
	Effect *Effect // for TQuotation
	ID     int     // for TVar, a type-variable identifier
}

func Int() Type    { return Type{Kind: TInt} }
func Float() Type  { return Type{Kind: TFloat} }
func Str() Type    { return Type{Kind: TString} }
func Bool() Type   { return Type{Kind: TBool} }
func Symbol() Type { return Type{Kind: TSymbol} }
func Channel() Type { return Type{Kind: TChannel} }
func Union(name string) Type { return Type{Kind: TUnion, Name: name} }
func Var(id int) Type        { return Type{Kind: TVar, ID: id} }
func Quotation(e *Effect) Type { return Type{Kind: TQuotation, Effect: e} }

// RowVar names a row-polymorphic "rest of stack" variable.
type RowVar struct {
	ID int
}

// Effect is a stack-effect signature: a finite list of input types
// consumed and output types produced, parameterized over a row variable
// on each side ("the rest of the stack", untouched when RowIn and RowOut
// are the same row variable).
type Effect struct {
	Inputs  []Type
	Outputs []Type
	RowIn   RowVar
	RowOut  RowVar
}

// SameRow reports whether the effect leaves the rest of the stack
// untouched (row_in and row_out are the same variable).
func (e *Effect) SameRow() bool {
	return e.RowIn.ID == e.RowOut.ID
}

// ---- Statements ----

// Statement is one element of a word body.
type Statement interface {
	stmtNode()
	Pos() token.Position
	// InferredEffect returns the effect instantiated for this statement by
	// the type checker. Nil before inference has run.
	InferredEffect() *Effect
	SetInferredEffect(*Effect)
}

type baseStmt struct {
	Position token.Position
	Effect   *Effect
}

func (b *baseStmt) Pos() token.Position       { return b.Position }
func (b *baseStmt) InferredEffect() *Effect   { return b.Effect }
func (b *baseStmt) SetInferredEffect(e *Effect) { b.Effect = e }

type PushInt struct {
	baseStmt
	Value int64
}

type PushFloat struct {
	baseStmt
	Value float64
}

type PushString struct {
	baseStmt
	Value string
}

type PushSymbol struct {
	baseStmt
	Name string
}

type PushBool struct {
	baseStmt
	Value bool
}

// Quot is a quotation literal: a suspended body of code pushed as a
// first-class value.
type Quot struct {
	baseStmt
	Body []Statement
}

// Call is a call to a named word. SuppressedLints holds the
// "@allow:<id>" annotations directly preceding this statement.
type Call struct {
	baseStmt
	Name            string
	SuppressedLints []string
}

// If is the "if ... else ... then" combinator.
type If struct {
	baseStmt
	Then []Statement
	Else []Statement // nil if no else clause
}

// MatchArm binds a variant's fields onto the stack in textual order and
// runs Body.
type MatchArm struct {
	Tag    string
	Fields []string
	Body   []Statement
}

// Match is the "match arm+ default? end" combinator.
type Match struct {
	baseStmt
	Arms    []MatchArm
	Default []Statement // nil if no default arm
}

func (*PushInt) stmtNode()    {}
func (*PushFloat) stmtNode()  {}
func (*PushString) stmtNode() {}
func (*PushSymbol) stmtNode() {}
func (*PushBool) stmtNode()   {}
func (*Quot) stmtNode()       {}
func (*Call) stmtNode()       {}
func (*If) stmtNode()         {}
func (*Match) stmtNode()      {}

// NewPos is a small helper for constructing statements with a position,
// used throughout the parser.
func NewPos(pos token.Position) baseStmt { return baseStmt{Position: pos} }
