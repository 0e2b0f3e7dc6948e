// Package unionelab synthesizes constructor, predicate, and accessor
// words for every declared union variant and registers them alongside
// user-defined words in one namespace, rejecting collisions.
//
// The registration shape — a name-keyed table, a register step that
// infers and records metadata automatically, a lookup for the type
// checker and codegen to query later — mirrors a database/sql-style
// driver registry, generalized from "register a decorator, infer its
// roles" to "register a word, infer its synthesized metadata".
package unionelab

import (
	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/diagnostics"
	"github.com/seq-lang/seq/internal/token"
)

// Constructor describes a synthesized "Make-<Tag>" word.
type Constructor struct {
	WordName string
	Union    string
	Tag      string
	TagIndex int
	Fields   []ast.Field
}

// Predicate describes a synthesized "is-<Tag>?" word.
type Predicate struct {
	WordName string
	Union    string
	Tag      string
	TagIndex int
}

// Accessor describes a synthesized "<Tag>-<field>" word.
type Accessor struct {
	WordName   string
	Union      string
	Tag        string
	TagIndex   int
	FieldName  string
	FieldIndex int
	FieldType  ast.Type
}

// UnionInfo is the elaborator's view of one declared union: its
// variants in declaration order, with tag->index lookup for codegen's
// "variant.make-N" / switch-on-tag emission.
type UnionInfo struct {
	Decl         *ast.UnionDecl
	VariantIndex map[string]int
}

// Table is the elaboration result: every union's shape plus every
// synthesized word, keyed by the word name the type checker and
// codegen will see.
type Table struct {
	Unions       map[string]*UnionInfo
	Constructors map[string]*Constructor
	Predicates   map[string]*Predicate
	Accessors    map[string]*Accessor

	// origin records, for every registered word name (user-defined or
	// synthesized), a human description of where it came from — used
	// only to produce a useful NameCollision message.
	origin map[string]string
}

func newTable() *Table {
	return &Table{
		Unions:       map[string]*UnionInfo{},
		Constructors: map[string]*Constructor{},
		Predicates:   map[string]*Predicate{},
		Accessors:    map[string]*Accessor{},
		origin:       map[string]string{},
	}
}

// Elaborate walks a flattened module's items, registers every
// user-defined word, then synthesizes and registers constructor,
// predicate, and accessor words for every union. A collision between a
// synthesized name and any previously registered name (user-defined or
// synthesized by an earlier union) is reported as NameCollision.
func Elaborate(items []ast.Item) (*Table, *diagnostics.Bag) {
	t := newTable()
	var bag diagnostics.Bag

	for _, item := range items {
		if wd, ok := item.(*ast.WordDef); ok {
			t.register(&bag, wd.Name, "user-defined word", wd.Position)
		}
	}

	for _, item := range items {
		if u, ok := item.(*ast.UnionDecl); ok {
			t.elaborateUnion(&bag, u)
		}
	}

	return t, &bag
}

// register records name -> kind, or reports a collision if it is
// already taken. Returns whether the registration succeeded.
func (t *Table) register(bag *diagnostics.Bag, name, kind string, pos token.Position) bool {
	if prev, exists := t.origin[name]; exists {
		bag.Addf(diagnostics.NameCollision, pos,
			"%q (%s) collides with previously declared %s", name, kind, prev)
		return false
	}
	t.origin[name] = kind
	return true
}

func (t *Table) elaborateUnion(bag *diagnostics.Bag, u *ast.UnionDecl) {
	info := &UnionInfo{Decl: u, VariantIndex: map[string]int{}}
	t.Unions[u.Name] = info

	for i, v := range u.Variants {
		info.VariantIndex[v.Tag] = i

		ctorName := "Make-" + v.Tag
		if t.register(bag, ctorName, "constructor for "+u.Name+"."+v.Tag, u.Position) {
			t.Constructors[ctorName] = &Constructor{
				WordName: ctorName, Union: u.Name, Tag: v.Tag, TagIndex: i, Fields: v.Fields,
			}
		}

		predName := "is-" + v.Tag + "?"
		if t.register(bag, predName, "predicate for "+u.Name+"."+v.Tag, u.Position) {
			t.Predicates[predName] = &Predicate{WordName: predName, Union: u.Name, Tag: v.Tag, TagIndex: i}
		}

		for fi, f := range v.Fields {
			accName := v.Tag + "-" + f.Name
			if t.register(bag, accName, "accessor for "+u.Name+"."+v.Tag+"."+f.Name, u.Position) {
				t.Accessors[accName] = &Accessor{
					WordName: accName, Union: u.Name, Tag: v.Tag, TagIndex: i,
					FieldName: f.Name, FieldIndex: fi, FieldType: f.Type,
				}
			}
		}
	}
}
