// Package types implements Seq's row-polymorphic stack-effect
// inferencer: left-to-right abstract interpretation of a word body
// over a symbolic stack, Robinson unification extended with row
// variables standing in for "the rest of the stack, not yet known".
package types

import (
	"fmt"

	"github.com/seq-lang/seq/internal/ast"
)

// subst is the inferencer's mutable unification state: bindings for
// type variables (tvars) and an alias table for row variables. Row
// variables are never bound to a concrete shape directly — two rows
// either ARE the same abstract tail (aliased to a common
// representative) or they are not; "extending" a row with a concrete
// prefix is modeled by introducing a fresh row variable for what lies
// below the extension and aliasing the old one to it (see stack.go's
// pull).
type subst struct {
	tvars     map[int]ast.Type
	rowAlias  map[int]int
	nextTVar  int
	nextRow   int
}

func newSubst() *subst {
	return &subst{tvars: map[int]ast.Type{}, rowAlias: map[int]int{}}
}

func (s *subst) freshVar() ast.Type {
	s.nextTVar++
	return ast.Var(s.nextTVar)
}

func (s *subst) freshRow() ast.RowVar {
	s.nextRow++
	return ast.RowVar{ID: s.nextRow}
}

// resolveRow follows the alias chain to find a row variable's current
// representative.
func (s *subst) resolveRow(r ast.RowVar) ast.RowVar {
	for {
		next, ok := s.rowAlias[r.ID]
		if !ok {
			return r
		}
		r = ast.RowVar{ID: next}
	}
}

func (s *subst) aliasRow(from, to ast.RowVar) {
	from = s.resolveRow(from)
	to = s.resolveRow(to)
	if from.ID == to.ID {
		return
	}
	s.rowAlias[from.ID] = to.ID
}

// resolve follows TypeVar bindings to find a type's current concrete
// shape (or the unbound variable itself).
func (s *subst) resolve(t ast.Type) ast.Type {
	for t.Kind == ast.TVar {
		bound, ok := s.tvars[t.ID]
		if !ok {
			return t
		}
		t = bound
	}
	return t
}

// occurs reports whether type variable id appears free within t
// (after resolving bindings) — the occurs-check that prevents
// constructing infinite types.
func (s *subst) occurs(id int, t ast.Type) bool {
	t = s.resolve(t)
	switch t.Kind {
	case ast.TVar:
		return t.ID == id
	case ast.TQuotation:
		for _, in := range t.Effect.Inputs {
			if s.occurs(id, in) {
				return true
			}
		}
		for _, out := range t.Effect.Outputs {
			if s.occurs(id, out) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// bind binds unbound type variable v to t, after an occurs-check.
func (s *subst) bind(v ast.Type, t ast.Type) error {
	if s.occurs(v.ID, t) {
		return fmt.Errorf("occurs check failed: t%d occurs in itself", v.ID)
	}
	s.tvars[v.ID] = t
	return nil
}
