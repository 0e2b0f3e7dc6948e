package types

import (
	"fmt"

	"github.com/seq-lang/seq/internal/ast"
)

// unify makes a and b equal under s, binding type variables and
// aliasing row variables as needed.
func unify(a, b ast.Type, s *subst) error {
	a = s.resolve(a)
	b = s.resolve(b)

	if a.Kind == ast.TVar {
		return s.bind(a, b)
	}
	if b.Kind == ast.TVar {
		return s.bind(b, a)
	}
	if a.Kind != b.Kind {
		return fmt.Errorf("type mismatch: %s vs %s", describe(a), describe(b))
	}

	switch a.Kind {
	case ast.TInt, ast.TFloat, ast.TString, ast.TBool, ast.TSymbol, ast.TChannel:
		return nil
	case ast.TUnion:
		if a.Name != b.Name {
			return fmt.Errorf("type mismatch: union %s vs union %s", a.Name, b.Name)
		}
		return nil
	case ast.TQuotation:
		return unifyEffects(a.Effect, b.Effect, s)
	default:
		return fmt.Errorf("type mismatch: %s vs %s", describe(a), describe(b))
	}
}

// unifyEffects unifies two quotation effects elementwise, including
// their rows.
func unifyEffects(a, b *ast.Effect, s *subst) error {
	if len(a.Inputs) != len(b.Inputs) || len(a.Outputs) != len(b.Outputs) {
		return fmt.Errorf("arity mismatch between quotation effects: (%d->%d) vs (%d->%d)",
			len(a.Inputs), len(a.Outputs), len(b.Inputs), len(b.Outputs))
	}
	for i := range a.Inputs {
		if err := unify(a.Inputs[i], b.Inputs[i], s); err != nil {
			return err
		}
	}
	for i := range a.Outputs {
		if err := unify(a.Outputs[i], b.Outputs[i], s); err != nil {
			return err
		}
	}
	s.aliasRow(a.RowIn, b.RowIn)
	s.aliasRow(a.RowOut, b.RowOut)
	return nil
}

func describe(t ast.Type) string {
	switch t.Kind {
	case ast.TInt:
		return "Int"
	case ast.TFloat:
		return "Float"
	case ast.TString:
		return "String"
	case ast.TBool:
		return "Bool"
	case ast.TSymbol:
		return "Symbol"
	case ast.TChannel:
		return "Channel"
	case ast.TUnion:
		return t.Name
	case ast.TVar:
		return fmt.Sprintf("t%d", t.ID)
	case ast.TQuotation:
		return "Quotation"
	default:
		return "?"
	}
}

// instantiate produces a fresh copy of effect e with every type
// variable and row variable renamed to a fresh one — the
// let-polymorphism step applied at every call site of a generalized
// word or builtin, so that distinct uses never interfere with each
// other's bindings.
func instantiate(e *ast.Effect, s *subst) *ast.Effect {
	tmap := map[int]ast.Type{}
	rmap := map[int]ast.RowVar{}
	return instantiateWith(e, s, tmap, rmap)
}

func instantiateWith(e *ast.Effect, s *subst, tmap map[int]ast.Type, rmap map[int]ast.RowVar) *ast.Effect {
	return &ast.Effect{
		Inputs:  instantiateTypes(e.Inputs, s, tmap, rmap),
		Outputs: instantiateTypes(e.Outputs, s, tmap, rmap),
		RowIn:   freshRowFor(e.RowIn, s, rmap),
		RowOut:  freshRowFor(e.RowOut, s, rmap),
	}
}

func instantiateTypes(ts []ast.Type, s *subst, tmap map[int]ast.Type, rmap map[int]ast.RowVar) []ast.Type {
	out := make([]ast.Type, len(ts))
	for i, t := range ts {
		out[i] = instantiateType(t, s, tmap, rmap)
	}
	return out
}

func instantiateType(t ast.Type, s *subst, tmap map[int]ast.Type, rmap map[int]ast.RowVar) ast.Type {
	t = s.resolve(t)
	switch t.Kind {
	case ast.TVar:
		if fresh, ok := tmap[t.ID]; ok {
			return fresh
		}
		fresh := s.freshVar()
		tmap[t.ID] = fresh
		return fresh
	case ast.TQuotation:
		return ast.Quotation(instantiateWith(t.Effect, s, tmap, rmap))
	default:
		return t
	}
}

func freshRowFor(r ast.RowVar, s *subst, rmap map[int]ast.RowVar) ast.RowVar {
	r = s.resolveRow(r)
	if fresh, ok := rmap[r.ID]; ok {
		return fresh
	}
	fresh := s.freshRow()
	rmap[r.ID] = fresh
	return fresh
}
