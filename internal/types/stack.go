package types

import "github.com/seq-lang/seq/internal/ast"

// stackState is the symbolic stack described in the type checker's
// design: a row variable standing for the unknown rest of the stack,
// plus a finite list of known types above it, bottom-most first (the
// top of the symbolic stack is items[len(items)-1]).
type stackState struct {
	row   ast.RowVar
	items []ast.Type
}

func (st *stackState) clone() *stackState {
	items := make([]ast.Type, len(st.items))
	copy(items, st.items)
	return &stackState{row: st.row, items: items}
}

// pull extends stack st downward by one fresh type variable when a
// call needs more input than st currently tracks — the operational
// form of "a row-var unifies with another row plus a finite type list
// prefix": st.row is aliased to a brand-new row variable representing
// everything below the newly-revealed slot.
func (st *stackState) pull(s *subst) ast.Type {
	fresh := s.freshVar()
	newRow := s.freshRow()
	s.aliasRow(st.row, newRow)
	st.row = newRow
	st.items = append([]ast.Type{fresh}, st.items...)
	return fresh
}

// apply consumes effect's declared inputs off the top of st (pulling
// fresh variables from the row if st doesn't yet know enough), unifies
// them against the effect's input types, then pushes the effect's
// outputs. effect must already be a fresh instantiation (see
// instantiate) — applying the same *ast.Effect twice would
// incorrectly share bindings across call sites.
func apply(st *stackState, effect *ast.Effect, s *subst) error {
	for len(st.items) < len(effect.Inputs) {
		st.pull(s)
	}

	n := len(effect.Inputs)
	consumed := st.items[len(st.items)-n:]
	st.items = st.items[:len(st.items)-n]

	for i, want := range effect.Inputs {
		if err := unify(consumed[i], want, s); err != nil {
			return err
		}
	}

	st.items = append(st.items, effect.Outputs...)
	// Same-row effects (RowIn == RowOut, the only shape a declared
	// surface signature can carry) leave st.row untouched: nothing
	// below the consumed inputs was touched. A distinct-row effect
	// (only ever produced internally, never by parsed source) would
	// additionally alias st.row to effect.RowOut here; Seq's grammar
	// gives no way to construct one, so this case does not arise.
	if effect.RowIn.ID != effect.RowOut.ID {
		s.aliasRow(st.row, effect.RowOut)
	}
	return nil
}

// reconcile unifies two stacks produced by independently inferring
// two branches (if/else, match arms) that started from a common
// ancestor state. It pads whichever stack has fewer known items by
// pulling fresh variables from the shorter stack's row until lengths
// match, then unifies pairwise and aliases the two rows together.
func reconcile(a, b *stackState, s *subst) error {
	for len(a.items) > len(b.items) {
		b.pull(s)
	}
	for len(b.items) > len(a.items) {
		a.pull(s)
	}
	s.aliasRow(a.row, b.row)
	for i := range a.items {
		if err := unify(a.items[i], b.items[i], s); err != nil {
			return err
		}
	}
	return nil
}
