package types

import (
	"fmt"
	"log/slog"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/diagnostics"
	"github.com/seq-lang/seq/internal/seqlog"
	"github.com/seq-lang/seq/internal/unionelab"
)

var logger = seqlog.New("typecheck")

// Result is the outcome of checking one resolved, elaborated module:
// every WordDef in it has its InferredEffect field populated in place.
type Result struct {
	Schemes map[string]*ast.Effect // word name -> its (possibly declared) effect scheme
}

type checker struct {
	subst   *subst
	unions  *unionelab.Table
	schemes map[string]*ast.Effect
	bag     *diagnostics.Bag
}

// checkErr carries the diagnostics.Kind an inference failure should be
// reported under; a plain error defaults to TypeMismatch when reported.
type checkErr struct {
	kind diagnostics.Kind
	err  error
}

func (e *checkErr) Error() string { return e.err.Error() }

func kindOf(err error) diagnostics.Kind {
	if ce, ok := err.(*checkErr); ok {
		return ce.kind
	}
	return diagnostics.TypeMismatch
}

// Check type-checks every word definition in items (a flattened,
// elaborated module), in dependency order, using unions for variant
// field/tag lookups. Builtins and the synthesized union words are
// available to every word; user words may call each other freely,
// including mutual recursion within one strongly-connected component.
func Check(items []ast.Item, unions *unionelab.Table) (*Result, *diagnostics.Bag) {
	c := &checker{subst: newSubst(), unions: unions, schemes: map[string]*ast.Effect{}, bag: &diagnostics.Bag{}}

	words := map[string]*ast.WordDef{}
	var order []string
	for _, item := range items {
		if wd, ok := item.(*ast.WordDef); ok {
			words[wd.Name] = wd
			order = append(order, wd.Name)
		}
	}

	sccs := tarjanSCCs(order, func(name string) []string {
		return callsOf(words[name].Body)
	})

	// tarjanSCCs returns components in the order Tarjan completes them,
	// i.e. a component only calling already-emitted components comes
	// after them — callees before callers, the order inference needs.
	for _, scc := range sccs {
		c.checkSCC(scc, words)
	}

	logger.Debug("type check complete", slog.Int("words", len(c.schemes)), slog.Int("errors", len(c.bag.Errors())))
	return &Result{Schemes: c.schemes}, c.bag
}

func (c *checker) checkSCC(names []string, words map[string]*ast.WordDef) {
	recursive := len(names) > 1 || callsSelf(names[0], words[names[0]].Body)

	if recursive {
		for _, name := range names {
			wd := words[name]
			if wd.DeclaredEffect == nil {
				c.bag.Addf(diagnostics.SignatureMismatch, wd.Position,
					"word %q participates in recursion and must carry a declared stack effect", name)
				c.schemes[name] = sameRowEffect(nil, nil)
				continue
			}
			c.schemes[name] = wd.DeclaredEffect
		}
		for _, name := range names {
			wd := words[name]
			inferred, err := c.inferEffect(wd.Body)
			if err != nil {
				c.bag.Addf(kindOf(err), wd.Position, "in word %q: %v", name, err)
				continue
			}
			wd.InferredEffect = inferred
			if wd.DeclaredEffect == nil {
				continue
			}
			if err := unifyEffects(instantiate(inferred, c.subst), instantiate(wd.DeclaredEffect, c.subst), c.subst); err != nil {
				c.bag.Addf(diagnostics.SignatureMismatch, wd.Position,
					"word %q body does not match its declared effect: %v", name, err)
			}
		}
		return
	}

	name := names[0]
	wd := words[name]
	inferred, err := c.inferEffect(wd.Body)
	if err != nil {
		c.bag.Addf(kindOf(err), wd.Position, "in word %q: %v", name, err)
		c.schemes[name] = sameRowEffect(nil, nil)
		return
	}
	wd.InferredEffect = inferred
	logger.Debug("inferred effect", slog.String("word", name), slog.Int("inputs", len(inferred.Inputs)), slog.Int("outputs", len(inferred.Outputs)))

	if wd.DeclaredEffect != nil {
		if err := unifyEffects(instantiate(inferred, c.subst), instantiate(wd.DeclaredEffect, c.subst), c.subst); err != nil {
			c.bag.Addf(diagnostics.SignatureMismatch, wd.Position,
				"word %q body does not match its declared effect: %v", name, err)
		}
		c.schemes[name] = wd.DeclaredEffect
	} else {
		c.schemes[name] = inferred
	}
}

// inferEffect infers a definition's effect from scratch: a fresh,
// empty symbolic stack, tracking every fresh variable pulled from
// below as we go. The pulled list, reversed, is the derived effect's
// Inputs; the final stack contents are its Outputs; the final row is
// both RowIn and RowOut (nothing below the pulled inputs is ever
// touched).
func (c *checker) inferEffect(body []ast.Statement) (*ast.Effect, error) {
	var pulled []ast.Type
	st := &stackState{row: c.subst.freshRow()}
	tracker := &pullTracker{st: st, subst: c.subst, pulled: &pulled}
	for _, stmt := range body {
		if err := c.inferStmt(tracker, stmt); err != nil {
			return nil, err
		}
	}

	inputs := make([]ast.Type, len(pulled))
	for i, t := range pulled {
		inputs[len(pulled)-1-i] = c.subst.resolve(t)
	}
	outputs := make([]ast.Type, len(st.items))
	for i, t := range st.items {
		outputs[i] = c.subst.resolve(t)
	}

	row := c.subst.resolveRow(st.row)
	return &ast.Effect{Inputs: inputs, Outputs: outputs, RowIn: row, RowOut: row}, nil
}

// pullTracker wraps a stackState so every pull performed while
// inferring one definition's body (directly, or through nested
// if/match branches that fall back to it once their own local items
// are exhausted) is recorded in declaration order.
type pullTracker struct {
	st     *stackState
	subst  *subst
	pulled *[]ast.Type
}

func (t *pullTracker) need(n int) {
	for len(t.st.items) < n {
		*t.pulled = append(*t.pulled, t.st.pull(t.subst))
	}
}

// apply consumes an instantiated call effect against t's stack,
// recording into t.pulled any row pulls the consumption requires —
// the same bookkeeping need performs, but sized to the effect's full
// input list rather than a single slot. Every call site that
// ultimately reaches stack.go's apply must route through here (or
// through need first) so that a word's declared inputs are never
// satisfied by an unrecorded pull inside apply itself.
func (t *pullTracker) apply(eff *ast.Effect) error {
	t.need(len(eff.Inputs))
	return apply(t.st, eff, t.subst)
}

func (c *checker) inferStmt(t *pullTracker, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.PushInt:
		t.st.items = append(t.st.items, ast.Int())
	case *ast.PushFloat:
		t.st.items = append(t.st.items, ast.Float())
	case *ast.PushString:
		t.st.items = append(t.st.items, ast.Str())
	case *ast.PushSymbol:
		t.st.items = append(t.st.items, ast.Symbol())
	case *ast.PushBool:
		t.st.items = append(t.st.items, ast.Bool())
	case *ast.Quot:
		eff, err := c.inferEffect(s.Body)
		if err != nil {
			return err
		}
		s.SetInferredEffect(eff)
		t.st.items = append(t.st.items, ast.Quotation(eff))
		return nil
	case *ast.Call:
		return c.inferCall(t, s)
	case *ast.If:
		return c.inferIf(t, s)
	case *ast.Match:
		return c.inferMatch(t, s)
	default:
		return fmt.Errorf("unsupported statement node %T", stmt)
	}
	stmt.SetInferredEffect(sameRowEffect(nil, []ast.Type{t.st.items[len(t.st.items)-1]}))
	return nil
}

func (c *checker) inferCall(t *pullTracker, call *ast.Call) error {
	if call.Name == "call" {
		t.need(1)
		top := c.subst.resolve(t.st.items[len(t.st.items)-1])
		if top.Kind != ast.TQuotation {
			return fmt.Errorf("%q expects a quotation on top of the stack, got %s", call.Name, describe(top))
		}
		t.st.items = t.st.items[:len(t.st.items)-1]
		eff := instantiate(top.Effect, c.subst)
		call.SetInferredEffect(eff)
		return t.apply(eff)
	}

	scheme, ok := c.lookupScheme(call.Name)
	if !ok {
		suggestion := diagnostics.Suggest(call.Name, c.knownNames())
		msg := fmt.Sprintf("undefined word %q", call.Name)
		if suggestion != "" {
			msg += ". " + suggestion
		}
		return &checkErr{kind: diagnostics.UndefinedWord, err: fmt.Errorf("%s", msg)}
	}

	eff := instantiate(scheme, c.subst)
	call.SetInferredEffect(eff)
	return t.apply(eff)
}

func (c *checker) lookupScheme(name string) (*ast.Effect, bool) {
	if eff, ok := builtinEffects[name]; ok {
		return eff, true
	}
	if ctor, ok := c.unions.Constructors[name]; ok {
		in := make([]ast.Type, len(ctor.Fields))
		for i, f := range ctor.Fields {
			in[i] = f.Type
		}
		return sameRowEffect(in, []ast.Type{ast.Union(ctor.Union)}), true
	}
	if pred, ok := c.unions.Predicates[name]; ok {
		return sameRowEffect([]ast.Type{ast.Union(pred.Union)}, []ast.Type{ast.Bool()}), true
	}
	if acc, ok := c.unions.Accessors[name]; ok {
		return sameRowEffect([]ast.Type{ast.Union(acc.Union)}, []ast.Type{acc.FieldType}), true
	}
	if eff, ok := c.schemes[name]; ok {
		return eff, true
	}
	return nil, false
}

func (c *checker) knownNames() []string {
	var names []string
	for n := range builtinEffects {
		names = append(names, n)
	}
	for n := range c.unions.Constructors {
		names = append(names, n)
	}
	for n := range c.unions.Predicates {
		names = append(names, n)
	}
	for n := range c.unions.Accessors {
		names = append(names, n)
	}
	for n := range c.schemes {
		names = append(names, n)
	}
	return names
}

func (c *checker) inferIf(t *pullTracker, s *ast.If) error {
	t.need(1)
	scrutinee := c.subst.resolve(t.st.items[len(t.st.items)-1])
	if err := unify(scrutinee, ast.Bool(), c.subst); err != nil {
		return fmt.Errorf("if condition: %v", err)
	}
	t.st.items = t.st.items[:len(t.st.items)-1]

	thenStack := t.st.clone()
	elseStack := t.st.clone()

	// Each branch runs against its own local pulled record: it starts
	// from an identical clone of the entry stack, so a pull performed
	// by one branch and not the other is not yet known to be a real
	// input to the whole word — only a branch that actually reaches
	// below the common entry proves that. reconcilePulled below folds
	// the two branches' local records into the single shared prefix
	// t.pulled actually needs, instead of appending both blindly.
	var thenPulled, elsePulled []ast.Type
	thenTracker := &pullTracker{st: thenStack, subst: c.subst, pulled: &thenPulled}
	for _, stmt := range s.Then {
		if err := c.inferStmt(thenTracker, stmt); err != nil {
			return err
		}
	}
	elseTracker := &pullTracker{st: elseStack, subst: c.subst, pulled: &elsePulled}
	for _, stmt := range s.Else {
		if err := c.inferStmt(elseTracker, stmt); err != nil {
			return err
		}
	}

	if err := reconcile(thenStack, elseStack, c.subst); err != nil {
		return fmt.Errorf("if/else branches have different effects: %v", err)
	}

	reconcilePulled(t.pulled, thenPulled, elsePulled)

	t.st.items = thenStack.items
	t.st.row = c.subst.resolveRow(thenStack.row)
	return nil
}

// reconcilePulled folds the per-branch pulled records of a set of
// sibling branches (if/else, or match arms plus default) — all
// inferred from clones of one common entry stack — into the parent
// tracker's single shared prefix. Every branch that reaches below the
// entry stack at all reaches the same depth once reconcile has
// unified the branches' final rows, so the longest branch record
// already names every slot the construct as a whole requires; a
// shorter sibling's absence of a pull only means that branch happened
// not to need a slot the others did, not that the slot doesn't exist.
func reconcilePulled(dst *[]ast.Type, branches ...[]ast.Type) {
	var longest []ast.Type
	for _, b := range branches {
		if len(b) > len(longest) {
			longest = b
		}
	}
	*dst = append(*dst, longest...)
}

func (c *checker) inferMatch(t *pullTracker, m *ast.Match) error {
	t.need(1)
	scrutinee := c.subst.resolve(t.st.items[len(t.st.items)-1])
	if scrutinee.Kind == ast.TVar && len(m.Arms) > 0 {
		// An unconstrained scrutinee (such as a word input pulled from
		// below) takes the union that declares the first arm's tag.
		for name, info := range c.unions.Unions {
			if _, ok := info.VariantIndex[m.Arms[0].Tag]; ok {
				if err := unify(scrutinee, ast.Union(name), c.subst); err != nil {
					return err
				}
				scrutinee = ast.Union(name)
				break
			}
		}
	}
	if scrutinee.Kind != ast.TUnion {
		return fmt.Errorf("match scrutinee must be a union type, got %s", describe(scrutinee))
	}
	t.st.items = t.st.items[:len(t.st.items)-1]

	info, ok := c.unions.Unions[scrutinee.Name]
	if !ok {
		return fmt.Errorf("unknown union %q", scrutinee.Name)
	}

	seen := map[string]bool{}
	var resultStack *stackState
	var armPulls [][]ast.Type

	for _, arm := range m.Arms {
		idx, ok := info.VariantIndex[arm.Tag]
		if !ok {
			return fmt.Errorf("%q is not a variant of %s", arm.Tag, scrutinee.Name)
		}
		seen[arm.Tag] = true
		variant := info.Decl.Variants[idx]
		if len(arm.Fields) != len(variant.Fields) {
			return fmt.Errorf("match arm %q binds %d fields, variant declares %d", arm.Tag, len(arm.Fields), len(variant.Fields))
		}

		armStack := t.st.clone()
		for _, f := range variant.Fields {
			armStack.items = append(armStack.items, f.Type)
		}
		var armPulled []ast.Type
		armTracker := &pullTracker{st: armStack, subst: c.subst, pulled: &armPulled}
		for _, stmt := range arm.Body {
			if err := c.inferStmt(armTracker, stmt); err != nil {
				return err
			}
		}
		armPulls = append(armPulls, armPulled)

		if resultStack == nil {
			resultStack = armStack
		} else if err := reconcile(resultStack, armStack, c.subst); err != nil {
			return fmt.Errorf("match arm %q has a different effect than earlier arms: %v", arm.Tag, err)
		}
	}

	if m.Default != nil {
		defStack := t.st.clone()
		var defPulled []ast.Type
		defTracker := &pullTracker{st: defStack, subst: c.subst, pulled: &defPulled}
		for _, stmt := range m.Default {
			if err := c.inferStmt(defTracker, stmt); err != nil {
				return err
			}
		}
		armPulls = append(armPulls, defPulled)
		if resultStack == nil {
			resultStack = defStack
		} else if err := reconcile(resultStack, defStack, c.subst); err != nil {
			return fmt.Errorf("match default arm has a different effect than the other arms: %v", err)
		}
	} else {
		for tag := range info.VariantIndex {
			if !seen[tag] {
				return fmt.Errorf("non-exhaustive match on %s: missing variant %q", scrutinee.Name, tag)
			}
		}
	}

	reconcilePulled(t.pulled, armPulls...)

	if resultStack == nil {
		resultStack = t.st.clone()
	}
	t.st.items = resultStack.items
	t.st.row = c.subst.resolveRow(resultStack.row)
	return nil
}

// callsOf collects every word name called anywhere in a body,
// including inside quotations, if branches, and match arms — the
// edges of the call graph Tarjan runs over.
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

func callsSelf(name string, body []ast.Statement) bool {
	for _, n := range callsOf(body) {
		if n == name {
			return true
		}
	}
	return false
}
