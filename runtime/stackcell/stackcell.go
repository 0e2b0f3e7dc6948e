// Package stackcell implements Seq's operand stack: a singly-linked
// list of exclusively-owned cells. This is the runtime's hardest
// invariant (spec.md §9): cells are owned nodes, never shared; dup
// deep-clones the top cell and sets its Next to nil before it is
// pushed; every shuffle is threaded by a sequence of Pop calls
// followed by Push calls, never by mutating the Next field of a cell
// still reachable from somewhere else.
//
// There is no teacher analog for this discipline (a shell-automation
// DSL has no operand stack); the shape here is spec.md §4.8/§9 made
// concrete, with internal/invariant supplying the panic-on-violation
// assertions spec.md §7 calls a "fatal process error".
package stackcell

import (
	"os"

	"github.com/seq-lang/seq/internal/invariant"
)

// Tag identifies a cell's payload shape.
type Tag int

const (
	TagInt64 Tag = iota
	TagFloat64
	TagBool
	TagSymbol
	TagArenaPtr
)

// ArenaKind narrows TagArenaPtr payloads, mirroring the arena value
// kinds in spec.md §3.
type ArenaKind int

const (
	KindString ArenaKind = iota
	KindVariant
	KindListCons
	KindMap
	KindQuotation
)

// Cell is one node of the operand stack. Value fields beyond the one
// Tag selects are zero/unused; ArenaRef is an opaque handle into the
// owning strand's arena (never dereferenced here — that is the arena
// package's job) and is safe to copy since arena values are immutable.
type Cell struct {
	Tag       Tag
	I64       int64
	F64       float64
	Bool      bool
	Symbol    string
	ArenaKind ArenaKind
	ArenaRef  uintptr
	Next      *Cell
}

// DebugChecks gates the post-primitive invariant assertions described
// in spec.md §9. It defaults to on when SEQ_DEBUG_STACK=1 is set in
// the environment; compiled executables leave it off for release
// builds since walking the list after every primitive is O(depth).
var DebugChecks = os.Getenv("SEQ_DEBUG_STACK") == "1"

// Push returns a new stack with v on top of rest. v.Next is
// overwritten unconditionally — callers never get to smuggle in a
// cell that already aliases part of another stack.
func Push(rest *Cell, v Cell) *Cell {
	v.Next = rest
	cell := v
	assertInvariants(&cell)
	return &cell
}

// Pop splits top into its value (with Next reset to nil, matching the
// deep-clone convention: a cell taken off the stack is never still
// linked to the rest of it) and the remaining stack.
func Pop(top *Cell) (rest *Cell, popped *Cell) {
	invariant.NotNil(top, "stackcell.Pop: top")
	v := *top
	v.Next = nil
	return top.Next, &v
}

// Dup pushes a deep clone of the top cell. Heap references inside an
// ArenaPtr cell are copied as pointers (sharing is permitted because
// arena values are immutable once written) but the new cell's own Next
// is always nil until Push sets it — so mutating the original top's
// arena value never reaches through the clone, and vice versa.
func Dup(top *Cell) *Cell {
	invariant.NotNil(top, "stackcell.Dup: top")
	clone := deepCloneValue(*top)
	return Push(top, clone)
}

// Drop discards the top cell.
func Drop(top *Cell) *Cell {
	invariant.NotNil(top, "stackcell.Drop: top")
	return top.Next
}

// Swap: ( a b -- b a ).
func Swap(top *Cell) *Cell {
	rest, cells := popN(top, 2) // cells[0]=b (old top), cells[1]=a
	return pushN(rest, []Cell{*cells[0], *cells[1]})
}

// Over: ( a b -- a b a ).
func Over(top *Cell) *Cell {
	rest, cells := popN(top, 2) // cells[0]=b, cells[1]=a
	restored := pushN(rest, []Cell{*cells[1], *cells[0]})
	return Push(restored, deepCloneValue(*cells[1]))
}

// Rot: ( a b c -- b c a ).
func Rot(top *Cell) *Cell {
	rest, cells := popN(top, 3) // cells[0]=c, cells[1]=b, cells[2]=a
	return pushN(rest, []Cell{*cells[1], *cells[0], *cells[2]})
}

// Roll has the same fixed-arity-3 effect as Rot in this surface
// language (there is no runtime-parametrized "n roll" in the grammar).
func Roll(top *Cell) *Cell {
	return Rot(top)
}

// Nip: ( a b -- b ).
func Nip(top *Cell) *Cell {
	rest, cells := popN(top, 2) // cells[0]=b, cells[1]=a
	return pushN(rest, []Cell{*cells[0]})
}

// Tuck: ( a b -- b a b ).
func Tuck(top *Cell) *Cell {
	rest, cells := popN(top, 2) // cells[0]=b, cells[1]=a
	restored := pushN(rest, []Cell{*cells[0], *cells[1]})
	return Push(restored, deepCloneValue(*cells[0]))
}

// Pick: ( a b c -- a b c a ).
func Pick(top *Cell) *Cell {
	rest, cells := popN(top, 3) // cells[0]=c, cells[1]=b, cells[2]=a
	restored := pushN(rest, []Cell{*cells[2], *cells[1], *cells[0]})
	return Push(restored, deepCloneValue(*cells[2]))
}

// TwoDup: ( a b -- a b a b ).
func TwoDup(top *Cell) *Cell {
	rest, cells := popN(top, 2) // cells[0]=b, cells[1]=a
	restored := pushN(rest, []Cell{*cells[1], *cells[0]})
	withA := Push(restored, deepCloneValue(*cells[1]))
	return Push(withA, deepCloneValue(*cells[0]))
}

// ThreeDrop: ( a b c -- ).
func ThreeDrop(top *Cell) *Cell {
	rest, _ := popN(top, 3)
	return rest
}

// popN pops n cells off top, returning the remaining stack and the
// popped cells with cells[0] being the original top (deepest of the
// group is cells[n-1]).
func popN(top *Cell, n int) (rest *Cell, cells []*Cell) {
	cur := top
	cells = make([]*Cell, n)
	for i := 0; i < n; i++ {
		var c *Cell
		cur, c = Pop(cur)
		cells[i] = c
	}
	return cur, cells
}

// pushN pushes cells in order (cells[0] ends up deepest, the last
// element ends up on top), returning the new top.
func pushN(rest *Cell, cells []Cell) *Cell {
	cur := rest
	for _, c := range cells {
		cur = Push(cur, c)
	}
	return cur
}

func deepCloneValue(c Cell) Cell {
	c.Next = nil
	return c
}

// assertInvariants is the spec.md §9 debug-mode check: the chain from
// top must be acyclic (Floyd's cycle detection). A stale Next on a
// pushed cell is not checked here: Push overwrites Next
// unconditionally. A cycle is structurally impossible under the
// StackCell discipline, so tripping the check is a compiler or runtime
// bug (spec tier-3 fatal error), not a user error.
func assertInvariants(top *Cell) {
	if !DebugChecks {
		return
	}
	slow, fast := top, top
	for fast != nil && fast.Next != nil {
		slow = slow.Next
		fast = fast.Next.Next
		invariant.Invariant(slow != fast, "stack cell chain contains a cycle")
	}
}
