// Package arena implements the per-strand bump allocator backing every
// heap value in a running Seq program: strings, variant payloads,
// list/map nodes, and quotation closures. Values are immutable once
// written, identified by (thread_id, offset, kind) — no reference
// counting, no cycles, since every value is append-only and per-strand.
//
// The interning cache (content-addressed reuse of identical strings)
// is grounded on the teacher's session_pool keyed-reuse-or-create
// shape; the content hash itself is blake2b, the teacher's exact
// dependency for a different purpose (fingerprinting secrets), reused
// here for its actual designed purpose — keyed content hashing.
package arena

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/seq-lang/seq/internal/invariant"
)

// Kind identifies the shape of an arena-resident value.
type Kind int

const (
	KindString Kind = iota
	KindVariant
	KindListCons
	KindMap
	KindQuotation
)

// Ref identifies one arena value: which strand's arena it lives in,
// its byte offset within that arena's backing store, and its kind.
// Refs are stable for the value's lifetime (the arena is append-only
// until reset) and safe to copy freely between stack cells.
type Ref struct {
	ThreadID uint64
	Offset   uint64
	Kind     Kind
}

// StringValue is an interned, immutable UTF-8 byte string.
type StringValue struct {
	Bytes []byte
}

// VariantValue is a tagged union payload: the constructor's tag index
// plus its field cells (opaque to the arena — it stores whatever the
// stackcell package gives it).
type VariantValue struct {
	TagIndex int
	Fields   []interface{}
}

// ListConsValue is one cons cell of an immutable linked list.
type ListConsValue struct {
	Head interface{}
	Tail *Ref
}

// MapValue is an immutable symbol-keyed table (copy-on-write: every
// mutating map operation in the surface language allocates a new
// MapValue rather than touching this one in place).
type MapValue struct {
	Entries map[string]interface{}
}

// QuotationValue is a closure: a code pointer (opaque here — codegen's
// concern) plus zero or more captured cells in declaration order.
type QuotationValue struct {
	CodePtr  uintptr
	Captured []interface{}
}

const largeBlockSize = 64 * 1024

// block is one bump-allocated backing slab.
type block struct {
	values []interface{} // arena payloads at this block's offsets
}

// Arena is a per-strand bump allocator. It is not safe for concurrent
// use from multiple goroutines — exactly one strand ever writes to its
// own arena, which is the entire point of the per-strand design (spec
// §5: "Arena memory is per-strand, never shared").
type Arena struct {
	threadID uint64
	blocks   []*block
	next     uint64 // next offset to allocate, monotonically increasing across all blocks

	internMu sync.Mutex // guards the string intern table only
	intern   map[[32]byte]Ref
}

// New creates an arena for the strand identified by threadID.
func New(threadID uint64) *Arena {
	return &Arena{
		threadID: threadID,
		blocks:   []*block{{values: make([]interface{}, 0, largeBlockSize/8)}},
		intern:   map[[32]byte]Ref{},
	}
}

func (a *Arena) alloc(v interface{}, kind Kind) Ref {
	blk := a.blocks[len(a.blocks)-1]
	if len(blk.values) >= cap(blk.values) {
		blk = &block{values: make([]interface{}, 0, largeBlockSize/8)}
		a.blocks = append(a.blocks, blk)
	}
	offset := a.next
	blk.values = append(blk.values, v)
	a.next++
	return Ref{ThreadID: a.threadID, Offset: offset, Kind: kind}
}

// NewString interns a string value: identical content (by blake2b-256
// digest) returns the existing Ref rather than allocating again, since
// arena strings are immutable and sharing them is always safe.
func (a *Arena) NewString(s string) Ref {
	sum := blake2b.Sum256([]byte(s))

	a.internMu.Lock()
	defer a.internMu.Unlock()
	if ref, ok := a.intern[sum]; ok {
		return ref
	}
	ref := a.alloc(&StringValue{Bytes: []byte(s)}, KindString)
	a.intern[sum] = ref
	return ref
}

// NewVariant allocates a tagged union payload.
func (a *Arena) NewVariant(tagIndex int, fields []interface{}) Ref {
	return a.alloc(&VariantValue{TagIndex: tagIndex, Fields: fields}, KindVariant)
}

// NewListCons allocates one cons cell.
func (a *Arena) NewListCons(head interface{}, tail *Ref) Ref {
	return a.alloc(&ListConsValue{Head: head, Tail: tail}, KindListCons)
}

// NewMap allocates an immutable map value from a pre-built entry set
// (callers build the copy-on-write new entry set before calling this).
func (a *Arena) NewMap(entries map[string]interface{}) Ref {
	return a.alloc(&MapValue{Entries: entries}, KindMap)
}

// NewQuotation allocates a closure record.
func (a *Arena) NewQuotation(codePtr uintptr, captured []interface{}) Ref {
	return a.alloc(&QuotationValue{CodePtr: codePtr, Captured: captured}, KindQuotation)
}

// Get resolves a Ref to its value. It panics (a tier-3 fatal process
// error, per spec.md §7) if ref belongs to a different arena or is out
// of range — both indicate a compiler or runtime bug, since a type-
// checked program never constructs a dangling Ref.
func (a *Arena) Get(ref Ref) interface{} {
	invariant.Precondition(ref.ThreadID == a.threadID,
		"arena.Get: ref belongs to thread %d, not this arena's thread %d", ref.ThreadID, a.threadID)

	remaining := ref.Offset
	for _, blk := range a.blocks {
		if remaining < uint64(len(blk.values)) {
			return blk.values[remaining]
		}
		remaining -= uint64(len(blk.values))
	}
	panic(fmt.Sprintf("INVARIANT VIOLATION: arena.Get: offset %d out of range for thread %d", ref.Offset, a.threadID))
}

// Reset releases every value this arena holds. Per the inter-strand
// arena lifetime decision (DESIGN.md), channel sends copy payloads into
// the receiver's arena at transfer time, so Reset is always safe to
// call once the owning strand has completed and no receiver can still
// be reading from this arena.
func (a *Arena) Reset() {
	a.internMu.Lock()
	defer a.internMu.Unlock()
	a.blocks = []*block{{values: make([]interface{}, 0, largeBlockSize/8)}}
	a.next = 0
	a.intern = map[[32]byte]Ref{}
}

// DeepCopyInto copies the value ref points to (recursively, for
// composite kinds) from src into dst, returning dst's Ref for the
// copy. This is the copy-on-send mechanism the channel package uses to
// implement the inter-strand arena lifetime decision: a message's
// payload is never retained as a pointer into the sender's arena past
// the send.
func DeepCopyInto(dst, src *Arena, ref Ref) Ref {
	invariant.Precondition(ref.ThreadID == src.threadID, "arena.DeepCopyInto: ref does not belong to src arena")

	switch ref.Kind {
	case KindString:
		v := src.Get(ref).(*StringValue)
		return dst.NewString(string(v.Bytes))
	case KindVariant:
		v := src.Get(ref).(*VariantValue)
		fields := make([]interface{}, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = deepCopyScalarOrRef(dst, src, f)
		}
		return dst.NewVariant(v.TagIndex, fields)
	case KindListCons:
		v := src.Get(ref).(*ListConsValue)
		var tail *Ref
		if v.Tail != nil {
			t := DeepCopyInto(dst, src, *v.Tail)
			tail = &t
		}
		return dst.NewListCons(deepCopyScalarOrRef(dst, src, v.Head), tail)
	case KindMap:
		v := src.Get(ref).(*MapValue)
		entries := make(map[string]interface{}, len(v.Entries))
		for k, val := range v.Entries {
			entries[k] = deepCopyScalarOrRef(dst, src, val)
		}
		return dst.NewMap(entries)
	case KindQuotation:
		v := src.Get(ref).(*QuotationValue)
		captured := make([]interface{}, len(v.Captured))
		for i, c := range v.Captured {
			captured[i] = deepCopyScalarOrRef(dst, src, c)
		}
		return dst.NewQuotation(v.CodePtr, captured)
	default:
		panic(fmt.Sprintf("INVARIANT VIOLATION: arena.DeepCopyInto: unknown kind %d", ref.Kind))
	}
}

func deepCopyScalarOrRef(dst, src *Arena, v interface{}) interface{} {
	if ref, ok := v.(Ref); ok {
		return DeepCopyInto(dst, src, ref)
	}
	return v
}
