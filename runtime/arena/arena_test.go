package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewString_InterningReusesRefForIdenticalContent(t *testing.T) {
	a := New(1)
	r1 := a.NewString("hello")
	r2 := a.NewString("hello")
	require.Equal(t, r1, r2)

	r3 := a.NewString("world")
	require.NotEqual(t, r1, r3)
}

func TestNewString_RoundTripsBytes(t *testing.T) {
	a := New(1)
	r := a.NewString("hello")
	v := a.Get(r).(*StringValue)
	require.Equal(t, "hello", string(v.Bytes))
}

func TestGet_PanicsOnForeignThreadRef(t *testing.T) {
	a1 := New(1)
	a2 := New(2)
	ref := a1.NewString("x")
	require.Panics(t, func() { a2.Get(ref) })
}

func TestGet_PanicsOnOutOfRangeOffset(t *testing.T) {
	a := New(1)
	require.Panics(t, func() { a.Get(Ref{ThreadID: 1, Offset: 999, Kind: KindString}) })
}

func TestNewVariant_StoresTagAndFields(t *testing.T) {
	a := New(1)
	r := a.NewVariant(2, []interface{}{int64(7)})
	v := a.Get(r).(*VariantValue)
	require.Equal(t, 2, v.TagIndex)
	require.Equal(t, []interface{}{int64(7)}, v.Fields)
}

func TestNewListCons_ChainsTail(t *testing.T) {
	a := New(1)
	tail := a.NewListCons(int64(2), nil)
	head := a.NewListCons(int64(1), &tail)

	got := a.Get(head).(*ListConsValue)
	require.Equal(t, int64(1), got.Head)
	require.NotNil(t, got.Tail)
	require.Equal(t, tail, *got.Tail)
}

func TestReset_ClearsValuesAndInternTable(t *testing.T) {
	a := New(1)
	a.NewString("hello")
	a.Reset()

	// After reset the offsets restart from zero, so a fresh allocation
	// must not collide with a stale entry from before the reset.
	r := a.NewString("hello")
	require.Equal(t, uint64(0), r.Offset)
	v := a.Get(r).(*StringValue)
	require.Equal(t, "hello", string(v.Bytes))
}

func TestDeepCopyInto_String(t *testing.T) {
	src := New(1)
	dst := New(2)

	ref := src.NewString("payload")
	copied := DeepCopyInto(dst, src, ref)

	require.Equal(t, uint64(2), copied.ThreadID)
	v := dst.Get(copied).(*StringValue)
	require.Equal(t, "payload", string(v.Bytes))
}

func TestDeepCopyInto_VariantRecursesThroughFields(t *testing.T) {
	src := New(1)
	dst := New(2)

	inner := src.NewString("nested")
	ref := src.NewVariant(0, []interface{}{inner, int64(5)})

	copied := DeepCopyInto(dst, src, ref)
	v := dst.Get(copied).(*VariantValue)
	require.Equal(t, 0, v.TagIndex)
	require.Len(t, v.Fields, 2)

	nestedRef, ok := v.Fields[0].(Ref)
	require.True(t, ok)
	require.Equal(t, uint64(2), nestedRef.ThreadID)
	nested := dst.Get(nestedRef).(*StringValue)
	require.Equal(t, "nested", string(nested.Bytes))

	require.Equal(t, int64(5), v.Fields[1])
}

func TestDeepCopyInto_ListConsRecursesThroughTail(t *testing.T) {
	src := New(1)
	dst := New(2)

	tail := src.NewListCons(int64(2), nil)
	head := src.NewListCons(int64(1), &tail)

	copied := DeepCopyInto(dst, src, head)
	v := dst.Get(copied).(*ListConsValue)
	require.Equal(t, int64(1), v.Head)
	require.NotNil(t, v.Tail)
	require.Equal(t, uint64(2), v.Tail.ThreadID)

	tailVal := dst.Get(*v.Tail).(*ListConsValue)
	require.Equal(t, int64(2), tailVal.Head)
	require.Nil(t, tailVal.Tail)
}

func TestDeepCopyInto_MapRecursesThroughEntries(t *testing.T) {
	src := New(1)
	dst := New(2)

	inner := src.NewString("v")
	ref := src.NewMap(map[string]interface{}{"k": inner})

	copied := DeepCopyInto(dst, src, ref)
	v := dst.Get(copied).(*MapValue)
	nestedRef := v.Entries["k"].(Ref)
	require.Equal(t, uint64(2), nestedRef.ThreadID)
}

func TestDeepCopyInto_QuotationRecursesThroughCaptured(t *testing.T) {
	src := New(1)
	dst := New(2)

	inner := src.NewString("captured")
	ref := src.NewQuotation(0xABCD, []interface{}{inner})

	copied := DeepCopyInto(dst, src, ref)
	v := dst.Get(copied).(*QuotationValue)
	require.Equal(t, uintptr(0xABCD), v.CodePtr)
	require.Len(t, v.Captured, 1)
	nestedRef := v.Captured[0].(Ref)
	require.Equal(t, uint64(2), nestedRef.ThreadID)
}

func TestDeepCopyInto_NeverRetainsSourceThreadID(t *testing.T) {
	src := New(1)
	dst := New(2)

	ref := src.NewString("x")
	copied := DeepCopyInto(dst, src, ref)
	require.NotEqual(t, src, dst)
	require.Equal(t, dst.threadID, copied.ThreadID)
}

func TestAlloc_SpillsAcrossBlocksPastCapacity(t *testing.T) {
	a := New(1)
	// Force more allocations than a single block's initial capacity so
	// the spill-to-new-block path in alloc runs and offsets still
	// resolve correctly across the block boundary.
	n := largeBlockSize/8 + 10
	refs := make([]Ref, n)
	for i := 0; i < n; i++ {
		refs[i] = a.NewVariant(i, nil)
	}
	for i, ref := range refs {
		v := a.Get(ref).(*VariantValue)
		require.Equal(t, i, v.TagIndex)
	}
}
