package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/internal/parser"
	"github.com/seq-lang/seq/internal/types"
	"github.com/seq-lang/seq/internal/unionelab"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	mod, bag := parser.Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())

	tbl, ebag := unionelab.Elaborate(mod.Items)
	require.False(t, ebag.HasErrors())

	_, cbag := types.Check(mod.Items, tbl)
	require.False(t, cbag.HasErrors(), cbag.FormatAll())

	return Emit(mod.Items, tbl)
}

func TestEmit_SimpleWordIsTailccWithMusttailReturn(t *testing.T) {
	ir := compile(t, `: f ( Int -- Int ) dup i.* ;`)
	require.Contains(t, ir, `define tailcc ptr @"seq$f"(ptr %s0) {`)
	require.Contains(t, ir, "musttail call tailcc ptr @seq_rt_i_mul")
}

func TestEmit_RecursiveTailCallUsesMusttail(t *testing.T) {
	ir := compile(t, `: count-down ( Int -- Int ) dup 0 i.= if else 1 i.- count-down then ;`)
	require.Contains(t, ir, `musttail call tailcc ptr @"seq$count-down"(ptr`)
}

func TestEmit_NonTailCallIsOrdinary(t *testing.T) {
	ir := compile(t, `: double ( Int -- Int ) dup i.+ ; : f ( Int -- Int ) double dup ;`)
	// "double" is called in non-tail position in f, so it must not be musttail.
	lines := strings.Split(ir, "\n")
	found := false
	for _, l := range lines {
		if strings.Contains(l, `call tailcc ptr @"seq$double"`) && !strings.Contains(l, "musttail") {
			found = true
		}
	}
	require.True(t, found, "expected an ordinary (non-musttail) call to seq$double in:\n%s", ir)
}

func TestEmit_UnionConstructorPredicateAccessor(t *testing.T) {
	ir := compile(t, `
union Option { None | Some { v: Int } }
: f ( Int -- Bool ) Make-Some is-Some? ;
`)
	require.Contains(t, ir, `define tailcc ptr @"seq$Make-Some"(ptr %s0) {`)
	require.Contains(t, ir, "musttail call tailcc ptr @seq_variant_make(ptr %s0, i64 1, i64 1)")
	require.Contains(t, ir, `define tailcc ptr @"seq$is-Some?"(ptr %s0) {`)
	require.Contains(t, ir, "musttail call tailcc ptr @seq_variant_is_tag(ptr %s0, i64 1)")
	require.Contains(t, ir, `define tailcc ptr @"seq$Some-v"(ptr %s0) {`)
	require.Contains(t, ir, "musttail call tailcc ptr @seq_variant_field_at(ptr %s0, i64 1, i64 0)")
}

func TestEmit_QuotationGetsOwnFunctionAndCallDispatches(t *testing.T) {
	ir := compile(t, `: f ( -- Int ) [ 1 ] call ;`)
	require.Contains(t, ir, `@"seq$quot$1"`)
	require.Contains(t, ir, "@seq_pop_quotation")
	require.Contains(t, ir, "@seq_call_closure")
}

func TestEmit_MatchLowersToSwitch(t *testing.T) {
	ir := compile(t, `
union Option { None | Some { v: Int } }
: f ( Option -- Int ) match None -> 0 Some { v } -> end ;
`)
	require.Contains(t, ir, "@seq_pop_variant")
	require.Contains(t, ir, "switch i64")
	require.Contains(t, ir, "@seq_variant_unpack")
}

func TestEmit_DeterministicAcrossRuns(t *testing.T) {
	src := `: f ( Int -- Int ) dup i.* ;`
	a := compile(t, src)
	b := compile(t, src)
	require.Equal(t, a, b)
}
