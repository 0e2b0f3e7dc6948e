package unionelab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/internal/parser"
)

func TestElaborate_SynthesizesWordsPerVariant(t *testing.T) {
	mod, bag := parser.Parse("t.seq", `union Option { None | Some { v: Int } }`)
	require.False(t, bag.HasErrors())

	tbl, ebag := Elaborate(mod.Items)
	require.False(t, ebag.HasErrors())

	require.Contains(t, tbl.Constructors, "Make-None")
	require.Contains(t, tbl.Constructors, "Make-Some")
	require.Empty(t, tbl.Constructors["Make-None"].Fields)
	require.Len(t, tbl.Constructors["Make-Some"].Fields, 1)

	require.Contains(t, tbl.Predicates, "is-None?")
	require.Contains(t, tbl.Predicates, "is-Some?")

	require.Contains(t, tbl.Accessors, "Some-v")
	require.NotContains(t, tbl.Accessors, "None-v")

	info := tbl.Unions["Option"]
	require.Equal(t, 0, info.VariantIndex["None"])
	require.Equal(t, 1, info.VariantIndex["Some"])
}

func TestElaborate_CollisionWithUserWord(t *testing.T) {
	mod, bag := parser.Parse("t.seq", `
: Make-Some ( -- ) ;
union Option { None | Some { v: Int } }`)
	require.False(t, bag.HasErrors())

	_, ebag := Elaborate(mod.Items)
	require.True(t, ebag.HasErrors())
}

func TestElaborate_CollisionAcrossUnions(t *testing.T) {
	mod, bag := parser.Parse("t.seq", `
union A { None }
union B { None }`)
	require.False(t, bag.HasErrors())

	_, ebag := Elaborate(mod.Items)
	require.True(t, ebag.HasErrors())
}
