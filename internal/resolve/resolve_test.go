package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/internal/parser"
)

func TestParseRef_Kinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind RefKind
		name string
		ver  string
	}{
		{"std:json", RefStd, "json", ""},
		{"ffi:curl", RefFFI, "curl", ""},
		{"./helpers", RefRelative, "./helpers", ""},
		{"std:json@v1.2.3", RefStd, "json", "v1.2.3"},
	}
	for _, c := range cases {
		r := ParseRef(c.raw)
		require.Equal(t, c.kind, r.Kind, c.raw)
		require.Equal(t, c.name, r.Name, c.raw)
		require.Equal(t, c.ver, r.Version, c.raw)
	}
}

func TestRef_VersionValidAndSatisfies(t *testing.T) {
	r := ParseRef("std:json@v1.2.3")
	require.True(t, r.VersionValid())
	require.True(t, r.Satisfies("v1.2.3"))
	require.True(t, r.Satisfies("v1.3.0"))
	require.False(t, r.Satisfies("v1.0.0"))

	bad := ParseRef("std:json@vNOPE")
	require.False(t, bad.VersionValid())
}

func TestResolve_FlattensIncludeInPlace(t *testing.T) {
	dep, bag := parser.Parse("dep.seq", `: helper ( Int -- Int ) dup ;`)
	require.False(t, bag.HasErrors())

	root, bag := parser.Parse("root.seq", `include "std:dep"
: main ( Int -- Int ) helper ;`)
	require.False(t, bag.HasErrors())

	loader := MapLoader{"std:dep": dep}
	resolved, rbag := Resolve("root.seq", root, loader)
	require.False(t, rbag.HasErrors())
	require.Len(t, resolved.Items, 2)
}

func TestResolve_DetectsCycle(t *testing.T) {
	a, _ := parser.Parse("a.seq", `include "std:b"`)
	b, _ := parser.Parse("b.seq", `include "std:a"`)

	loader := MapLoader{"std:a": a, "std:b": b}
	_, bag := Resolve("a.seq", a, loader)
	require.True(t, bag.HasErrors())
}

func TestResolve_DiamondIncludeIsNotDuplicated(t *testing.T) {
	leaf, _ := parser.Parse("leaf.seq", `: shared ( -- ) ;`)
	mid1, _ := parser.Parse("mid1.seq", `include "std:leaf"`)
	mid2, _ := parser.Parse("mid2.seq", `include "std:leaf"`)
	root, _ := parser.Parse("root.seq", `include "std:mid1"
include "std:mid2"`)

	loader := MapLoader{
		"std:leaf": leaf,
		"std:mid1": mid1,
		"std:mid2": mid2,
	}
	resolved, bag := Resolve("root.seq", root, loader)
	require.False(t, bag.HasErrors())
	require.Len(t, resolved.Items, 1)
}

func TestResolve_UnresolvedModule(t *testing.T) {
	root, _ := parser.Parse("root.seq", `include "std:missing"`)
	_, bag := Resolve("root.seq", root, MapLoader{})
	require.True(t, bag.HasErrors())
}
