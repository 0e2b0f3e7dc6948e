package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/internal/ast"
)

func TestParse_SimpleWordDef(t *testing.T) {
	mod, bag := Parse("t.seq", `: f ( Int -- Int ) dup i.* ;`)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	require.Len(t, mod.Items, 1)

	wd, ok := mod.Items[0].(*ast.WordDef)
	require.True(t, ok)
	require.Equal(t, "f", wd.Name)
	require.NotNil(t, wd.DeclaredEffect)
	require.Equal(t, []ast.Type{ast.Int()}, wd.DeclaredEffect.Inputs)
	require.Equal(t, []ast.Type{ast.Int()}, wd.DeclaredEffect.Outputs)
	require.Equal(t, wd.DeclaredEffect.RowIn, wd.DeclaredEffect.RowOut)
	require.Len(t, wd.Body, 2)

	call0, ok := wd.Body[0].(*ast.Call)
	require.True(t, ok)
	require.Equal(t, "dup", call0.Name)
}

func TestParse_FibWithIf(t *testing.T) {
	src := `: fib ( Int -- Int ) dup 2 i.< if else dup 1 i.- fib swap 2 i.- fib i.+ then ;`
	mod, bag := Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	wd := mod.Items[0].(*ast.WordDef)

	var ifStmt *ast.If
	for _, s := range wd.Body {
		if v, ok := s.(*ast.If); ok {
			ifStmt = v
		}
	}
	require.NotNil(t, ifStmt)
	require.Empty(t, ifStmt.Then)
	require.NotEmpty(t, ifStmt.Else)
}

func TestParse_Union(t *testing.T) {
	src := `union Option { None | Some { v: Int } }`
	mod, bag := Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())

	u, ok := mod.Items[0].(*ast.UnionDecl)
	require.True(t, ok)
	require.Equal(t, "Option", u.Name)
	require.Len(t, u.Variants, 2)
	require.Equal(t, "None", u.Variants[0].Tag)
	require.Empty(t, u.Variants[0].Fields)
	require.Equal(t, "Some", u.Variants[1].Tag)
	require.Equal(t, "v", u.Variants[1].Fields[0].Name)
	require.Equal(t, ast.Int(), u.Variants[1].Fields[0].Type)
}

func TestParse_Match(t *testing.T) {
	src := `
: describe ( Option -- Int )
  match
    None -> 0
    Some { v } -> v
  end
;`
	mod, bag := Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	wd := mod.Items[0].(*ast.WordDef)
	require.Len(t, wd.Body, 1)

	m, ok := wd.Body[0].(*ast.Match)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)
	require.Equal(t, "None", m.Arms[0].Tag)
	require.Equal(t, "Some", m.Arms[1].Tag)
	require.Equal(t, []string{"v"}, m.Arms[1].Fields)
	require.Len(t, m.Arms[1].Body, 1)
}

func TestParse_MatchWithDefault(t *testing.T) {
	src := `
: f ( Option -- Int )
  match
    None -> 0
    default -> 1
  end
;`
	mod, bag := Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	wd := mod.Items[0].(*ast.WordDef)
	m := wd.Body[0].(*ast.Match)
	require.Len(t, m.Arms, 1)
	require.NotNil(t, m.Default)
}

func TestParse_Quotation(t *testing.T) {
	src := `: twice ( [Int -- Int] -- [Int -- Int] ) ;`
	_, bag := Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())
}

func TestParse_Include(t *testing.T) {
	mod, bag := Parse("t.seq", `include "std:json"`)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	inc, ok := mod.Items[0].(*ast.Include)
	require.True(t, ok)
	require.Equal(t, "std:json", inc.Ref)
}

func TestParse_SuppressedLint(t *testing.T) {
	src := `: f ( -- ) @allow:prefer-nip swap drop ;`
	mod, bag := Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	wd := mod.Items[0].(*ast.WordDef)
	call := wd.Body[0].(*ast.Call)
	require.Equal(t, "swap", call.Name)
	require.Equal(t, []string{"prefer-nip"}, call.SuppressedLints)
}

func TestParse_ErrorRecoveryAccumulatesMultiple(t *testing.T) {
	src := `: f ( Int Int ) ; : g ( ) dup ;`
	_, bag := Parse("t.seq", src)
	require.True(t, bag.HasErrors())
	require.GreaterOrEqual(t, len(bag.Errors()), 2)
}

func TestParse_PushLiterals(t *testing.T) {
	src := `: f ( -- ) 7 3.14 "hi" :tag true false ;`
	mod, bag := Parse("t.seq", src)
	require.False(t, bag.HasErrors(), bag.FormatAll())
	wd := mod.Items[0].(*ast.WordDef)
	require.IsType(t, &ast.PushInt{}, wd.Body[0])
	require.IsType(t, &ast.PushFloat{}, wd.Body[1])
	require.IsType(t, &ast.PushString{}, wd.Body[2])
	require.IsType(t, &ast.PushSymbol{}, wd.Body[3])
	require.IsType(t, &ast.PushBool{}, wd.Body[4])
	require.IsType(t, &ast.PushBool{}, wd.Body[5])
	require.True(t, wd.Body[4].(*ast.PushBool).Value)
	require.False(t, wd.Body[5].(*ast.PushBool).Value)
}
