package types

import "github.com/seq-lang/seq/internal/ast"

// sameRowEffect builds an Effect whose RowIn and RowOut are the same
// placeholder row variable — the only shape a word signature can take
// (instantiate gives every call site its own fresh row regardless).
func sameRowEffect(in, out []ast.Type) *ast.Effect {
	row := ast.RowVar{ID: 0}
	return &ast.Effect{Inputs: in, Outputs: out, RowIn: row, RowOut: row}
}

func tv(id int) ast.Type { return ast.Var(id) }

// builtinEffects is the signature table for every runtime-provided
// word the surface language exposes directly. Shuffle words and
// arithmetic/comparison/IO primitives come straight from the data
// model and combinator sections; "call" is handled specially by the
// checker since its effect depends on the type of the value it pops.
var builtinEffects = map[string]*ast.Effect{
	"dup":   sameRowEffect([]ast.Type{tv(1)}, []ast.Type{tv(1), tv(1)}),
	"drop":  sameRowEffect([]ast.Type{tv(1)}, nil),
	"swap":  sameRowEffect([]ast.Type{tv(1), tv(2)}, []ast.Type{tv(2), tv(1)}),
	"over":  sameRowEffect([]ast.Type{tv(1), tv(2)}, []ast.Type{tv(1), tv(2), tv(1)}),
	"rot":   sameRowEffect([]ast.Type{tv(1), tv(2), tv(3)}, []ast.Type{tv(2), tv(3), tv(1)}),
	"nip":   sameRowEffect([]ast.Type{tv(1), tv(2)}, []ast.Type{tv(2)}),
	"tuck":  sameRowEffect([]ast.Type{tv(1), tv(2)}, []ast.Type{tv(2), tv(1), tv(2)}),
	"pick":  sameRowEffect([]ast.Type{tv(1), tv(2), tv(3)}, []ast.Type{tv(1), tv(2), tv(3), tv(1)}),
	"roll":  sameRowEffect([]ast.Type{tv(1), tv(2), tv(3)}, []ast.Type{tv(2), tv(3), tv(1)}),
	"2dup":  sameRowEffect([]ast.Type{tv(1), tv(2)}, []ast.Type{tv(1), tv(2), tv(1), tv(2)}),
	"3drop": sameRowEffect([]ast.Type{tv(1), tv(2), tv(3)}, nil),

	"i.+": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Int()}),
	"i.-": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Int()}),
	"i.*": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Int()}),
	"i./": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Int()}),
	"i.%": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Int()}),
	"i.<": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Bool()}),
	"i.>": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Bool()}),
	"i.=": sameRowEffect([]ast.Type{ast.Int(), ast.Int()}, []ast.Type{ast.Bool()}),

	"f.+": sameRowEffect([]ast.Type{ast.Float(), ast.Float()}, []ast.Type{ast.Float()}),
	"f.-": sameRowEffect([]ast.Type{ast.Float(), ast.Float()}, []ast.Type{ast.Float()}),
	"f.*": sameRowEffect([]ast.Type{ast.Float(), ast.Float()}, []ast.Type{ast.Float()}),
	"f./": sameRowEffect([]ast.Type{ast.Float(), ast.Float()}, []ast.Type{ast.Float()}),
	"f.<": sameRowEffect([]ast.Type{ast.Float(), ast.Float()}, []ast.Type{ast.Bool()}),

	"bool.not": sameRowEffect([]ast.Type{ast.Bool()}, []ast.Type{ast.Bool()}),
	"bool.and": sameRowEffect([]ast.Type{ast.Bool(), ast.Bool()}, []ast.Type{ast.Bool()}),
	"bool.or":  sameRowEffect([]ast.Type{ast.Bool(), ast.Bool()}, []ast.Type{ast.Bool()}),

	"int->string":    sameRowEffect([]ast.Type{ast.Int()}, []ast.Type{ast.Str()}),
	"string->int":    sameRowEffect([]ast.Type{ast.Str()}, []ast.Type{ast.Int()}),
	"float->string":  sameRowEffect([]ast.Type{ast.Float()}, []ast.Type{ast.Str()}),
	"string.concat":  sameRowEffect([]ast.Type{ast.Str(), ast.Str()}, []ast.Type{ast.Str()}),
	"string.length":  sameRowEffect([]ast.Type{ast.Str()}, []ast.Type{ast.Int()}),
	"io.write-line":  sameRowEffect([]ast.Type{ast.Str()}, nil),
	"io.read-line":   sameRowEffect(nil, []ast.Type{ast.Str()}),

	"chan.make":          sameRowEffect(nil, []ast.Type{ast.Channel()}),
	"chan.send":          sameRowEffect([]ast.Type{ast.Channel(), tv(1)}, nil),
	"chan.receive":       sameRowEffect([]ast.Type{ast.Channel()}, []ast.Type{tv(1)}),
	"chan.receive-safe":  sameRowEffect([]ast.Type{ast.Channel()}, []ast.Type{tv(1), ast.Bool()}),
	"chan.close":         sameRowEffect([]ast.Type{ast.Channel()}, nil),

	"json.parse":  sameRowEffect([]ast.Type{ast.Str()}, []ast.Type{tv(1)}),
	"json.length": sameRowEffect([]ast.Type{tv(1)}, []ast.Type{ast.Int()}),
}
