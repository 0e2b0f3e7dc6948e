// Package codegen lowers a type-checked, elaborated Seq module to
// textual LLVM IR: one guaranteed-tailcc function per word (user-
// defined, quotation body, or union-synthesized), with "musttail call
// tailcc" emitted at every tail-position call site so recursive Seq
// programs run in bounded native stack space regardless of recursion
// depth.
//
// The emitter is a Writer-style recursive printer (a strings.Builder
// wrapped with small indentation/fresh-name helpers), the same shape
// the teacher's plan-to-text formatter uses for its tree-shaped IR:
// hand-built with fmt.Fprintf rather than text/template, because the
// output needs per-node control over SSA naming that a template
// can't express cleanly.
package codegen

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/seqlog"
	"github.com/seq-lang/seq/internal/unionelab"
)

var logger = seqlog.New("codegen")

// Emitter accumulates one module's worth of LLVM IR text. It is not
// safe for concurrent use; codegen is a single deterministic pass.
type Emitter struct {
	b         strings.Builder
	unions    *unionelab.Table
	tmp       int
	quotSeq   int
	strSeq    int
	quotNames map[*ast.Quot]string
	quotDefer []*ast.Quot // quotation bodies discovered mid-function, emitted after it
}

// Emit lowers every WordDef in items plus every union-synthesized word
// in unions to one LLVM IR module, returning its text.
func Emit(items []ast.Item, unions *unionelab.Table) string {
	e := &Emitter{unions: unions, quotNames: map[*ast.Quot]string{}}
	e.preamble()

	for _, item := range items {
		if wd, ok := item.(*ast.WordDef); ok {
			logger.Debug("emitting word", slog.String("word", wd.Name))
			e.emitWord(mangle(wd.Name), wd.Body)
		}
	}
	e.drainQuotations()

	for _, name := range sortedKeys(e.unions.Constructors) {
		e.emitConstructor(e.unions.Constructors[name])
	}
	for _, name := range sortedKeys(e.unions.Predicates) {
		e.emitPredicate(e.unions.Predicates[name])
	}
	for _, name := range sortedKeys(e.unions.Accessors) {
		e.emitAccessor(e.unions.Accessors[name])
	}

	logger.Debug("codegen complete", slog.Int("words", len(items)))
	return e.b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mangle turns a Seq word name (which may contain punctuation like
// "i.+" or "is-Some?") into a quoted LLVM global identifier. LLVM
// accepts arbitrary bytes inside a quoted @"..." identifier, so no
// escaping beyond doubling quotes/backslashes is required.
func mangle(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	return `@"seq$` + escaped + `"`
}

func (e *Emitter) fresh(prefix string) string {
	e.tmp++
	return fmt.Sprintf("%%%s.%d", prefix, e.tmp)
}

func (e *Emitter) preamble() {
	e.b.WriteString("; Generated by seqc. Do not edit by hand.\n\n")
	for _, decl := range runtimeDecls {
		e.b.WriteString(decl)
		e.b.WriteByte('\n')
	}
	for _, symbol := range sortedValues(builtinRuntimeFn) {
		e.b.WriteString(runtimeDeclFor(symbol))
		e.b.WriteByte('\n')
	}
	e.b.WriteByte('\n')
}

func sortedValues(m map[string]string) []string {
	vals := make([]string, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return vals
}

// runtimeDecls are the external symbols the runtime archive provides;
// every builtin word and combinator lowers to one of these.
var runtimeDecls = []string{
	"declare tailcc ptr @seq_push_int(ptr, i64)",
	"declare tailcc ptr @seq_push_float(ptr, double)",
	"declare tailcc ptr @seq_push_bool(ptr, i1)",
	"declare tailcc ptr @seq_push_string(ptr, ptr, i64)",
	"declare tailcc ptr @seq_push_symbol(ptr, ptr)",
	"declare { ptr, i1 } @seq_pop_bool(ptr)",
	"declare { ptr, i64, ptr } @seq_pop_variant(ptr)",
	"declare tailcc ptr @seq_variant_unpack(ptr, ptr, i64)",
	"declare tailcc ptr @seq_variant_make(ptr, i64, i64)",
	"declare tailcc ptr @seq_variant_is_tag(ptr, i64)",
	"declare tailcc ptr @seq_variant_field_at(ptr, i64, i64)",
	"declare { ptr, ptr, i64 } @seq_pop_quotation(ptr)",
	"declare tailcc ptr @seq_quot_make(ptr, ptr, i64)",
	"declare tailcc ptr @seq_call_closure(ptr, ptr)",
}

// builtinRuntimeFn maps every surface-language builtin word to the
// runtime symbol it lowers to directly (one call, no branching).
var builtinRuntimeFn = map[string]string{
	"dup": "seq_rt_dup", "drop": "seq_rt_drop", "swap": "seq_rt_swap",
	"over": "seq_rt_over", "rot": "seq_rt_rot", "nip": "seq_rt_nip",
	"tuck": "seq_rt_tuck", "pick": "seq_rt_pick", "roll": "seq_rt_roll",
	"2dup": "seq_rt_2dup", "3drop": "seq_rt_3drop",

	"i.+": "seq_rt_i_add", "i.-": "seq_rt_i_sub", "i.*": "seq_rt_i_mul",
	"i./": "seq_rt_i_div", "i.%": "seq_rt_i_mod",
	"i.<": "seq_rt_i_lt", "i.>": "seq_rt_i_gt", "i.=": "seq_rt_i_eq",

	"f.+": "seq_rt_f_add", "f.-": "seq_rt_f_sub", "f.*": "seq_rt_f_mul",
	"f./": "seq_rt_f_div", "f.<": "seq_rt_f_lt",

	"bool.not": "seq_rt_bool_not", "bool.and": "seq_rt_bool_and", "bool.or": "seq_rt_bool_or",

	"int->string": "seq_rt_int_to_string", "string->int": "seq_rt_string_to_int",
	"float->string": "seq_rt_float_to_string",
	"string.concat": "seq_rt_string_concat", "string.length": "seq_rt_string_length",
	"io.write-line": "seq_rt_io_write_line", "io.read-line": "seq_rt_io_read_line",

	"chan.make": "seq_rt_chan_make", "chan.send": "seq_rt_chan_send",
	"chan.receive": "seq_rt_chan_receive", "chan.receive-safe": "seq_rt_chan_receive_safe",
	"chan.close": "seq_rt_chan_close",

	"json.parse": "seq_rt_json_parse", "json.length": "seq_rt_json_length",
}

func runtimeDeclFor(symbol string) string {
	return fmt.Sprintf("declare tailcc ptr @%s(ptr)", symbol)
}

// emitWord lowers one function body (a user word or a synthesized
// quotation body) to a tailcc function named fnName, taking and
// returning the stack pointer.
func (e *Emitter) emitWord(fnName string, body []ast.Statement) {
	fmt.Fprintf(&e.b, "define tailcc ptr %s(ptr %%s0) {\n", fnName)
	cur := "%s0"
	terminated := false
	for i, stmt := range body {
		tail := i == len(body)-1
		var term bool
		cur, term = e.emitStmt(stmt, cur, tail)
		if term {
			terminated = true
			break
		}
	}
	if !terminated {
		fmt.Fprintf(&e.b, "  ret ptr %s\n", cur)
	}
	e.b.WriteString("}\n\n")
}

func (e *Emitter) drainQuotations() {
	for len(e.quotDefer) > 0 {
		q := e.quotDefer[0]
		e.quotDefer = e.quotDefer[1:]
		e.emitWord(e.quotNames[q], q.Body)
	}
}

// quotFnName assigns each quotation literal a sequential name the
// first time codegen encounters it (in source declaration order), and
// queues its body for emission once the enclosing function is done —
// this keeps naming deterministic across runs of the same input,
// unlike keying off the AST node's memory address.
func (e *Emitter) quotFnName(q *ast.Quot) string {
	if name, ok := e.quotNames[q]; ok {
		return name
	}
	e.quotSeq++
	name := fmt.Sprintf(`@"seq$quot$%d"`, e.quotSeq)
	e.quotNames[q] = name
	e.quotDefer = append(e.quotDefer, q)
	return name
}

// emitStmt lowers one statement given the SSA name holding the current
// stack pointer. It returns the SSA name holding the stack pointer
// after the statement (meaningless if terminated is true, since every
// control-flow path has already emitted its own "ret").
func (e *Emitter) emitStmt(stmt ast.Statement, cur string, tail bool) (next string, terminated bool) {
	switch s := stmt.(type) {
	case *ast.PushInt:
		return e.emitCall0("seq_push_int", []string{cur, fmt.Sprintf("i64 %d", s.Value)}, cur, tail)
	case *ast.PushFloat:
		return e.emitCall0("seq_push_float", []string{cur, fmt.Sprintf("double %s", formatFloat(s.Value))}, cur, tail)
	case *ast.PushBool:
		return e.emitCall0("seq_push_bool", []string{cur, fmt.Sprintf("i1 %t", s.Value)}, cur, tail)
	case *ast.PushString:
		global, length := e.emitStringConstant(s.Value)
		return e.emitCall0("seq_push_string", []string{cur, "ptr " + global, fmt.Sprintf("i64 %d", length)}, cur, tail)
	case *ast.PushSymbol:
		global, _ := e.emitStringConstant(s.Name)
		return e.emitCall0("seq_push_symbol", []string{cur, "ptr " + global}, cur, tail)
	case *ast.Quot:
		fn := e.quotFnName(s)
		return e.emitCall0("seq_quot_make", []string{cur, "ptr " + fn, "i64 0"}, cur, tail)
	case *ast.Call:
		return e.emitCallStmt(s, cur, tail)
	case *ast.If:
		return e.emitIf(s, cur, tail)
	case *ast.Match:
		return e.emitMatch(s, cur, tail)
	default:
		panic(fmt.Sprintf("codegen: unsupported statement %T", stmt))
	}
}

// emitCall0 emits a call to a single-stack-pointer-returning runtime
// function, as a musttail+ret if tail, or an ordinary call otherwise.
func (e *Emitter) emitCall0(fn string, args []string, _ string, tail bool) (string, bool) {
	argList := strings.Join(args, ", ")
	if tail {
		dst := e.fresh("s")
		fmt.Fprintf(&e.b, "  %s = musttail call tailcc ptr @%s(%s)\n", dst, fn, argList)
		fmt.Fprintf(&e.b, "  ret ptr %s\n", dst)
		return dst, true
	}
	dst := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = call tailcc ptr @%s(%s)\n", dst, fn, argList)
	return dst, false
}

func (e *Emitter) emitStringConstant(v string) (global string, length int) {
	e.strSeq++
	name := fmt.Sprintf(`@.str.%d`, e.strSeq)
	bytes := []byte(v)
	fmt.Fprintf(&e.b, "%s = private unnamed_addr constant [%d x i8] c\"%s\"\n", name, len(bytes), escapeLLVMString(bytes))
	return name, len(bytes)
}

func escapeLLVMString(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\%02X", c)
		}
	}
	return sb.String()
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

// emitCallStmt lowers a WordCall: the builtin table, the special
// "call" closure-invocation form, or an ordinary user-word call.
func (e *Emitter) emitCallStmt(call *ast.Call, cur string, tail bool) (string, bool) {
	if call.Name == "call" {
		return e.emitClosureCall(cur, tail)
	}
	if symbol, ok := builtinRuntimeFn[call.Name]; ok {
		return e.emitCall0(symbol, []string{cur}, cur, tail)
	}
	fn := mangle(call.Name)
	if tail {
		dst := e.fresh("s")
		fmt.Fprintf(&e.b, "  %s = musttail call tailcc ptr %s(ptr %s)\n", dst, fn, cur)
		fmt.Fprintf(&e.b, "  ret ptr %s\n", dst)
		return dst, true
	}
	dst := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = call tailcc ptr %s(ptr %s)\n", dst, fn, cur)
	return dst, false
}

// emitClosureCall lowers the "call" combinator: pop a quotation cell,
// branch on whether its captured environment is empty. An empty
// environment dispatches directly to the code pointer (a musttail
// through an indirect tailcc call); a non-empty one goes through the
// seq_call_closure trampoline, which restores the captured cells onto
// the stack before jumping. This grammar's quotation literals never
// produce a non-empty environment themselves (there is no partial-
// application/"curry" combinator in the surface syntax to populate
// one) — the branch exists because the dispatch must hold generally
// for closures an FFI extension constructs directly against the
// runtime ABI.
func (e *Emitter) emitClosureCall(cur string, tail bool) (string, bool) {
	agg := e.fresh("q")
	fmt.Fprintf(&e.b, "  %s = call { ptr, ptr, i64 } @seq_pop_quotation(ptr %s)\n", agg, cur)
	stackAfterPop := e.fresh("qs")
	fnptr := e.fresh("qfn")
	envlen := e.fresh("qenv")
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, ptr, i64 } %s, 0\n", stackAfterPop, agg)
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, ptr, i64 } %s, 1\n", fnptr, agg)
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, ptr, i64 } %s, 2\n", envlen, agg)

	isEmpty := e.fresh("qempty")
	fmt.Fprintf(&e.b, "  %s = icmp eq i64 %s, 0\n", isEmpty, envlen)

	directLbl, trampLbl := e.fresh("direct")[1:], e.fresh("tramp")[1:]
	fmt.Fprintf(&e.b, "  br i1 %s, label %%%s, label %%%s\n", isEmpty, directLbl, trampLbl)

	fmt.Fprintf(&e.b, "%s:\n", directLbl)
	direct, _ := e.emitIndirectTailcc(fnptr, stackAfterPop, tail)
	if tail {
		fmt.Fprintf(&e.b, "  ret ptr %s\n", direct)
	}
	directEnd := e.fresh("j")[1:]
	if !tail {
		fmt.Fprintf(&e.b, "  br label %%%s\n", directEnd)
	}

	fmt.Fprintf(&e.b, "%s:\n", trampLbl)
	tramp := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = call tailcc ptr @seq_call_closure(ptr %s, ptr %s)\n", tramp, stackAfterPop, fnptr)
	if tail {
		fmt.Fprintf(&e.b, "  ret ptr %s\n", tramp)
		return "", true
	}
	fmt.Fprintf(&e.b, "  br label %%%s\n", directEnd)

	fmt.Fprintf(&e.b, "%s:\n", directEnd)
	merged := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = phi ptr [ %s, %%%s ], [ %s, %%%s ]\n", merged, direct, directLbl, tramp, trampLbl)
	return merged, false
}

func (e *Emitter) emitIndirectTailcc(fnptr, stackArg string, tail bool) (string, bool) {
	if tail {
		dst := e.fresh("s")
		fmt.Fprintf(&e.b, "  %s = musttail call tailcc ptr %s(ptr %s)\n", dst, fnptr, stackArg)
		return dst, true
	}
	dst := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = call tailcc ptr %s(ptr %s)\n", dst, fnptr, stackArg)
	return dst, false
}

// emitIf lowers "cond if then else then" (cond already on the
// stack). In tail position both branches end with their own "ret";
// otherwise they converge on a phi so statements after the if can
// continue from a single SSA value.
func (e *Emitter) emitIf(s *ast.If, cur string, tail bool) (string, bool) {
	agg := e.fresh("c")
	fmt.Fprintf(&e.b, "  %s = call { ptr, i1 } @seq_pop_bool(ptr %s)\n", agg, cur)
	afterPop := e.fresh("cs")
	cond := e.fresh("cv")
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, i1 } %s, 0\n", afterPop, agg)
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, i1 } %s, 1\n", cond, agg)

	thenLbl, elseLbl := e.fresh("then")[1:], e.fresh("else")[1:]
	fmt.Fprintf(&e.b, "  br i1 %s, label %%%s, label %%%s\n", cond, thenLbl, elseLbl)

	joinLbl := e.fresh("endif")[1:]

	fmt.Fprintf(&e.b, "%s:\n", thenLbl)
	thenVal, thenTerm := e.emitBranchBody(s.Then, afterPop, tail)
	if !tail && !thenTerm {
		fmt.Fprintf(&e.b, "  br label %%%s\n", joinLbl)
	}

	fmt.Fprintf(&e.b, "%s:\n", elseLbl)
	elseVal, elseTerm := e.emitBranchBody(s.Else, afterPop, tail)

	if tail {
		return "", true
	}

	if !elseTerm {
		fmt.Fprintf(&e.b, "  br label %%%s\n", joinLbl)
	}
	fmt.Fprintf(&e.b, "%s:\n", joinLbl)
	merged := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = phi ptr [ %s, %%%s ], [ %s, %%%s ]\n", merged, thenVal, thenLbl, elseVal, elseLbl)
	return merged, false
}

// emitBranchBody emits one if/match branch's statements starting from
// entryPtr, returning the SSA value holding the stack pointer on fall-
// through (and whether the branch already terminated via ret, which
// happens whenever tail is true or a nested tail branch returned).
func (e *Emitter) emitBranchBody(body []ast.Statement, entryPtr string, tail bool) (string, bool) {
	cur := entryPtr
	for i, stmt := range body {
		isLast := i == len(body)-1
		var term bool
		cur, term = e.emitStmt(stmt, cur, tail && isLast)
		if term {
			return cur, true
		}
	}
	if tail {
		fmt.Fprintf(&e.b, "  ret ptr %s\n", cur)
		return cur, true
	}
	return cur, false
}

// emitMatch lowers "scrutinee match arm+ default? end". Each arm
// unpacks its variant's fields (deep-cloned from the payload, per the
// "compute payloads first" protocol) onto the stack before running its
// body.
func (e *Emitter) emitMatch(m *ast.Match, cur string, tail bool) (string, bool) {
	agg := e.fresh("m")
	fmt.Fprintf(&e.b, "  %s = call { ptr, i64, ptr } @seq_pop_variant(ptr %s)\n", agg, cur)
	afterPop := e.fresh("ms")
	tag := e.fresh("mt")
	payload := e.fresh("mp")
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, i64, ptr } %s, 0\n", afterPop, agg)
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, i64, ptr } %s, 1\n", tag, agg)
	fmt.Fprintf(&e.b, "  %s = extractvalue { ptr, i64, ptr } %s, 2\n", payload, agg)

	defaultLbl := e.fresh("default")[1:]
	type armLabel struct {
		tagIdx int
		label  string
		arm    *ast.MatchArm
	}
	var arms []armLabel
	for i := range m.Arms {
		tagIdx := i
		for _, info := range e.unions.Unions {
			if idx, ok := info.VariantIndex[m.Arms[i].Tag]; ok {
				tagIdx = idx
			}
		}
		arms = append(arms, armLabel{tagIdx: tagIdx, label: e.fresh("arm")[1:], arm: &m.Arms[i]})
	}

	e.b.WriteString("  switch i64 " + tag + ", label %" + defaultLbl + " [\n")
	for _, a := range arms {
		fmt.Fprintf(&e.b, "    i64 %d, label %%%s\n", a.tagIdx, a.label)
	}
	e.b.WriteString("  ]\n")

	joinLbl := e.fresh("endmatch")[1:]
	var vals, labels []string
	var terms []bool

	for _, a := range arms {
		fmt.Fprintf(&e.b, "%s:\n", a.label)
		unpacked := e.fresh("s")
		fmt.Fprintf(&e.b, "  %s = call tailcc ptr @seq_variant_unpack(ptr %s, ptr %s, i64 %d)\n",
			unpacked, afterPop, payload, len(a.arm.Fields))
		v, term := e.emitBranchBody(a.arm.Body, unpacked, tail)
		vals, labels, terms = append(vals, v), append(labels, a.label), append(terms, term)
		if !tail && !term {
			fmt.Fprintf(&e.b, "  br label %%%s\n", joinLbl)
		}
	}

	fmt.Fprintf(&e.b, "%s:\n", defaultLbl)
	defVal, defTerm := e.emitBranchBody(m.Default, afterPop, tail)
	vals, labels, terms = append(vals, defVal), append(labels, defaultLbl), append(terms, defTerm)
	if !tail && !defTerm {
		fmt.Fprintf(&e.b, "  br label %%%s\n", joinLbl)
	}

	if tail {
		return "", true
	}

	fmt.Fprintf(&e.b, "%s:\n", joinLbl)
	merged := e.fresh("s")
	e.b.WriteString("  " + merged + " = phi ptr ")
	var incoming []string
	for i, v := range vals {
		if terms[i] {
			continue
		}
		incoming = append(incoming, fmt.Sprintf("[ %s, %%%s ]", v, labels[i]))
	}
	e.b.WriteString(strings.Join(incoming, ", "))
	e.b.WriteByte('\n')
	return merged, false
}

// emitConstructor lowers a synthesized "Make-<Tag>" word: pop N field
// cells (already typechecked, so their order is fixed), construct and
// push the tagged variant atomically in one runtime call, per the
// "compute payloads first, then pop, then push atomically" protocol.
func (e *Emitter) emitConstructor(c *unionelab.Constructor) {
	fmt.Fprintf(&e.b, "define tailcc ptr %s(ptr %%s0) {\n", mangle(c.WordName))
	dst := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = musttail call tailcc ptr @seq_variant_make(ptr %%s0, i64 %d, i64 %d)\n", dst, c.TagIndex, len(c.Fields))
	fmt.Fprintf(&e.b, "  ret ptr %s\n}\n\n", dst)
}

// emitPredicate lowers a synthesized "is-<Tag>?" word.
func (e *Emitter) emitPredicate(p *unionelab.Predicate) {
	fmt.Fprintf(&e.b, "define tailcc ptr %s(ptr %%s0) {\n", mangle(p.WordName))
	dst := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = musttail call tailcc ptr @seq_variant_is_tag(ptr %%s0, i64 %d)\n", dst, p.TagIndex)
	fmt.Fprintf(&e.b, "  ret ptr %s\n}\n\n", dst)
}

// emitAccessor lowers a synthesized "<Tag>-<field>" word. A runtime
// tag mismatch aborts the process (spec tier-3 fatal error); codegen
// itself never branches on the tag here, since the type checker has
// already proven the nominal type and the accessor's own job is only
// to check the *variant* tag at the runtime boundary.
func (e *Emitter) emitAccessor(a *unionelab.Accessor) {
	fmt.Fprintf(&e.b, "define tailcc ptr %s(ptr %%s0) {\n", mangle(a.WordName))
	dst := e.fresh("s")
	fmt.Fprintf(&e.b, "  %s = musttail call tailcc ptr @seq_variant_field_at(ptr %%s0, i64 %d, i64 %d)\n", dst, a.TagIndex, a.FieldIndex)
	fmt.Fprintf(&e.b, "  ret ptr %s\n}\n\n", dst)
}
