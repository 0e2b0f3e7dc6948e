// Package parser implements Seq's recursive-descent parser: tokens in,
// an *ast.Module plus a diagnostics.Bag of accumulated ParseErrors out.
//
// Errors are accumulated rather than raised immediately, so one pass
// surfaces every parse problem in a file instead of just the first.
package parser

import (
	"log/slog"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/diagnostics"
	"github.com/seq-lang/seq/internal/lexer"
	"github.com/seq-lang/seq/internal/seqlog"
	"github.com/seq-lang/seq/internal/token"
)

var logger = seqlog.New("parser")

// Parser holds the token stream and accumulated diagnostics for one
// module file.
type Parser struct {
	path   string
	toks   []token.Token
	pos    int
	bag    diagnostics.Bag
	nextRowVarID int
}

// Parse tokenizes and parses a single source file. Lexer errors become
// diagnostics.Error entries in the returned bag exactly like parse
// errors; the caller should check bag.HasErrors() before trusting mod.
func Parse(path, src string) (*ast.Module, *diagnostics.Bag) {
	toks, lexErr := lexer.Tokenize(src)
	p := &Parser{path: path, toks: toks}
	if lexErr != nil {
		if le, ok := lexErr.(*lexer.Error); ok {
			p.bag.Add(&diagnostics.Error{
				Kind:    lexKindToDiagKind(le.Kind),
				Message: le.Error(),
				Span:    token.Position{Line: le.Line, Column: le.Col},
			})
		} else {
			p.bag.Addf(diagnostics.UnknownChar, token.Position{}, "%v", lexErr)
		}
		// toks still contains everything scanned before the failure; make
		// sure it's EOF-terminated so the recursive descent can't run off
		// the end.
		if len(p.toks) == 0 || p.toks[len(p.toks)-1].Kind != token.EOF {
			p.toks = append(p.toks, token.Token{Kind: token.EOF})
		}
	}

	mod := &ast.Module{Path: path}
	for !p.at(token.EOF) {
		before := p.pos
		item := p.parseItem()
		if item != nil {
			mod.Items = append(mod.Items, item)
		}
		if p.pos == before {
			// Safety valve: parseItem must always make progress.
			p.errorf(diagnostics.ExpectedToken, p.cur().Start, "unexpected token %s", p.cur().Kind)
			p.advance()
		}
	}
	logger.Debug("parse complete", slog.String("path", path), slog.Int("items", len(mod.Items)), slog.Int("errors", len(p.bag.Errors())))
	return mod, &p.bag
}

func lexKindToDiagKind(k lexer.ErrorKind) diagnostics.Kind {
	switch k {
	case lexer.UnknownChar:
		return diagnostics.UnknownChar
	case lexer.UnterminatedString:
		return diagnostics.UnterminatedString
	case lexer.InvalidEscape:
		return diagnostics.InvalidEscape
	case lexer.InvalidNumeric:
		return diagnostics.InvalidNumeric
	default:
		return diagnostics.UnknownChar
	}
}

// ---- token-stream helpers ----

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 || t.Kind != token.EOF {
		if p.pos < len(p.toks) {
			p.pos++
		}
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.errorf(diagnostics.ExpectedToken, p.cur().Start, "expected %s, got %s %q", k, p.cur().Kind, p.cur().Value)
	return token.Token{}, false
}

func (p *Parser) errorf(kind diagnostics.Kind, pos token.Position, format string, args ...interface{}) {
	p.bag.Addf(kind, pos, format, args...)
}

// ---- top-level items ----

func (p *Parser) parseItem() ast.Item {
	switch p.cur().Kind {
	case token.INCLUDE:
		return p.parseInclude()
	case token.UNION:
		return p.parseUnion()
	case token.COLON:
		return p.parseWordDef()
	case token.EOF:
		return nil
	default:
		p.errorf(diagnostics.ExpectedToken, p.cur().Start,
			"expected 'include', 'union', or a word definition, got %s %q", p.cur().Kind, p.cur().Value)
		return nil
	}
}

// parseInclude parses `include "<module-ref>"`. Module references are
// written as string literals (rather than bare std:name tokens) so the
// lexer never has to disambiguate a module path like "std:json" from a
// symbol literal like ":json".
func (p *Parser) parseInclude() ast.Item {
	start := p.advance().Start // 'include'
	tok, ok := p.expect(token.STRING)
	if !ok {
		return &ast.Include{Position: start}
	}
	return &ast.Include{Ref: tok.Value, Position: start}
}

func (p *Parser) parseUnion() ast.Item {
	start := p.advance().Start // 'union'
	nameTok, ok := p.expect(token.IDENT)
	name := nameTok.Value
	if !ok {
		name = "<error>"
	}
	if _, ok := p.expect(token.LBRACE); !ok {
		return &ast.UnionDecl{Name: name, Position: start}
	}

	var variants []ast.Variant
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		variants = append(variants, p.parseVariant())
		if p.at(token.PIPE) {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return &ast.UnionDecl{Name: name, Variants: variants, Position: start}
}

func (p *Parser) parseVariant() ast.Variant {
	tagTok, _ := p.expect(token.IDENT)
	v := ast.Variant{Tag: tagTok.Value}
	if !p.at(token.LBRACE) {
		return v
	}
	p.advance()
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		fieldName, _ := p.expect(token.IDENT)
		p.expect(token.COLON)
		typ := p.parseType()
		v.Fields = append(v.Fields, ast.Field{Name: fieldName.Value, Type: typ})
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBRACE)
	return v
}

func (p *Parser) parseWordDef() ast.Item {
	start := p.advance().Start // ':'
	nameTok, _ := p.expect(token.IDENT)

	var effect *ast.Effect
	if p.at(token.LPAREN) {
		effect = p.parseEffect()
	}

	body := p.parseStmtsUntil(token.SEMI)
	p.expect(token.SEMI)

	return &ast.WordDef{Name: nameTok.Value, DeclaredEffect: effect, Body: body, Position: start}
}

// ---- effects & types ----

// parseEffect parses "( types -- types )". Within one signature, two
// occurrences of the same lowercase identifier must denote the same
// type variable; uppercase-initial names denote nominal types (builtins
// or union names, resolved by the checker).
func (p *Parser) parseEffect() *ast.Effect {
	p.expect(token.LPAREN)
	vars := map[string]int{}
	inputs := p.parseTypeList(vars)
	p.expect(token.DASHDASH)
	outputs := p.parseTypeList(vars)
	p.expect(token.RPAREN)

	row := ast.RowVar{ID: p.freshRowVarID()}
	return &ast.Effect{Inputs: inputs, Outputs: outputs, RowIn: row, RowOut: row}
}

func (p *Parser) freshRowVarID() int {
	p.nextRowVarID++
	return p.nextRowVarID
}

func (p *Parser) parseTypeList(vars map[string]int) []ast.Type {
	var types []ast.Type
	for p.at(token.IDENT) || p.at(token.LBRACKET) {
		types = append(types, p.parseTypeNamed(vars))
	}
	return types
}

func (p *Parser) parseType() ast.Type {
	return p.parseTypeNamed(map[string]int{})
}

func (p *Parser) parseTypeNamed(vars map[string]int) ast.Type {
	if p.at(token.LBRACKET) {
		p.advance()
		inputs := p.parseTypeList(vars)
		p.expect(token.DASHDASH)
		outputs := p.parseTypeList(vars)
		p.expect(token.RBRACKET)
		row := ast.RowVar{ID: p.freshRowVarID()}
		return ast.Quotation(&ast.Effect{Inputs: inputs, Outputs: outputs, RowIn: row, RowOut: row})
	}
	tok, _ := p.expect(token.IDENT)
	return nameToType(tok.Value, vars)
}

func nameToType(name string, vars map[string]int) ast.Type {
	switch name {
	case "Int":
		return ast.Int()
	case "Float":
		return ast.Float()
	case "String":
		return ast.Str()
	case "Bool":
		return ast.Bool()
	case "Symbol":
		return ast.Symbol()
	case "Channel":
		return ast.Channel()
	}
	if len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z' {
		return ast.Union(name)
	}
	id, ok := vars[name]
	if !ok {
		id = len(vars) + 1
		vars[name] = id
	}
	return ast.Var(id)
}

// ---- statements ----

func (p *Parser) parseStmtsUntil(terminators ...token.Kind) []ast.Statement {
	var stmts []ast.Statement
	for !p.atAny(terminators...) && !p.at(token.EOF) {
		before := p.pos
		stmts = append(stmts, p.parseStatement())
		if p.pos == before {
			p.errorf(diagnostics.ExpectedToken, p.cur().Start, "unexpected token %s in word body", p.cur().Kind)
			p.advance()
		}
	}
	return stmts
}

func (p *Parser) atAny(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.at(k) {
			return true
		}
	}
	return false
}

func (p *Parser) parseStatement() ast.Statement {
	var suppressed []string
	for p.at(token.AT_ALLOW) {
		suppressed = append(suppressed, p.advance().Value)
	}

	stmt := p.parseAtomOrCombinator()
	if stmt == nil {
		return nil
	}
	if call, ok := stmt.(*ast.Call); ok {
		call.SuppressedLints = suppressed
	}
	return stmt
}

func (p *Parser) parseAtomOrCombinator() ast.Statement {
	tok := p.cur()
	switch tok.Kind {
	case token.INT:
		p.advance()
		return &ast.PushInt{baseStmt: ast.NewPos(tok.Start), Value: parseIntLiteral(tok.Value)}
	case token.FLOAT:
		p.advance()
		return &ast.PushFloat{baseStmt: ast.NewPos(tok.Start), Value: parseFloatLiteral(tok.Value)}
	case token.STRING:
		p.advance()
		return &ast.PushString{baseStmt: ast.NewPos(tok.Start), Value: tok.Value}
	case token.SYMBOL:
		p.advance()
		return &ast.PushSymbol{baseStmt: ast.NewPos(tok.Start), Name: tok.Value}
	case token.TRUE:
		p.advance()
		return &ast.PushBool{baseStmt: ast.NewPos(tok.Start), Value: true}
	case token.FALSE:
		p.advance()
		return &ast.PushBool{baseStmt: ast.NewPos(tok.Start), Value: false}
	case token.LBRACKET:
		return p.parseQuotation()
	case token.IF:
		return p.parseIf()
	case token.MATCH:
		return p.parseMatch()
	case token.IDENT:
		p.advance()
		return &ast.Call{baseStmt: ast.NewPos(tok.Start), Name: tok.Value}
	default:
		return nil
	}
}

func (p *Parser) parseQuotation() ast.Statement {
	start := p.advance().Start // '['
	body := p.parseStmtsUntil(token.RBRACKET)
	p.expect(token.RBRACKET)
	return &ast.Quot{baseStmt: ast.NewPos(start), Body: body}
}

func (p *Parser) parseIf() ast.Statement {
	start := p.advance().Start // 'if'
	thenBody := p.parseStmtsUntil(token.ELSE, token.THEN)
	var elseBody []ast.Statement
	if p.at(token.ELSE) {
		p.advance()
		elseBody = p.parseStmtsUntil(token.THEN)
	}
	p.expect(token.THEN)
	return &ast.If{baseStmt: ast.NewPos(start), Then: thenBody, Else: elseBody}
}

func (p *Parser) parseMatch() ast.Statement {
	start := p.advance().Start // 'match'
	m := &ast.Match{baseStmt: ast.NewPos(start)}

	for p.looksLikeArmStart() {
		m.Arms = append(m.Arms, p.parseMatchArm())
	}
	if p.at(token.DEFAULT) {
		p.advance()
		if p.at(token.ARROW) {
			p.advance()
		}
		m.Default = p.parseArmBody()
	}
	p.expect(token.END)
	return m
}

// looksLikeArmStart performs bounded lookahead to distinguish a new
// "Tag { fields } ->" arm header from an ordinary call statement: both
// begin with an IDENT, but only an arm header is followed (after an
// optional flat field-pattern brace group) by an ARROW. "->" never
// appears as an ordinary word in Seq source — the lexer reserves it
// exclusively for this separator — so this lookahead is unambiguous.
func (p *Parser) looksLikeArmStart() bool {
	if !p.at(token.IDENT) {
		return false
	}
	idx := p.pos + 1
	if p.tokAt(idx).Kind == token.LBRACE {
		idx++
		for p.tokAt(idx).Kind != token.RBRACE && p.tokAt(idx).Kind != token.EOF {
			idx++
		}
		if p.tokAt(idx).Kind == token.RBRACE {
			idx++
		}
	}
	return p.tokAt(idx).Kind == token.ARROW
}

func (p *Parser) tokAt(i int) token.Token {
	if i < 0 || i >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[i]
}

// parseArmBody parses statements until the next arm header, 'default',
// or 'end'.
func (p *Parser) parseArmBody() []ast.Statement {
	var stmts []ast.Statement
	for !p.looksLikeArmStart() && !p.at(token.DEFAULT) && !p.at(token.END) && !p.at(token.EOF) {
		before := p.pos
		stmts = append(stmts, p.parseStatement())
		if p.pos == before {
			p.errorf(diagnostics.ExpectedToken, p.cur().Start, "unexpected token %s in match arm body", p.cur().Kind)
			p.advance()
		}
	}
	return stmts
}

func (p *Parser) parseMatchArm() ast.MatchArm {
	tagTok, _ := p.expect(token.IDENT)
	arm := ast.MatchArm{Tag: tagTok.Value}

	if p.at(token.LBRACE) {
		p.advance()
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			fieldTok, _ := p.expect(token.IDENT)
			arm.Fields = append(arm.Fields, fieldTok.Value)
			if p.at(token.COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RBRACE)
	}

	p.expect(token.ARROW)
	arm.Body = p.parseArmBody()
	return arm
}

func parseIntLiteral(s string) int64 {
	var base int
	var digits string
	switch {
	case len(s) > 2 && (s[1] == 'x' || s[1] == 'X'):
		base, digits = 16, s[2:]
	case len(s) > 2 && (s[1] == 'b' || s[1] == 'B'):
		base, digits = 2, s[2:]
	default:
		base, digits = 10, s
	}
	var v int64
	for _, c := range digits {
		v *= int64(base)
		v += int64(hexDigitValue(byte(c)))
	}
	return v
}

func hexDigitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return 0
	}
}

func parseFloatLiteral(s string) float64 {
	var whole, frac int64
	var fracDigits int
	i := 0
	for ; i < len(s) && s[i] != '.'; i++ {
		whole = whole*10 + int64(s[i]-'0')
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s); i++ {
			frac = frac*10 + int64(s[i]-'0')
			fracDigits++
		}
	}
	result := float64(whole)
	if fracDigits > 0 {
		div := 1.0
		for j := 0; j < fracDigits; j++ {
			div *= 10
		}
		result += float64(frac) / div
	}
	return result
}
