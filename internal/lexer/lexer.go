// Package lexer tokenizes Seq source text.
//
// The scanning approach — ASCII classification lookup tables built once in
// init(), a rune-at-a-time readChar with explicit line/column tracking —
// is adapted down from a three-mode shell-aware scanner to the
// single-mode scanner Seq's grammar needs (no embedded shell text, no
// string interpolation).
package lexer

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/seq-lang/seq/internal/seqlog"
	"github.com/seq-lang/seq/internal/token"
)

var logger = seqlog.New("lexer")

var (
	isWhitespace [128]bool
	isDigit      [128]bool
	isIdentStart [128]bool
	isIdentPart  [128]bool
	isHexDigit   [128]bool
)

func init() {
	const identSymbols = "-.?!><=+*/%"
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isWhitespace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
		isDigit[i] = ch >= '0' && ch <= '9'
		letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
		isIdentStart[i] = letter || strings.IndexByte(identSymbols, ch) >= 0
		isIdentPart[i] = isIdentStart[i] || isDigit[i]
		isHexDigit[i] = isDigit[i] || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
	}
}

// Lexer scans Seq source text into a token stream.
type Lexer struct {
	input    string
	pos      int // byte offset of ch
	readPos  int // byte offset of next rune
	ch       rune
	line     int
	col      int
}

// New creates a Lexer over the given source text.
func New(src string) *Lexer {
	l := &Lexer{input: src, line: 1, col: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	l.pos = l.readPos
	if l.readPos >= len(l.input) {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if r == utf8.RuneError && size == 1 {
		r = rune(l.input[l.readPos])
	}
	l.ch = r
	l.readPos += size

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) position() token.Position {
	return token.Position{Line: l.line, Column: max1(l.col), Offset: l.pos}
}

func max1(c int) int {
	if c < 1 {
		return 1
	}
	return c
}

func asciiByte(r rune) (byte, bool) {
	if r >= 0 && r < 128 {
		return byte(r), true
	}
	return 0, false
}

// Next scans and returns the next token, or a lexer Error.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespaceAndComments()

	start := l.position()

	if l.ch == 0 {
		return token.Token{Kind: token.EOF, Start: start, End: start}, nil
	}

	b, ascii := asciiByte(l.ch)

	switch {
	case ascii && isDigit[b]:
		return l.lexNumber(start)
	case l.ch == '"':
		return l.lexString(start)
	case l.ch == ':':
		return l.lexColonOrSymbol(start)
	case l.ch == '@':
		return l.lexAllow(start)
	case ascii && isIdentStart[b]:
		return l.lexIdentOrPunct(start)
	}

	switch l.ch {
	case '[':
		return l.single(token.LBRACKET, start)
	case ']':
		return l.single(token.RBRACKET, start)
	case '{':
		return l.single(token.LBRACE, start)
	case '}':
		return l.single(token.RBRACE, start)
	case '(':
		return l.single(token.LPAREN, start)
	case ')':
		return l.single(token.RPAREN, start)
	case ';':
		return l.single(token.SEMI, start)
	case ',':
		return l.single(token.COMMA, start)
	case '|':
		return l.single(token.PIPE, start)
	}

	raw := string(l.ch)
	l.readChar()
	return token.Token{}, &Error{Kind: UnknownChar, Line: start.Line, Col: start.Column, Detail: raw}
}

func (l *Lexer) single(k token.Kind, start token.Position) (token.Token, error) {
	raw := string(l.ch)
	l.readChar()
	return token.Token{Kind: k, Value: raw, Raw: raw, Start: start, End: l.position()}, nil
}

// skipWhitespaceAndComments skips whitespace and '#'-to-end-of-line
// comments uniformly, including between tokens inside a stack-effect
// group: '#' always starts a comment wherever it begins a lexeme.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		if b, ok := asciiByte(l.ch); ok && isWhitespace[b] {
			l.readChar()
			continue
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

func (l *Lexer) lexIdentOrPunct(start token.Position) (token.Token, error) {
	begin := l.pos
	for {
		b, ok := asciiByte(l.ch)
		if !ok || !isIdentPart[b] {
			break
		}
		l.readChar()
	}
	text := l.input[begin:l.pos]
	end := l.position()

	switch text {
	case "--":
		return token.Token{Kind: token.DASHDASH, Value: text, Raw: text, Start: start, End: end}, nil
	case "->":
		return token.Token{Kind: token.ARROW, Value: text, Raw: text, Start: start, End: end}, nil
	}

	kind := token.Lookup(text)
	return token.Token{Kind: kind, Value: text, Raw: text, Start: start, End: end}, nil
}

func (l *Lexer) lexColonOrSymbol(start token.Position) (token.Token, error) {
	l.readChar() // consume ':'
	b, ok := asciiByte(l.ch)
	if !ok || !isIdentStart[b] {
		return token.Token{Kind: token.COLON, Value: ":", Raw: ":", Start: start, End: l.position()}, nil
	}

	begin := l.pos
	for {
		bb, ok := asciiByte(l.ch)
		if !ok || !isIdentPart[bb] {
			break
		}
		l.readChar()
	}
	name := l.input[begin:l.pos]
	end := l.position()
	return token.Token{Kind: token.SYMBOL, Value: name, Raw: ":" + name, Start: start, End: end}, nil
}

func (l *Lexer) lexAllow(start token.Position) (token.Token, error) {
	begin := l.pos
	l.readChar() // consume '@'
	const lit = "allow"
	for i := 0; i < len(lit); i++ {
		if l.ch != rune(lit[i]) {
			return token.Token{}, &Error{Kind: UnknownChar, Line: start.Line, Col: start.Column, Detail: "expected '@allow:<id>'"}
		}
		l.readChar()
	}
	if l.ch != ':' {
		return token.Token{}, &Error{Kind: UnknownChar, Line: start.Line, Col: start.Column, Detail: "expected ':' after '@allow'"}
	}
	l.readChar()

	idStart := l.pos
	for {
		b, ok := asciiByte(l.ch)
		if !ok || !isIdentPart[b] {
			break
		}
		l.readChar()
	}
	if l.pos == idStart {
		return token.Token{}, &Error{Kind: UnknownChar, Line: start.Line, Col: start.Column, Detail: "expected lint id after '@allow:'"}
	}
	id := l.input[idStart:l.pos]
	raw := l.input[begin:l.pos]
	return token.Token{Kind: token.AT_ALLOW, Value: id, Raw: raw, Start: start, End: l.position()}, nil
}

func (l *Lexer) lexNumber(start token.Position) (token.Token, error) {
	begin := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		digitsStart := l.pos
		for {
			b, ok := asciiByte(l.ch)
			if !ok || !isHexDigit[b] {
				break
			}
			l.readChar()
		}
		if l.pos == digitsStart {
			return token.Token{}, &Error{Kind: InvalidNumeric, Line: start.Line, Col: start.Column, Detail: "hex literal has no digits"}
		}
		if err := l.rejectTrailingIdent(start); err != nil {
			return token.Token{}, err
		}
		text := l.input[begin:l.pos]
		return token.Token{Kind: token.INT, Value: text, Raw: text, Start: start, End: l.position()}, nil
	}

	if l.ch == '0' && (l.peekChar() == 'b' || l.peekChar() == 'B') {
		l.readChar()
		l.readChar()
		digitsStart := l.pos
		for l.ch == '0' || l.ch == '1' {
			l.readChar()
		}
		if l.pos == digitsStart {
			return token.Token{}, &Error{Kind: InvalidNumeric, Line: start.Line, Col: start.Column, Detail: "binary literal has no digits"}
		}
		if err := l.rejectTrailingIdent(start); err != nil {
			return token.Token{}, err
		}
		text := l.input[begin:l.pos]
		return token.Token{Kind: token.INT, Value: text, Raw: text, Start: start, End: l.position()}, nil
	}

	for {
		b, ok := asciiByte(l.ch)
		if !ok || !isDigit[b] {
			break
		}
		l.readChar()
	}

	isFloat := false
	if l.ch == '.' {
		if pb := l.peekChar(); pb >= '0' && pb <= '9' {
			isFloat = true
			l.readChar() // consume '.'
			for {
				b, ok := asciiByte(l.ch)
				if !ok || !isDigit[b] {
					break
				}
				l.readChar()
			}
		}
	}

	if err := l.rejectTrailingIdent(start); err != nil {
		return token.Token{}, err
	}

	text := l.input[begin:l.pos]
	kind := token.INT
	if isFloat {
		kind = token.FLOAT
	}
	return token.Token{Kind: kind, Value: text, Raw: text, Start: start, End: l.position()}, nil
}

// rejectTrailingIdent catches malformed numerics like "7abc" where an
// identifier character immediately follows digits.
func (l *Lexer) rejectTrailingIdent(start token.Position) error {
	if b, ok := asciiByte(l.ch); ok && isIdentStart[b] {
		return &Error{Kind: InvalidNumeric, Line: start.Line, Col: start.Column, Detail: "numeric literal followed directly by identifier characters"}
	}
	return nil
}

func (l *Lexer) lexString(start token.Position) (token.Token, error) {
	l.readChar() // consume opening quote
	rawBegin := l.pos - 1

	var sb strings.Builder
	for {
		if l.ch == 0 {
			return token.Token{}, &Error{Kind: UnterminatedString, Line: start.Line, Col: start.Column}
		}
		if l.ch == '"' {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
				l.readChar()
			case 't':
				sb.WriteByte('\t')
				l.readChar()
			case 'r':
				sb.WriteByte('\r')
				l.readChar()
			case '\\':
				sb.WriteByte('\\')
				l.readChar()
			case '"':
				sb.WriteByte('"')
				l.readChar()
			case 'x':
				l.readChar()
				hi, ok1 := hexVal(l.ch)
				if !ok1 {
					return token.Token{}, &Error{Kind: InvalidEscape, Line: start.Line, Col: start.Column, Detail: `\x escape requires two hex digits`}
				}
				l.readChar()
				lo, ok2 := hexVal(l.ch)
				if !ok2 {
					return token.Token{}, &Error{Kind: InvalidEscape, Line: start.Line, Col: start.Column, Detail: `\x escape requires two hex digits`}
				}
				l.readChar()
				sb.WriteByte(byte(hi<<4 | lo))
			case 0:
				return token.Token{}, &Error{Kind: UnterminatedString, Line: start.Line, Col: start.Column}
			default:
				return token.Token{}, &Error{Kind: InvalidEscape, Line: start.Line, Col: start.Column, Detail: "unknown escape '\\" + string(l.ch) + "'"}
			}
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	raw := l.input[rawBegin:l.pos]
	return token.Token{Kind: token.STRING, Value: sb.String(), Raw: raw, Start: start, End: l.position()}, nil
}

func hexVal(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	default:
		return 0, false
	}
}

// Tokenize scans the full input and returns all tokens up to and
// including EOF, or the first lexer error encountered.
func Tokenize(src string) ([]token.Token, error) {
	l := New(src)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			logger.Debug("lex error", slog.String("detail", err.Error()), slog.Int("line", l.line))
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			logger.Debug("tokenize complete", slog.Int("tokens", len(toks)))
			return toks, nil
		}
	}
}
