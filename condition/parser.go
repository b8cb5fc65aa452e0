package condition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenDot
	tokenEq
	tokenGt
	tokenGte
	tokenLt
	tokenLte
	tokenIllegal
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of expression"
	case tokenIdent:
		return "identifier"
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenDot:
		return "."
	case tokenEq:
		return "=="
	case tokenGt:
		return ">"
	case tokenGte:
		return ">="
	case tokenLt:
		return "<"
	case tokenLte:
		return "<="
	default:
		return "illegal token"
	}
}

type token struct {
	typ tokenType
	lit string
	pos int
}

type lexer struct {
	input  string
	length int
	pos    int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, length: len(input)}
}

func (l *lexer) nextToken() token {
	l.skipWhitespace()
	if l.pos >= l.length {
		return token{typ: tokenEOF, pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '.':
		l.pos++
		return token{typ: tokenDot, lit: ".", pos: start}
	case '=':
		if l.peek() == '=' {
			l.pos += 2
			return token{typ: tokenEq, lit: "==", pos: start}
		}
	case '>':
		if l.peek() == '=' {
			l.pos += 2
			return token{typ: tokenGte, lit: ">=", pos: start}
		}
		l.pos++
		return token{typ: tokenGt, lit: ">", pos: start}
	case '<':
		if l.peek() == '=' {
			l.pos += 2
			return token{typ: tokenLte, lit: "<=", pos: start}
		}
		l.pos++
		return token{typ: tokenLt, lit: "<", pos: start}
	case '\'', '"':
		return l.scanString()
	case '-':
		if isDigit(l.peek()) {
			return l.scanNumber()
		}
	}

	if isDigit(ch) {
		return l.scanNumber()
	}
	if isIdentStart(ch) {
		return l.scanIdent()
	}

	l.pos++
	return token{typ: tokenIllegal, lit: string(ch), pos: start}
}

func (l *lexer) skipWhitespace() {
	for l.pos < l.length {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) peek() byte {
	if l.pos+1 >= l.length {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *lexer) scanNumber() token {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	hasDot := false
	for l.pos < l.length {
		ch := l.input[l.pos]
		if ch == '.' {
			// A second dot (or a trailing one) belongs to the path grammar,
			// not the number.
			if hasDot || !isDigit(l.peekAt(l.pos + 1)) {
				break
			}
			hasDot = true
			l.pos++
			continue
		}
		if !isDigit(ch) {
			break
		}
		l.pos++
	}
	return token{typ: tokenNumber, lit: l.input[start:l.pos], pos: start}
}

func (l *lexer) peekAt(pos int) byte {
	if pos >= l.length {
		return 0
	}
	return l.input[pos]
}

func (l *lexer) scanIdent() token {
	start := l.pos
	for l.pos < l.length && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return token{typ: tokenIdent, lit: l.input[start:l.pos], pos: start}
}

func (l *lexer) scanString() token {
	start := l.pos
	quote := l.input[l.pos]
	l.pos++

	var b strings.Builder
	escaped := false
	for l.pos < l.length {
		ch := l.input[l.pos]
		l.pos++
		if escaped {
			switch ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(ch)
			}
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == quote {
			return token{typ: tokenString, lit: b.String(), pos: start}
		}
		b.WriteByte(ch)
	}
	return token{typ: tokenIllegal, lit: "unterminated string", pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '-'
}

type parser struct {
	cur token
	lex *lexer
}

func newParser(input string) *parser {
	p := &parser{lex: newLexer(input)}
	p.advance()
	return p
}

func (p *parser) advance() {
	p.cur = p.lex.nextToken()
}

func (p *parser) expect(typ tokenType) (token, error) {
	if p.cur.typ == tokenIllegal {
		return token{}, fmt.Errorf("%w: %s at position %d", ErrSyntax, p.cur.lit, p.cur.pos)
	}
	if p.cur.typ != typ {
		return token{}, fmt.Errorf("%w: expected %s, got %s at position %d", ErrSyntax, typ, p.cur.typ, p.cur.pos)
	}
	tok := p.cur
	p.advance()
	return tok, nil
}

// Parse compiles an expression into its AST form. Unlike Evaluate it
// surfaces grammar violations as errors carrying the offending position,
// which is what configuration loading wants.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	p := newParser(input)
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenEOF {
		return nil, fmt.Errorf("%w: unexpected %s after expression at position %d", ErrSyntax, p.cur.typ, p.cur.pos)
	}
	return expr, nil
}

func (p *parser) parseComparison() (Expr, error) {
	stage, err := p.expect(tokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenDot); err != nil {
		return nil, err
	}
	field, err := p.expect(tokenIdent)
	if err != nil {
		return nil, err
	}

	switch field.lit {
	case "status":
		return p.parseStatus(stage.lit)
	case "output":
		return p.parseOutput(stage.lit)
	default:
		return nil, fmt.Errorf("%w: expected status or output, got %q at position %d", ErrSyntax, field.lit, field.pos)
	}
}

func (p *parser) parseStatus(stage string) (Expr, error) {
	if _, err := p.expect(tokenEq); err != nil {
		return nil, err
	}
	want, err := p.expect(tokenString)
	if err != nil {
		return nil, err
	}
	return statusEquals{stage: stage, want: want.lit}, nil
}

func (p *parser) parseOutput(stage string) (Expr, error) {
	var path []string
	for p.cur.typ == tokenDot {
		p.advance()
		seg, err := p.expect(tokenIdent)
		if err != nil {
			return nil, err
		}
		path = append(path, seg.lit)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: expected field path after output at position %d", ErrSyntax, p.cur.pos)
	}

	op := p.cur
	switch op.typ {
	case tokenEq, tokenGt, tokenGte, tokenLt, tokenLte:
		p.advance()
	default:
		return nil, fmt.Errorf("%w: expected comparison operator, got %s at position %d", ErrSyntax, op.typ, op.pos)
	}

	switch p.cur.typ {
	case tokenNumber:
		lit := p.cur
		p.advance()
		num, err := strconv.ParseFloat(lit.lit, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q at position %d", ErrSyntax, lit.lit, lit.pos)
		}
		// A trailing .length segment with == and a whole number counts the
		// sequence at the preceding path rather than reading a field.
		if len(path) > 1 && path[len(path)-1] == "length" && op.typ == tokenEq && num == math.Trunc(num) {
			return lengthCompare{stage: stage, path: path[:len(path)-1], want: int(num)}, nil
		}
		return outputCompare{stage: stage, path: path, op: op.typ, lit: num}, nil
	case tokenString:
		if op.typ != tokenEq {
			return nil, fmt.Errorf("%w: operator %s requires a numeric literal at position %d", ErrSyntax, op.typ, p.cur.pos)
		}
		lit := p.cur
		p.advance()
		return outputCompare{stage: stage, path: path, op: op.typ, lit: lit.lit}, nil
	default:
		if p.cur.typ == tokenIllegal {
			return nil, fmt.Errorf("%w: %s at position %d", ErrSyntax, p.cur.lit, p.cur.pos)
		}
		return nil, fmt.Errorf("%w: expected literal, got %s at position %d", ErrSyntax, p.cur.typ, p.cur.pos)
	}
}
