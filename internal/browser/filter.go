package browser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// maxFilterDepth bounds nesting of parentheses and NOT.
const maxFilterDepth = 64

// Filter is a parsed row filter. SQL is a WHERE clause body with positional
// placeholders and Args holds the bound values in order.
type Filter struct {
	Text string
	SQL  string
	Args []any
}

// Empty reports whether the filter matches every row.
func (f Filter) Empty() bool {
	return f.SQL == ""
}

// ParseFilter parses text in the restricted filter language and resolves
// every column reference against columns. Blank text yields an empty filter.
//
//	status = 'open' AND (priority >= 2 OR owner IS NULL)
//	name NOT LIKE 'tmp%' AND id IN (1, 2, 3)
func ParseFilter(text string, columns []string) (Filter, error) {
	f := Filter{Text: text}
	if strings.TrimSpace(text) == "" {
		return f, nil
	}

	toks, err := lex(text)
	if err != nil {
		return f, err
	}

	p := &filterParser{toks: toks, columns: columns}
	var sb strings.Builder
	if err := p.expr(&sb, 0); err != nil {
		return f, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return f, p.errorf(tok, "unexpected %s", tok)
	}

	f.SQL = sb.String()
	f.Args = p.args
	return f, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of filter"
	}
	return strconv.Quote(t.text)
}

// keyword reports whether t is the bare word kw, ignoring case.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func lex(text string) ([]token, error) {
	var toks []token
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '\'':
			s, next, err := lexQuoted(text, i, '\'', '\'')
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, i})
			i = next
		case c == '"' || c == '`':
			s, next, err := lexQuoted(text, i, c, c)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokQuotedIdent, s, i})
			i = next
		case c == '[':
			s, next, err := lexQuoted(text, i, '[', ']')
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokQuotedIdent, s, i})
			i = next
		case strings.ContainsRune("=<>!", rune(c)):
			op := lexOperator(text[i:])
			if op == "" {
				return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrInvalidFilter, c, i+1)
			}
			toks = append(toks, token{tokOp, op, i})
			i += len(op)
		case isDigit(c) || ((c == '-' || c == '+' || c == '.') && i+1 < len(text) && (isDigit(text[i+1]) || text[i+1] == '.')):
			j := i + 1
			for j < len(text) && (isDigit(text[j]) || strings.ContainsRune(".eE", rune(text[j])) ||
				((text[j] == '-' || text[j] == '+') && (text[j-1] == 'e' || text[j-1] == 'E'))) {
				j++
			}
			toks = append(toks, token{tokNumber, text[i:j], i})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(text) && (isIdentStart(text[j]) || isDigit(text[j]) || text[j] == '$') {
				j++
			}
			toks = append(toks, token{tokIdent, text[i:j], i})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrInvalidFilter, c, i+1)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(text)}), nil
}

// lexQuoted reads a token delimited by open and end starting at i. A
// doubled end character stands for itself.
func lexQuoted(text string, i int, open, end byte) (string, int, error) {
	var sb strings.Builder
	for j := i + 1; j < len(text); j++ {
		if text[j] != end {
			sb.WriteByte(text[j])
			continue
		}
		if open == end && j+1 < len(text) && text[j+1] == end {
			sb.WriteByte(end)
			j++
			continue
		}
		return sb.String(), j + 1, nil
	}
	return "", 0, fmt.Errorf("%w: unterminated %c at position %d", ErrInvalidFilter, open, i+1)
}

func lexOperator(s string) string {
	for _, op := range []string{"==", "!=", "<>", "<=", ">=", "=", "<", ">"} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

type filterParser struct {
	toks    []token
	pos     int
	columns []string
	args    []any
}

func (p *filterParser) peek() token { return p.toks[p.pos] }

func (p *filterParser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *filterParser) acceptKeyword(kw string) bool {
	if p.peek().keyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *filterParser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		tok := p.peek()
		return p.errorf(tok, "expected %s, found %s", kw, tok)
	}
	return nil
}

func (p *filterParser) expect(kind tokenKind, what string) error {
	tok := p.next()
	if tok.kind != kind {
		return p.errorf(tok, "expected %s, found %s", what, tok)
	}
	return nil
}

func (p *filterParser) errorf(tok token, format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d", ErrInvalidFilter, fmt.Sprintf(format, args...), tok.pos+1)
}

func (p *filterParser) expr(sb *strings.Builder, depth int) error {
	if err := p.and(sb, depth); err != nil {
		return err
	}
	for p.acceptKeyword("OR") {
		sb.WriteString(" OR ")
		if err := p.and(sb, depth); err != nil {
			return err
		}
	}
	return nil
}

func (p *filterParser) and(sb *strings.Builder, depth int) error {
	if err := p.unary(sb, depth); err != nil {
		return err
	}
	for p.acceptKeyword("AND") {
		sb.WriteString(" AND ")
		if err := p.unary(sb, depth); err != nil {
			return err
		}
	}
	return nil
}

func (p *filterParser) unary(sb *strings.Builder, depth int) error {
	if depth > maxFilterDepth {
		return p.errorf(p.peek(), "nesting deeper than %d", maxFilterDepth)
	}
	if p.acceptKeyword("NOT") {
		sb.WriteString("NOT ")
		return p.unary(sb, depth+1)
	}
	if p.peek().kind == tokLParen {
		p.next()
		sb.WriteByte('(')
		if err := p.expr(sb, depth+1); err != nil {
			return err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return err
		}
		sb.WriteByte(')')
		return nil
	}
	return p.predicate(sb)
}

func (p *filterParser) predicate(sb *strings.Builder) error {
	col, err := p.column()
	if err != nil {
		return err
	}
	sb.WriteString(gateway.QuoteIdent(col))

	tok := p.next()
	switch {
	case tok.kind == tokOp:
		op := tok.text
		if op == "==" {
			op = "="
		}
		sb.WriteString(" " + op + " ")
		return p.value(sb)

	case tok.keyword("IS"):
		if p.acceptKeyword("NOT") {
			sb.WriteString(" IS NOT NULL")
		} else {
			sb.WriteString(" IS NULL")
		}
		return p.expectKeyword("NULL")

	case tok.keyword("NOT"):
		sb.WriteString(" NOT")
		return p.negatable(sb, p.next())

	default:
		return p.negatable(sb, tok)
	}
}

// negatable handles the operators that may follow NOT: LIKE, IN and BETWEEN.
func (p *filterParser) negatable(sb *strings.Builder, tok token) error {
	switch {
	case tok.keyword("LIKE"):
		sb.WriteString(" LIKE ")
		return p.value(sb)

	case tok.keyword("IN"):
		sb.WriteString(" IN (")
		if err := p.expect(tokLParen, "'('"); err != nil {
			return err
		}
		for i := 0; ; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := p.value(sb); err != nil {
				return err
			}
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return err
		}
		sb.WriteByte(')')
		return nil

	case tok.keyword("BETWEEN"):
		sb.WriteString(" BETWEEN ")
		if err := p.value(sb); err != nil {
			return err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return err
		}
		sb.WriteString(" AND ")
		return p.value(sb)

	default:
		return p.errorf(tok, "expected operator, found %s", tok)
	}
}

// column resolves a column reference. SQLite identifiers are case
// insensitive, so an exact match wins and a case-folded match is accepted.
func (p *filterParser) column() (string, error) {
	tok := p.next()
	if tok.kind != tokIdent && tok.kind != tokQuotedIdent {
		return "", p.errorf(tok, "expected column, found %s", tok)
	}
	for _, c := range p.columns {
		if c == tok.text {
			return c, nil
		}
	}
	for _, c := range p.columns {
		if strings.EqualFold(c, tok.text) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %w %q at position %d", ErrInvalidFilter, ErrUnknownColumn, tok.text, tok.pos+1)
}

// value binds a literal as a parameter.
func (p *filterParser) value(sb *strings.Builder) error {
	tok := p.next()
	var v any
	switch {
	case tok.kind == tokString:
		v = tok.text
	case tok.kind == tokNumber:
		n, err := parseNumber(tok.text)
		if err != nil {
			return p.errorf(tok, "invalid number %s", tok)
		}
		v = n
	case tok.keyword("NULL"):
		sb.WriteString("NULL")
		return nil
	case tok.keyword("TRUE"):
		v = int64(1)
	case tok.keyword("FALSE"):
		v = int64(0)
	default:
		return p.errorf(tok, "expected value, found %s", tok)
	}
	sb.WriteByte('?')
	p.args = append(p.args, v)
	return nil
}

func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	return strconv.ParseFloat(s, 64)
}
