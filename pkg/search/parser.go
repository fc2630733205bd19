package search

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse parses a free-text search query into a Term. An empty or
// whitespace-only query yields (nil, nil), meaning "no constraint" -- callers
// must treat that distinctly from a *ParseError. Adjacent terms combine with
// an implicit AND; explicit AND/OR chains are left-associative.
func Parse(query string) (Term, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}
	p := &parser{input: []rune(trimmed)}
	term, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return term, nil
}

type parser struct {
	input []rune
	pos   int
}

func (p *parser) eof() bool  { return p.pos >= len(p.input) }
func (p *parser) peek() rune { return p.input[p.pos] }
func (p *parser) advance() rune {
	r := p.input[p.pos]
	p.pos++
	return r
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Pos: p.pos}
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

// parseExpr parses a left-associative chain of terms joined by AND, OR or
// whitespace (implicit AND).
func (p *parser) parseExpr() (Term, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		mark := p.pos
		p.skipSpace()
		if p.eof() || p.peek() == ')' {
			p.pos = mark
			return lhs, nil
		}

		combine := andCombine
		if p.keyword("AND") {
			combine = andCombine
		} else if p.keyword("OR") {
			combine = orCombine
		}

		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = combine(lhs, rhs)
	}
}

func andCombine(lhs, rhs Term) Term { return And{Lhs: lhs, Rhs: rhs} }
func orCombine(lhs, rhs Term) Term  { return Or{Lhs: lhs, Rhs: rhs} }

// keyword consumes an operator keyword when it is followed by whitespace,
// so that e.g. "ANDY" still parses as a name token.
func (p *parser) keyword(word string) bool {
	end := p.pos + len(word)
	if end >= len(p.input) {
		return false
	}
	if string(p.input[p.pos:end]) != word || !unicode.IsSpace(p.input[end]) {
		return false
	}
	p.pos = end
	p.skipSpace()
	return true
}

// parseUnary parses a negation, a parenthesized group or a single filter.
func (p *parser) parseUnary() (Term, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of query")
	}

	switch p.peek() {
	case '-':
		p.advance()
		if p.eof() {
			return nil, p.errorf("dangling negation")
		}
		// Negating a bare group is not part of the grammar; negation
		// binds to a single filter or quoted phrase.
		if p.peek() == '(' {
			return nil, p.errorf("cannot negate a parenthesized group")
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Term: inner}, nil
	case '(':
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.advance()
		return inner, nil
	default:
		return p.parseFilter()
	}
}

// parseFilter parses [field ":"] (quoted-phrase | name-token).
func (p *parser) parseFilter() (Term, error) {
	field := FieldNameOrSummary
	if name, ok := p.fieldPrefix(); ok {
		switch name {
		case "name":
			field = FieldName
		case "summary":
			field = FieldSummary
		default:
			return nil, p.errorf("unknown filter field %q", name)
		}
	}

	if p.eof() {
		return nil, p.errorf("missing filter value")
	}
	if p.peek() == '"' {
		value, err := p.quotedString()
		if err != nil {
			return nil, err
		}
		return Filter{Field: field, Value: value}, nil
	}

	value, err := p.nameToken()
	if err != nil {
		return nil, err
	}
	return Filter{Field: field, Value: value}, nil
}

// fieldPrefix consumes a "word:" prefix when present, returning the word.
func (p *parser) fieldPrefix() (string, bool) {
	end := p.pos
	for end < len(p.input) && unicode.IsLetter(p.input[end]) {
		end++
	}
	if end == p.pos || end >= len(p.input) || p.input[end] != ':' {
		return "", false
	}
	word := string(p.input[p.pos:end])
	p.pos = end + 1
	return word, true
}

// quotedString consumes a double-quoted phrase, returning it with the quotes
// still attached. Anything except '"' may appear inside the quotes.
func (p *parser) quotedString() (string, error) {
	start := p.pos
	p.advance() // opening quote
	for !p.eof() {
		if p.advance() == '"' {
			return string(p.input[start:p.pos]), nil
		}
	}
	p.pos = start
	return "", p.errorf("unbalanced quote")
}

// nameToken consumes a package-name-like token: a letter followed by
// letters, digits, '-', '_', '.' or '*'.
func (p *parser) nameToken() (string, error) {
	if !unicode.IsLetter(p.peek()) {
		return "", p.errorf("unexpected %q", p.peek())
	}
	start := p.pos
	for !p.eof() && isNameRune(p.peek()) {
		p.pos++
	}
	return string(p.input[start:p.pos]), nil
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '-' || r == '_' || r == '.' || r == '*'
}
