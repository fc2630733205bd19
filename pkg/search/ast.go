// Package search compiles the free-text query language of the project index
// into parameterized SQL. Parsing produces a small boolean AST; compilation
// turns the AST into a WHERE clause, a relevance ORDER BY clause and the
// query context used to rank exact and fuzzy matches first.
//
// No user-supplied text ever reaches the generated SQL strings: every literal
// travels through bind parameters. This is the package's central invariant
// and is enforced by tests.
package search

import "fmt"

// Field selects which columns a filter applies to.
type Field int

const (
	// FieldNameOrSummary matches either column; it is the default when a
	// query term carries no "name:" or "summary:" prefix.
	FieldNameOrSummary Field = iota
	FieldName
	FieldSummary
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldSummary:
		return "summary"
	default:
		return "name_or_summary"
	}
}

// Term is one node of the parsed query. The implementations form a closed
// set: Filter, And, Or and Not. Compilation dispatches over this set
// exhaustively; adding a node type without extending the compiler is a
// compile-time-visible change, not a silent fallthrough.
type Term interface {
	isTerm()
}

// Filter matches a single field against a value. Value keeps the surrounding
// double quotes of an exact phrase so later stages can distinguish phrases
// from bare tokens.
type Filter struct {
	Field Field
	Value string
}

// And requires both operands to match.
type And struct {
	Lhs, Rhs Term
}

// Or requires either operand to match.
type Or struct {
	Lhs, Rhs Term
}

// Not inverts its operand.
type Not struct {
	Term Term
}

func (Filter) isTerm() {}
func (And) isTerm()    {}
func (Or) isTerm()     {}
func (Not) isTerm()    {}

// ParseError reports a malformed query. It is user-correctable and surfaced
// verbatim to the caller.
type ParseError struct {
	Msg string
	Pos int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid query at position %d: %s", e.Pos+1, e.Msg)
}
