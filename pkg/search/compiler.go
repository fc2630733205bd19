package search

import (
	"fmt"
	"strings"

	"github.com/pydex/pydex/pkg/index"
)

// Context collects, while compiling a query, the names and patterns that
// deserve a ranking boost: exact (normalized) project names and the fuzzy
// LIKE patterns derived from wildcard terms. Context values are immutable;
// the With/Merge methods return new values, so branches of the AST can be
// combined without aliasing surprises.
type Context struct {
	exactNames    []string
	fuzzyPatterns []string
}

// WithExactName returns a copy of c with name recorded as an exact match
// candidate. Duplicates are dropped, first occurrence wins.
func (c Context) WithExactName(name string) Context {
	return Context{
		exactNames:    appendUnique(c.exactNames, name),
		fuzzyPatterns: c.fuzzyPatterns,
	}
}

// WithFuzzyPattern returns a copy of c with a LIKE pattern recorded.
func (c Context) WithFuzzyPattern(pattern string) Context {
	return Context{
		exactNames:    c.exactNames,
		fuzzyPatterns: appendUnique(c.fuzzyPatterns, pattern),
	}
}

// Merge unions two contexts, preserving order and dropping duplicates.
func (c Context) Merge(other Context) Context {
	merged := Context{
		exactNames:    append([]string(nil), c.exactNames...),
		fuzzyPatterns: append([]string(nil), c.fuzzyPatterns...),
	}
	for _, n := range other.exactNames {
		merged.exactNames = appendUnique(merged.exactNames, n)
	}
	for _, p := range other.fuzzyPatterns {
		merged.fuzzyPatterns = appendUnique(merged.fuzzyPatterns, p)
	}
	return merged
}

// ExactNames returns the collected exact-name candidates.
func (c Context) ExactNames() []string {
	return append([]string(nil), c.exactNames...)
}

// FuzzyPatterns returns the collected LIKE patterns.
func (c Context) FuzzyPatterns() []string {
	return append([]string(nil), c.fuzzyPatterns...)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(append([]string(nil), list...), v)
}

// SQLBuilder is the compiled form of a query: a WHERE clause, a relevance
// ORDER BY clause and their bind parameters. The clause strings never contain
// user-supplied text; all user data is carried by the parameter slices.
type SQLBuilder struct {
	Where       string
	WhereParams []any
	Order       string
	OrderParams []any
	Context     Context
}

// Compile turns a parsed Term into a SQLBuilder. A nil term (the "no
// constraint" query) compiles to an empty WHERE clause and plain
// alphabetical ordering.
func Compile(term Term) (SQLBuilder, error) {
	if term == nil {
		return SQLBuilder{Order: "canonical_name"}, nil
	}
	where, params, ctx, err := compileTerm(term)
	if err != nil {
		return SQLBuilder{}, err
	}
	order, orderParams := orderBy(ctx)
	return SQLBuilder{
		Where:       where,
		WhereParams: params,
		Order:       order,
		OrderParams: orderParams,
		Context:     ctx,
	}, nil
}

// compileTerm dispatches over the closed Term set.
func compileTerm(term Term) (string, []any, Context, error) {
	switch t := term.(type) {
	case Filter:
		return compileFilter(t)
	case And:
		return compileBinary(t.Lhs, t.Rhs, "AND")
	case Or:
		return compileBinary(t.Lhs, t.Rhs, "OR")
	case Not:
		sql, params, _, err := compileTerm(t.Term)
		if err != nil {
			return "", nil, Context{}, err
		}
		// A negated filter must not influence positive ranking, so the
		// inner context is dropped.
		return "(NOT " + sql + ")", params, Context{}, nil
	default:
		return "", nil, Context{}, fmt.Errorf("unknown term type %T", term)
	}
}

func compileBinary(lhs, rhs Term, op string) (string, []any, Context, error) {
	lsql, lparams, lctx, err := compileTerm(lhs)
	if err != nil {
		return "", nil, Context{}, err
	}
	rsql, rparams, rctx, err := compileTerm(rhs)
	if err != nil {
		return "", nil, Context{}, err
	}
	sql := "(" + lsql + " " + op + " " + rsql + ")"
	return sql, append(lparams, rparams...), lctx.Merge(rctx), nil
}

func compileFilter(f Filter) (string, []any, Context, error) {
	switch f.Field {
	case FieldName:
		sql, params, ctx := compileNameFilter(f.Value)
		return sql, params, ctx, nil
	case FieldSummary:
		sql, params := compileSummaryFilter(f.Value)
		return sql, params, Context{}, nil
	case FieldNameOrSummary:
		nameSQL, nameParams, ctx := compileNameFilter(f.Value)
		summarySQL, summaryParams := compileSummaryFilter(f.Value)
		sql := "(" + nameSQL + " OR " + summarySQL + ")"
		// Only the name branch contributes ranking context: a summary
		// match alone should not promote exact-name ordering.
		return sql, append(nameParams, summaryParams...), ctx, nil
	default:
		return "", nil, Context{}, fmt.Errorf("unhandled filter field %v", f.Field)
	}
}

// compileNameFilter builds the canonical_name predicate for a filter value.
// Quoted phrases demand equality, wildcard values keep their wildcard
// positions, and bare tokens become substring matches that still count as
// exact-name candidates for ranking.
func compileNameFilter(value string) (string, []any, Context) {
	if phrase, ok := unquote(value); ok {
		normalized := index.NormalizeName(phrase)
		if strings.Contains(normalized, "*") {
			pattern := strings.ReplaceAll(normalized, "*", "%")
			return "canonical_name LIKE ?", []any{pattern}, Context{}.WithFuzzyPattern(pattern)
		}
		return "canonical_name = ?", []any{normalized}, Context{}.WithExactName(normalized)
	}

	normalized := index.NormalizeName(value)
	if strings.Contains(normalized, "*") {
		pattern := strings.ReplaceAll(normalized, "*", "%")
		return "canonical_name LIKE ?", []any{pattern}, Context{}.WithFuzzyPattern(pattern)
	}
	return "canonical_name LIKE ?", []any{"%" + normalized + "%"}, Context{}.WithExactName(normalized)
}

// compileSummaryFilter builds the summary predicate. Values are matched
// verbatim (no name normalization) and never contribute ranking context.
func compileSummaryFilter(value string) (string, []any) {
	literal := value
	if phrase, ok := unquote(value); ok {
		literal = phrase
	}
	literal = strings.ReplaceAll(literal, "*", "%")
	return "summary LIKE ?", []any{"%" + literal + "%"}
}

func unquote(value string) (string, bool) {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1], true
	}
	return "", false
}

// orderBy builds the composite relevance ordering for the collected context:
//
//	0. exact canonical-name equality to a collected exact name
//	1. fuzzy-pattern match
//	2. prefix or suffix match on an exact name
//	3. everything else
//
// then name length for fuzzy matches (shorter first), then the offset of the
// first exact name inside the row's name (earlier first), then alphabetical.
// Like the WHERE clause, every literal is a bind parameter.
func orderBy(ctx Context) (string, []any) {
	var keys []string
	var params []any

	var tiers []string
	if len(ctx.exactNames) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ctx.exactNames)), ", ")
		tiers = append(tiers, "WHEN canonical_name IN ("+placeholders+") THEN 0")
		for _, name := range ctx.exactNames {
			params = append(params, name)
		}
	}
	if len(ctx.fuzzyPatterns) > 0 {
		tiers = append(tiers, "WHEN "+likeAny(len(ctx.fuzzyPatterns))+" THEN 1")
		for _, pattern := range ctx.fuzzyPatterns {
			params = append(params, pattern)
		}
	}
	if len(ctx.exactNames) > 0 {
		tiers = append(tiers, "WHEN "+likeAny(2*len(ctx.exactNames))+" THEN 2")
		for _, name := range ctx.exactNames {
			params = append(params, name+"%", "%"+name)
		}
	}
	if len(tiers) > 0 {
		keys = append(keys, "CASE "+strings.Join(tiers, " ")+" ELSE 3 END")
	}

	if len(ctx.fuzzyPatterns) > 0 {
		keys = append(keys, "CASE WHEN "+likeAny(len(ctx.fuzzyPatterns))+" THEN length(canonical_name) ELSE 0 END")
		for _, pattern := range ctx.fuzzyPatterns {
			params = append(params, pattern)
		}
	}

	for _, name := range ctx.exactNames {
		keys = append(keys, "CASE WHEN instr(canonical_name, ?) > 0 THEN instr(canonical_name, ?) ELSE 9999 END")
		params = append(params, name, name)
	}

	keys = append(keys, "canonical_name")
	return strings.Join(keys, ", "), params
}

func likeAny(n int) string {
	clauses := make([]string, n)
	for i := range clauses {
		clauses[i] = "canonical_name LIKE ?"
	}
	return strings.Join(clauses, " OR ")
}

// SimpleNameFromQuery proposes a single normalized project name that
// represents the whole query, when the query is exactly one positive
// name-ish filter without wildcards or quoting. Callers use the proposal to
// look up an exact row even when it would not rank into the current page.
func SimpleNameFromQuery(term Term) (string, bool) {
	f, ok := term.(Filter)
	if !ok {
		return "", false
	}
	if f.Field == FieldSummary {
		return "", false
	}
	if strings.Contains(f.Value, "*") || strings.Contains(f.Value, `"`) {
		return "", false
	}
	return index.NormalizeName(f.Value), true
}
