package search

import (
	"errors"
	"reflect"
	"testing"
)

func filter(field Field, value string) Filter {
	return Filter{Field: field, Value: value}
}

func TestParseStructure(t *testing.T) {
	tests := []struct {
		query string
		want  Term
	}{
		{"some-name", filter(FieldNameOrSummary, "some-name")},
		{"som*name", filter(FieldNameOrSummary, "som*name")},
		{`"some name"`, filter(FieldNameOrSummary, `"some name"`)},
		{`"CASE"`, filter(FieldNameOrSummary, `"CASE"`)},
		{"name:foo", filter(FieldName, "foo")},
		{"summary:foo", filter(FieldSummary, "foo")},
		{"-foo", Not{Term: filter(FieldNameOrSummary, "foo")}},
		{`-"foo bar"`, Not{Term: filter(FieldNameOrSummary, `"foo bar"`)}},
		{`-name:"foo bar"`, Not{Term: filter(FieldName, `"foo bar"`)}},
		{
			"some name",
			And{
				Lhs: filter(FieldNameOrSummary, "some"),
				Rhs: filter(FieldNameOrSummary, "name"),
			},
		},
		{
			"name:foo OR name:bar",
			Or{Lhs: filter(FieldName, "foo"), Rhs: filter(FieldName, "bar")},
		},
		{
			`name:foo AND "fiddle AND sticks"`,
			And{
				Lhs: filter(FieldName, "foo"),
				Rhs: filter(FieldNameOrSummary, `"fiddle AND sticks"`),
			},
		},
		{
			`name:"NAME OR" AND "x"`,
			And{
				Lhs: filter(FieldName, `"NAME OR"`),
				Rhs: filter(FieldNameOrSummary, `"x"`),
			},
		},
		{"(((a)))", filter(FieldNameOrSummary, "a")},
		{
			"(((a) OR (b)))",
			Or{Lhs: filter(FieldNameOrSummary, "a"), Rhs: filter(FieldNameOrSummary, "b")},
		},
		{
			"(a AND b) OR (c AND d)",
			Or{
				Lhs: And{Lhs: filter(FieldNameOrSummary, "a"), Rhs: filter(FieldNameOrSummary, "b")},
				Rhs: And{Lhs: filter(FieldNameOrSummary, "c"), Rhs: filter(FieldNameOrSummary, "d")},
			},
		},
		{
			"((a AND b)) OR (c AND -d)",
			Or{
				Lhs: And{Lhs: filter(FieldNameOrSummary, "a"), Rhs: filter(FieldNameOrSummary, "b")},
				Rhs: And{
					Lhs: filter(FieldNameOrSummary, "c"),
					Rhs: Not{Term: filter(FieldNameOrSummary, "d")},
				},
			},
		},
		{
			// Left-associative implicit AND chain.
			"a b c",
			And{
				Lhs: And{
					Lhs: filter(FieldNameOrSummary, "a"),
					Rhs: filter(FieldNameOrSummary, "b"),
				},
				Rhs: filter(FieldNameOrSummary, "c"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.query, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.query, got, tt.want)
			}
		})
	}
}

func TestImplicitAndExplicitAndAgree(t *testing.T) {
	implicit, err := Parse("a b")
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := Parse("a AND b")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(implicit, explicit) {
		t.Errorf("implicit AND %#v != explicit AND %#v", implicit, explicit)
	}
}

func TestParseEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		term, err := Parse(q)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", q, err)
		}
		if term != nil {
			t.Errorf("Parse(%q) = %#v, want nil", q, term)
		}
	}
}

func TestParseErrors(t *testing.T) {
	queries := []string{
		`"imbalanced`,
		"'s'",
		"unacceptable;char",
		"unacceptable%char",
		"name:",
		"notallowed:foo",
		"-name:(foo OR bar)",
		"-(foo OR bar)",
		"(unclosed",
	}
	for _, q := range queries {
		_, err := Parse(q)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", q)
			continue
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("Parse(%q) error type %T, want *ParseError", q, err)
		}
	}
}
