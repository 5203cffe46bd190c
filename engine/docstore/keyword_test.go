package docstore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jurisgraph/jurisgraph/engine/search"
)

func testArg() (func(any) string, *[]any) {
	var args []any
	return func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}, &args
}

func TestRenderFilterSQLSingleValue(t *testing.T) {
	arg, args := testArg()
	sql := renderFilterSQL(search.Filter{Clauses: []search.Clause{
		{Field: search.FieldPrimaryCounty, Values: []string{"GA-GWINNETT"}},
		{Field: search.FieldState, Values: []string{"GA"}},
	}}, arg)

	want := "(primary_county = $1 OR applies_to_state = $2)"
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(*args) != 2 || (*args)[0] != "GA-GWINNETT" || (*args)[1] != "GA" {
		t.Fatalf("args = %v", *args)
	}
}

func TestRenderFilterSQLMultiValueIN(t *testing.T) {
	arg, args := testArg()
	sql := renderFilterSQL(search.Filter{Clauses: []search.Clause{
		{Field: search.FieldCity, Values: []string{"GA-ATLANTA"}},
		{Field: search.FieldPrimaryCounty, Values: []string{"GA-FULTON", "GA-DEKALB"}},
	}}, arg)

	want := "(applies_to_city = $1 OR primary_county IN ($2, $3))"
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(*args) != 3 {
		t.Fatalf("args = %v", *args)
	}
}

func TestRenderFilterSQLEmpty(t *testing.T) {
	arg, _ := testArg()
	if sql := renderFilterSQL(search.Filter{}, arg); sql != "" {
		t.Fatalf("empty filter must render empty, got %q", sql)
	}
}

func TestFormatVector(t *testing.T) {
	got := formatVector([]float32{0.5, -1, 0.25})
	if got != "[0.5,-1,0.25]" {
		t.Fatalf("formatVector = %q", got)
	}
	if formatVector(nil) != "[]" {
		t.Fatal("nil vector must render []")
	}
}

func TestDocSchemaUsesConfiguredDims(t *testing.T) {
	if !strings.Contains(docSchema, fmt.Sprintf("vector(%d)", EmbeddingDims)) {
		t.Fatal("schema must declare the embedding width")
	}
}
