package pathexpr

import (
	"reflect"
	"testing"
)

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"a.b",
		"$.",
		"$.1abc",
		"$[",
		"$[abc]",
	}
	for _, expr := range cases {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q): expected error, got none", expr)
		}
	}
}

func TestEval_FieldDescent(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{
			"b": "value",
		},
	}
	p := MustParse("$.a.b")
	got, ok := p.First(doc)
	if !ok || got != "value" {
		t.Fatalf("First(%v) = %v, %v; want \"value\", true", doc, got, ok)
	}
}

func TestEval_MissingKeyIsEmptyNotError(t *testing.T) {
	doc := map[string]any{"a": map[string]any{}}
	p := MustParse("$.a.missing.deeper")
	values := p.Eval(doc)
	if len(values) != 0 {
		t.Fatalf("Eval on missing path = %v, want empty", values)
	}
}

func TestEval_Wildcard(t *testing.T) {
	doc := map[string]any{
		"items": []any{
			map[string]any{"name": "x"},
			map[string]any{"name": "y"},
			map[string]any{"other": "z"},
		},
	}
	p := MustParse("$.items[*].name")
	got := p.Eval(doc)
	want := []any{"x", "y"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Eval(%q) = %v, want %v", p, got, want)
	}
}

func TestEval_Index(t *testing.T) {
	doc := map[string]any{"items": []any{"a", "b", "c"}}
	p := MustParse("$.items[1]")
	got, ok := p.First(doc)
	if !ok || got != "b" {
		t.Fatalf("First = %v, %v; want \"b\", true", got, ok)
	}

	pOOR := MustParse("$.items[5]")
	if vals := pOOR.Eval(doc); len(vals) != 0 {
		t.Fatalf("out-of-range index = %v, want empty", vals)
	}
}

func TestEval_RecursiveDescent(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{"id": "1"},
		"b": []any{
			map[string]any{"id": "2"},
			map[string]any{"nested": map[string]any{"id": "3"}},
		},
	}
	p := MustParse("$..id")
	got := p.Eval(doc)
	if len(got) != 3 {
		t.Fatalf("recursive descent found %d values, want 3: %v", len(got), got)
	}
}

func TestEval_ScalarRoot(t *testing.T) {
	p := MustParse("$")
	got := p.Eval("scalar-value")
	want := []any{"scalar-value"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Eval(root) = %v, want %v", got, want)
	}
}

func TestEval_EmptyDocumentProbe(t *testing.T) {
	p := MustParse("$.a.b[*].c")
	if vals := p.Eval(map[string]any{}); len(vals) != 0 {
		t.Fatalf("empty document probe = %v, want empty, not a panic or error", vals)
	}
}
