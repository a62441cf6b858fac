package schemadsl

import (
	"strings"
	"testing"
)

const validYAML = `
embedding:
  provider: "ollama:nomic-embed-text"
  chunking:
    strategy: by_headings
    max_tokens: 500
    overlap: 50
nodes:
  - label: Document
    key: doc_id
    props: [doc_id, title, body]
  - label: Person
    key: person_id
    props: [person_id, name, email]
relationships:
  - type: AUTHORED_BY
    from: Document
    to: Person
mappings:
  sources:
    - source_id: wiki
      document_type: article
      extract:
        node: Document
        assign:
          doc_id: $.id
          title: $.title
      edges:
        - type: AUTHORED_BY
          from:
            node: Document
            key: $.id
          to:
            node: Person
            key: $.author.id
            props:
              person_id: $.author.id
              name: $.author.name
`

func TestParse_Valid(t *testing.T) {
	s, warnings, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if len(s.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(s.Nodes))
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1 (email advisory), got %v", len(warnings), warnings)
	}
}

// TestParse_UndeclaredLabelSuggestsClosest pins scenario S6: a relationship
// referencing "Doc" when only "Document" is declared must fail with
// SchemaInvalid naming "Doc" and suggesting "Document".
func TestParse_UndeclaredLabelSuggestsClosest(t *testing.T) {
	bad := strings.Replace(validYAML, "from: Document", "from: Doc", 1)
	_, _, err := Parse([]byte(bad))
	if err == nil {
		t.Fatalf("expected SchemaInvalid, got nil")
	}
	invalid, ok := err.(*SchemaInvalid)
	if !ok {
		t.Fatalf("expected *SchemaInvalid, got %T", err)
	}

	var found bool
	for _, fe := range invalid.Errors {
		if strings.Contains(fe.Message, `"Doc"`) {
			found = true
			if fe.Suggestion != "Document" {
				t.Errorf("suggestion = %q, want %q", fe.Suggestion, "Document")
			}
		}
	}
	if !found {
		t.Fatalf("no error mentioned undeclared label %q: %v", "Doc", invalid.Errors)
	}
}

func TestParse_AccumulatesAllErrors(t *testing.T) {
	bad := strings.Replace(validYAML, `provider: "ollama:nomic-embed-text"`, `provider: "bogus"`, 1)
	bad = strings.Replace(bad, "strategy: by_headings", "strategy: nonsense", 1)
	_, _, err := Parse([]byte(bad))
	invalid, ok := err.(*SchemaInvalid)
	if !ok {
		t.Fatalf("expected *SchemaInvalid, got %T (%v)", err, err)
	}
	if len(invalid.Errors) < 2 {
		t.Fatalf("expected at least 2 accumulated errors, got %d: %v", len(invalid.Errors), invalid.Errors)
	}
}

func TestParse_MissingKeyAssignment(t *testing.T) {
	bad := strings.Replace(validYAML, "doc_id: $.id\n          title: $.title", "title: $.title", 1)
	_, _, err := Parse([]byte(bad))
	invalid, ok := err.(*SchemaInvalid)
	if !ok {
		t.Fatalf("expected *SchemaInvalid, got %T (%v)", err, err)
	}
	var found bool
	for _, fe := range invalid.Errors {
		if strings.Contains(fe.Message, "key property") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error about the unassigned key property, got %v", invalid.Errors)
	}
}

func TestParse_InvalidPathExpression(t *testing.T) {
	bad := strings.Replace(validYAML, "doc_id: $.id", "doc_id: not-a-path", 1)
	_, _, err := Parse([]byte(bad))
	if err == nil {
		t.Fatalf("expected SchemaInvalid for malformed path expression")
	}
}

func TestNormalize_EqualRegardlessOfFieldOrder(t *testing.T) {
	s1, _, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s2, _, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Reorder nodes; normalized equality must be insensitive to this.
	s2.Nodes[0], s2.Nodes[1] = s2.Nodes[1], s2.Nodes[0]

	if !Equal(s1, s2) {
		t.Fatalf("expected schemas with reordered nodes to be Equal after normalization")
	}
}
