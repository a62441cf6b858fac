package schemadsl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/graphkb/internal/pathexpr"
)

var (
	labelPattern    = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
	relTypePattern  = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
	idPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	providerPattern = regexp.MustCompile(`^(ollama|openai):[A-Za-z0-9_-]+$`)
	pathPrefixPattern = regexp.MustCompile(`^\$\..*`)
)

var chunkingStrategies = map[string]bool{
	"by_headings": true,
	"by_fields":   true,
	"sentence":    true,
	"paragraph":   true,
}

// piiDenylist lists substrings (case-insensitive) that, when found in a
// property name, produce an advisory warning rather than a hard error.
var piiDenylist = []string{
	"password", "ssn", "social_security", "credit_card", "bank_account", "api_key", "secret",
}

// validator accumulates errors and warnings across all four layers without
// stopping at the first problem found.
type validator struct {
	errors   []FieldError
	warnings []FieldError
}

func (v *validator) fail(field, format string, args ...any) {
	v.errors = append(v.errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) failSuggest(field, suggestion, format string, args ...any) {
	v.errors = append(v.errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...), Suggestion: suggestion})
}

func (v *validator) warn(field, format string, args ...any) {
	v.warnings = append(v.warnings, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// structural is validation layer 1: required fields, enums, ranges, and
// regex-shaped identifiers.
func (v *validator) structural(s *Schema) {
	if !providerPattern.MatchString(s.Embedding.Provider) {
		v.fail("embedding.provider", "must match %s, got %q", providerPattern.String(), s.Embedding.Provider)
	}

	c := s.Embedding.Chunking
	if !chunkingStrategies[c.Strategy] {
		v.fail("embedding.chunking.strategy", "unknown strategy %q", c.Strategy)
	}
	if c.MaxTokens < 100 || c.MaxTokens > 8000 {
		v.fail("embedding.chunking.max_tokens", "must be in [100, 8000], got %d", c.MaxTokens)
	}
	if c.Overlap < 0 || c.Overlap > 500 {
		v.fail("embedding.chunking.overlap", "must be in [0, 500], got %d", c.Overlap)
	}

	seenLabels := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		if !labelPattern.MatchString(n.Label) {
			v.fail(field+".label", "must match %s, got %q", labelPattern.String(), n.Label)
		} else if seenLabels[n.Label] {
			v.fail(field+".label", "duplicate label %q, labels must be unique within a KB", n.Label)
		}
		seenLabels[n.Label] = true
		if n.Key == "" {
			v.fail(field+".key", "key is required")
		}
	}

	for i, r := range s.Relationships {
		field := fmt.Sprintf("relationships[%d]", i)
		if !relTypePattern.MatchString(r.Type) {
			v.fail(field+".type", "must match %s, got %q", relTypePattern.String(), r.Type)
		}
	}

	for i, src := range s.Mappings.Sources {
		field := fmt.Sprintf("mappings.sources[%d]", i)
		if !idPattern.MatchString(src.SourceID) {
			v.fail(field+".source_id", "must match %s, got %q", idPattern.String(), src.SourceID)
		}
		if src.DocumentType == "" {
			v.fail(field+".document_type", "document_type is required")
		}
		for prop, path := range src.Extract.Assign {
			if !pathPrefixPattern.MatchString(path) {
				v.fail(fmt.Sprintf("%s.extract.assign[%s]", field, prop), "path expression must match %s, got %q", pathPrefixPattern.String(), path)
			}
		}
		for j, e := range src.Edges {
			efield := fmt.Sprintf("%s.edges[%d]", field, j)
			if !relTypePattern.MatchString(e.Type) {
				v.fail(efield+".type", "must match %s, got %q", relTypePattern.String(), e.Type)
			}
			if !pathPrefixPattern.MatchString(e.From.Key) {
				v.fail(efield+".from.key", "path expression must match %s, got %q", pathPrefixPattern.String(), e.From.Key)
			}
			if !pathPrefixPattern.MatchString(e.To.Key) {
				v.fail(efield+".to.key", "path expression must match %s, got %q", pathPrefixPattern.String(), e.To.Key)
			}
			for prop, path := range e.To.Props {
				if !pathPrefixPattern.MatchString(path) {
					v.fail(fmt.Sprintf("%s.to.props[%s]", efield, prop), "path expression must match %s, got %q", pathPrefixPattern.String(), path)
				}
			}
		}
	}
}

// crossReference is validation layer 2: every reference to a label or
// relationship type resolves to something declared elsewhere in the schema.
// Undeclared references get a Jaro-Winkler closest-candidate suggestion.
func (v *validator) crossReference(s *Schema) {
	labels := make([]string, 0, len(s.Nodes))
	declaredLabel := make(map[string]bool, len(s.Nodes))
	keyOf := make(map[string]string, len(s.Nodes))
	for _, n := range s.Nodes {
		labels = append(labels, n.Label)
		declaredLabel[n.Label] = true
		keyOf[n.Label] = n.Key
	}

	relTypes := make([]string, 0, len(s.Relationships))
	declaredRelType := make(map[string]bool, len(s.Relationships))
	for _, r := range s.Relationships {
		relTypes = append(relTypes, r.Type)
		declaredRelType[r.Type] = true

		if !declaredLabel[r.From] {
			v.failSuggest(fmt.Sprintf("relationships[%s].from", r.Type), closestLabel(r.From, labels), "undeclared label %q", r.From)
		}
		if !declaredLabel[r.To] {
			v.failSuggest(fmt.Sprintf("relationships[%s].to", r.Type), closestLabel(r.To, labels), "undeclared label %q", r.To)
		}
	}

	for i, src := range s.Mappings.Sources {
		field := fmt.Sprintf("mappings.sources[%d]", i)
		if !declaredLabel[src.Extract.Node] {
			v.failSuggest(field+".extract.node", closestLabel(src.Extract.Node, labels), "undeclared label %q", src.Extract.Node)
		} else if key := keyOf[src.Extract.Node]; key != "" {
			if _, assigned := src.Extract.Assign[key]; !assigned {
				v.fail(field+".extract.assign", "node %q's key property %q must be populated by an assign entry", src.Extract.Node, key)
			}
		}

		for j, e := range src.Edges {
			efield := fmt.Sprintf("%s.edges[%d]", field, j)
			if !declaredRelType[e.Type] {
				v.failSuggest(efield+".type", closestType(e.Type, relTypes), "undeclared relationship type %q", e.Type)
			}
			if !declaredLabel[e.From.Node] {
				v.failSuggest(efield+".from.node", closestLabel(e.From.Node, labels), "undeclared label %q", e.From.Node)
			}
			if !declaredLabel[e.To.Node] {
				v.failSuggest(efield+".to.node", closestLabel(e.To.Node, labels), "undeclared label %q", e.To.Node)
			}
		}
	}
}

// pathSyntax is validation layer 3: every path expression parses under the
// grammar in internal/pathexpr, and an empty-document probe does not panic.
func (v *validator) pathSyntax(s *Schema) {
	probe := map[string]any{}
	checkPath := func(field, expr string) {
		p, err := pathexpr.Parse(expr)
		if err != nil {
			v.fail(field, "invalid path expression %q: %v", expr, err)
			return
		}
		_ = p.Eval(probe)
	}

	for i, src := range s.Mappings.Sources {
		field := fmt.Sprintf("mappings.sources[%d]", i)
		for prop, path := range src.Extract.Assign {
			checkPath(fmt.Sprintf("%s.extract.assign[%s]", field, prop), path)
		}
		for j, e := range src.Edges {
			efield := fmt.Sprintf("%s.edges[%d]", field, j)
			checkPath(efield+".from.key", e.From.Key)
			checkPath(efield+".to.key", e.To.Key)
			for prop, path := range e.To.Props {
				checkPath(fmt.Sprintf("%s.to.props[%s]", efield, prop), path)
			}
		}
	}
}

// advisories is validation layer 4: warnings that never fail validation on
// their own.
func (v *validator) advisories(s *Schema) {
	for i, n := range s.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		for _, prop := range n.Props {
			lower := strings.ToLower(prop)
			for _, bad := range piiDenylist {
				if strings.Contains(lower, bad) {
					v.warn(field+".props", "property %q looks like it may hold sensitive data (matched %q)", prop, bad)
					break
				}
			}
			if strings.Contains(lower, "email") && prop != n.Key {
				v.warn(field+".props", "property %q looks like an identity field but is not the node's key %q", prop, n.Key)
			}
		}
	}
}
