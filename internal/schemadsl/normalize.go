package schemadsl

import (
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize produces a canonical textual form of s: map keys sorted,
// whitespace collapsed. Two schemas are equal, per spec, iff their
// normalized forms match byte-for-byte.
func Normalize(s *Schema) (string, error) {
	sorted := sortedCopy(*s)
	raw, err := yaml.Marshal(sorted)
	if err != nil {
		return "", err
	}
	collapsed := whitespaceRun.ReplaceAllString(string(raw), " ")
	return strings.TrimSpace(collapsed), nil
}

// Equal reports whether a and b normalize to the same canonical form.
func Equal(a, b *Schema) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}

// sortedCopy returns a copy of s with every slice that has no meaningful
// declared order sorted into a deterministic one, so normalization does not
// depend on the order fields happened to appear in source YAML.
func sortedCopy(s Schema) Schema {
	nodes := append([]NodeDef(nil), s.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Label < nodes[j].Label })
	for i := range nodes {
		nodes[i].Props = sortedStrings(nodes[i].Props)
	}
	s.Nodes = nodes

	rels := append([]RelationshipDef(nil), s.Relationships...)
	sort.Slice(rels, func(i, j int) bool { return rels[i].Type < rels[j].Type })
	for i := range rels {
		rels[i].Props = sortedStrings(rels[i].Props)
	}
	s.Relationships = rels

	sources := append([]SourceMapping(nil), s.Mappings.Sources...)
	sort.Slice(sources, func(i, j int) bool { return sources[i].SourceID < sources[j].SourceID })
	s.Mappings.Sources = sources

	return s
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
