package mapping

import (
	"fmt"

	"github.com/MrWong99/graphkb/internal/pathexpr"
	"github.com/MrWong99/graphkb/internal/schemadsl"
)

// Apply projects doc through one source mapping and returns the ordered
// node and edge records it produces, per the primary-node-first,
// secondary-nodes-in-edge-order, then-edges ordering contract.
//
// keyOf resolves a node label to its schema-declared uniqueness key
// property (schema.Nodes[i].Key); Apply needs it both to validate the
// primary node's key and to identify secondary nodes created from edge
// "to" endpoints.
func Apply(doc any, schema *schemadsl.Schema, m schemadsl.SourceMapping) (Result, error) {
	keyOf := make(map[string]string, len(schema.Nodes))
	for _, n := range schema.Nodes {
		keyOf[n.Label] = n.Key
	}

	cache := make(map[string]*pathexpr.Path)
	eval := func(expr string) []any {
		p, ok := cache[expr]
		if !ok {
			compiled, err := pathexpr.Parse(expr)
			if err != nil {
				// Schema validation guarantees well-formed paths reach here;
				// an unparseable expression degrades to "no values" rather
				// than panicking mid-run.
				cache[expr] = nil
				return nil
			}
			p = compiled
			cache[expr] = p
		}
		if p == nil {
			return nil
		}
		return p.Eval(doc)
	}
	first := func(expr string) (any, bool) {
		values := eval(expr)
		if len(values) == 0 {
			return nil, false
		}
		return values[0], true
	}

	primaryLabel := m.Extract.Node
	primaryProps := make(map[string]any, len(m.Extract.Assign))
	for prop, expr := range m.Extract.Assign {
		if v, ok := first(expr); ok {
			primaryProps[prop] = v
		}
	}

	keyProp := keyOf[primaryLabel]
	primaryKey, ok := scalarKey(primaryProps[keyProp])
	if !ok {
		return Result{}, &MappingFailed{Reason: "missing key", Label: primaryLabel, Path: m.Extract.Assign[keyProp]}
	}

	result := Result{
		Nodes: []Node{{Label: primaryLabel, Key: primaryKey, Properties: primaryProps}},
	}

	type secondaryKey struct{ label, key string }
	seen := make(map[secondaryKey]bool)

	for _, e := range m.Edges {
		fromValue, ok := first(e.From.Key)
		if !ok {
			continue
		}
		fromKey, ok := scalarKey(fromValue)
		if !ok {
			continue
		}

		toValues := dedupPreserveOrder(eval(e.To.Key))
		for _, tv := range toValues {
			toKey, ok := scalarKey(tv)
			if !ok {
				continue
			}

			if len(e.To.Props) > 0 {
				sk := secondaryKey{label: e.To.Node, key: toKey}
				if !seen[sk] {
					seen[sk] = true
					props := make(map[string]any, len(e.To.Props))
					for prop, expr := range e.To.Props {
						if v, ok := first(expr); ok {
							props[prop] = v
						}
					}
					if toKeyProp := keyOf[e.To.Node]; toKeyProp != "" {
						props[toKeyProp] = toKey
					}
					result.Nodes = append(result.Nodes, Node{Label: e.To.Node, Key: toKey, Properties: props})
				}
			}

			result.Edges = append(result.Edges, Edge{
				Type:      e.Type,
				FromLabel: e.From.Node,
				FromKey:   fromKey,
				ToLabel:   e.To.Node,
				ToKey:     toKey,
				Properties: map[string]any{},
			})
		}
	}

	return result, nil
}

// scalarKey coerces a resolved path value to a non-empty string key. nil,
// missing, or empty-string values are rejected.
func scalarKey(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return "", false
	}
	return s, true
}

// dedupPreserveOrder removes repeated values while keeping the first
// occurrence's position, matching the "deduplicated while preserving first
// occurrence" contract for edge fan-out.
func dedupPreserveOrder(values []any) []any {
	seen := make(map[string]bool, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		s := fmt.Sprintf("%v", v)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, v)
	}
	return out
}
