package pathexpr

// Eval evaluates the path against doc, a decoded JSON tree (map[string]any,
// []any, or scalar). It never fails: a missing key, an out-of-range index,
// or an indexing operation against the wrong shape simply contributes no
// values, per the "missing keys produce the empty list" contract.
func (p *Path) Eval(doc any) []any {
	current := []any{doc}
	for _, seg := range p.segments {
		current = applySegment(seg, current)
		if len(current) == 0 {
			return current
		}
	}
	return current
}

// First returns the first value Eval would produce, and whether Eval
// produced any value at all.
func (p *Path) First(doc any) (any, bool) {
	values := p.Eval(doc)
	if len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

func applySegment(seg segment, values []any) []any {
	switch seg.kind {
	case segField:
		var out []any
		for _, v := range values {
			if m, ok := v.(map[string]any); ok {
				if fv, present := m[seg.field]; present {
					out = append(out, fv)
				}
			}
		}
		return out
	case segIndex:
		var out []any
		for _, v := range values {
			if arr, ok := v.([]any); ok {
				idx := seg.index
				if idx < 0 {
					idx += len(arr)
				}
				if idx >= 0 && idx < len(arr) {
					out = append(out, arr[idx])
				}
			}
		}
		return out
	case segWildcard:
		var out []any
		for _, v := range values {
			if arr, ok := v.([]any); ok {
				out = append(out, arr...)
			}
		}
		return out
	case segRecursive:
		var out []any
		for _, v := range values {
			collectRecursive(v, seg.field, &out)
		}
		return out
	default:
		return nil
	}
}

// collectRecursive walks doc depth-first, appending the value of every
// object field named name found at any depth, including inside arrays.
func collectRecursive(doc any, name string, out *[]any) {
	switch v := doc.(type) {
	case map[string]any:
		if fv, ok := v[name]; ok {
			*out = append(*out, fv)
		}
		for _, child := range v {
			collectRecursive(child, name, out)
		}
	case []any:
		for _, child := range v {
			collectRecursive(child, name, out)
		}
	}
}
