package tracecap

// Context is free-form event metadata keyed by section ("user", "custom",
// "tags", "env", "cookies", ...). Values may nest arbitrarily.
type Context map[string]any

// MergeContext overlays call-specific context on top of shared context.
// Nested maps are merged recursively; on a leaf conflict the call side wins.
// Neither input is mutated and the result aliases neither.
func MergeContext(shared, call Context) Context {
	out := make(Context, len(shared)+len(call))
	for k, v := range shared {
		out[k] = cloneValue(v)
	}
	for k, v := range call {
		if base, ok := out[k]; ok {
			if bm, cm, ok := asMaps(base, v); ok {
				out[k] = map[string]any(MergeContext(bm, cm))
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

// asMaps reports whether both values are string-keyed maps, normalizing
// Context and map[string]any to a common shape.
func asMaps(a, b any) (Context, Context, bool) {
	am, ok := toMap(a)
	if !ok {
		return nil, nil, false
	}
	bm, ok := toMap(b)
	if !ok {
		return nil, nil, false
	}
	return am, bm, true
}

func toMap(v any) (Context, bool) {
	switch m := v.(type) {
	case Context:
		return m, true
	case map[string]any:
		return Context(m), true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Context:
		return map[string]any(MergeContext(t, nil))
	case map[string]any:
		return map[string]any(MergeContext(Context(t), nil))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
