package schema

// Merge overlays next onto prev and returns the result. Nested objects are
// merged key by key; every other value in next replaces the one in prev.
// Neither argument is modified.
func Merge(prev, next map[string]any) map[string]any {
	out := make(map[string]any, len(prev)+len(next))
	for k, v := range prev {
		out[k] = copyValue(v)
	}
	for k, v := range next {
		pm, pok := out[k].(map[string]any)
		nm, nok := v.(map[string]any)
		if pok && nok {
			out[k] = Merge(pm, nm)
		} else {
			out[k] = copyValue(v)
		}
	}
	return out
}
