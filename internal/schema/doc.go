package schema

// Helpers for reading loosely-typed player documents. Legacy documents can hold
// any mix of missing fields, nulls, and numbers decoded as float64 or int, so
// every accessor tolerates absent or wrongly-typed values.

func DeepCopy(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func childMap(doc map[string]any, key string) (map[string]any, bool) {
	if doc == nil {
		return nil, false
	}
	m, ok := doc[key].(map[string]any)
	return m, ok
}

func boolField(doc map[string]any, key string) bool {
	if doc == nil {
		return false
	}
	b, _ := doc[key].(bool)
	return b
}

func stringField(doc map[string]any, key string) string {
	if doc == nil {
		return ""
	}
	s, _ := doc[key].(string)
	return s
}

func numberField(doc map[string]any, key string) (float64, bool) {
	if doc == nil {
		return 0, false
	}
	switch n := doc[key].(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringSliceField(doc map[string]any, key string) []string {
	if doc == nil {
		return nil
	}
	switch raw := doc[key].(type) {
	case []string:
		return raw
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func sliceContains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
