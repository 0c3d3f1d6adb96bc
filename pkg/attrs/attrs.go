// Package attrs reads values back out of slog-style key/value attribute lists.
package attrs

// ExtractString returns the string stored under key in a [k1, v1, k2, v2, ...]
// list, or "" when absent or not a string.
func ExtractString(attrs []any, key string) string {
	if v, ok := lookup(attrs, key).(string); ok {
		return v
	}
	return ""
}

// ExtractBool returns the bool stored under key, or false.
func ExtractBool(attrs []any, key string) bool {
	if v, ok := lookup(attrs, key).(bool); ok {
		return v
	}
	return false
}

func lookup(attrs []any, key string) any {
	for i := 0; i+1 < len(attrs); i += 2 {
		if k, ok := attrs[i].(string); ok && k == key {
			return attrs[i+1]
		}
	}
	return nil
}
