package utils

// FlattenStrings collects the strings in items, descending into nested lists
// (as decoded from JSON). Non-string values are dropped; order is kept.
func FlattenStrings(items []any) []string {
	out := make([]string, 0, len(items))
	for _, v := range items {
		switch v := v.(type) {
		case string:
			out = append(out, v)
		case []any:
			out = append(out, FlattenStrings(v)...)
		}
	}
	return out
}
