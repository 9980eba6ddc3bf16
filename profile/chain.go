package profile

import "strings"

// SplitChain splits a comma-separated selector fallback chain into its
// alternatives. Commas nested in brackets, parentheses or quotes belong to the
// selector (a[href*=","], :is(h1, h2)) and do not split.
func SplitChain(chain string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)

	for i, r := range chain {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			parts = appendSelector(parts, chain[start:i])
			start = i + 1
		}
	}

	return appendSelector(parts, chain[start:])
}

func appendSelector(parts []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		parts = append(parts, s)
	}
	return parts
}
