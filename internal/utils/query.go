package utils

import "strings"

// ParseQueryList reads a list-valued query parameter given either repeated or
// comma-separated, e.g. ?status=EnRoute,Assisting or ?status=EnRoute&status=Assisting.
// Blank items are dropped and the first occurrence of a duplicate wins.
func ParseQueryList(q map[string][]string, key string) []string {
	values := q[key]
	if len(values) == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
