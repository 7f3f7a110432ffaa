// Package strings holds small helpers for list-valued inputs.
package strings

import (
	"strings"
)

// SplitDedupe flattens comma-separated values, trims each element and drops
// blanks and repeats. First-seen order is kept.
//
//	SplitDedupe([]string{"a, b", "a", " ,c"}) // []string{"a", "b", "c"}
func SplitDedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			result = append(result, part)
		}
	}
	return result
}
