// Package strings holds small string helpers for configuration parsing.
package strings

import "strings"

// SplitList flattens comma-separated entries, as they arrive from
// environment variables, into one list. Entries are trimmed; blanks and
// repeats are dropped and first-seen order is kept.
//
//	SplitList([]string{"kafka-1:9092, kafka-2:9092", "kafka-1:9092"})
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
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
