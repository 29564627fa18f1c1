package manifest

import "strings"

// normalizePrefix ensures a manifest prefix ends with exactly one "/" so
// that every layout helper (head.Key, segment.Key, checkpoint.MetaKey, ...)
// can simply concatenate onto it.
func normalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimRight(prefix, "/") + "/"
}

func gcPlanKey(prefix string) string { return prefix + "gc/PLAN" }
