package adapters

import "strings"

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
}

// NormalizePlayerName maps a display name to the canonical player key
// used for cache and upstream lookups: lowercase, punctuation stripped
// ("." removed, "-" becomes space), whitespace collapsed, generational
// suffixes removed. Insight phrasings glue the verb onto the subject
// ("J. Tatum to record"), so anything from a trailing " to" onward is
// cut before normalizing.
func NormalizePlayerName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	if idx := strings.Index(s, " to "); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSuffix(s, " to")

	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", "")

	fields := strings.Fields(s)
	if n := len(fields); n > 1 && nameSuffixes[fields[n-1]] {
		fields = fields[:n-1]
	}
	return strings.Join(fields, " ")
}
