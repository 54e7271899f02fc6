// Package medname cleans medicine names read off packaging so they can be looked up by brand.
package medname

import (
	"regexp"
	"strings"
)

// A number, an optional single space and a dosage unit or form. "%" has no word
// boundary after it so it is matched on its own.
var dosagePattern = regexp.MustCompile(`(?i)\s*\d+(?:\.\d+)?\s?(?:(?:mg|g|mcg|kg|ml|l|iu|tablet|capsule|drop|suppository|puff|ampoule|vial|patch|spray|dose|units|percent)\b|%)`)

// Normalize strips dosage and form annotations such as "500 mg" or "2 tablet" and trims
// the result. Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(raw string) string {
	s := raw
	for {
		next := dosagePattern.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// NormalizeAll normalizes each name, keeping order and duplicates.
func NormalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = Normalize(name)
	}
	return out
}
