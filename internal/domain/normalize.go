package domain

import "strings"

// NormalizeHumanName collapses every whitespace run to one space and trims the ends.
// Trip titles and destinations are stored in this form.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeProvider folds a sign-in provider name ("Google ", "GITHUB") to its canonical key.
func NormalizeProvider(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
