package models

import "strings"

// DefaultTerm is used when a request leaves the term blank.
const DefaultTerm = "Term 1"

// NormalizeTerm trims, collapses inner whitespace and applies DefaultTerm.
// Two inputs differing only in whitespace normalize to the same term.
func NormalizeTerm(raw string) string {
	term := strings.Join(strings.Fields(raw), " ")
	if term == "" {
		return DefaultTerm
	}
	return term
}
