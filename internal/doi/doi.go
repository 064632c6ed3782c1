// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doi finds, validates, and normalizes Digital Object Identifiers.
package doi

import (
	"regexp"
	"strings"
)

// scanPattern finds DOI-shaped substrings in free text and URLs.
var scanPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// validPattern is the acceptance test for a stored DOI.
var validPattern = regexp.MustCompile(`^10\.\d{4,}/.+`)

// Valid reports whether s is a well-formed DOI.
func Valid(s string) bool {
	return validPattern.MatchString(s)
}

// Find returns the first DOI in text, with trailing punctuation removed,
// or "" if there is none.
func Find(text string) string {
	for _, m := range scanPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:)'")
		if Valid(m) && strings.Index(m, "/") < len(m)-1 {
			return m
		}
	}
	return ""
}

// Normalize strips resolver prefixes ("https://doi.org/", "doi:") and
// surrounding whitespace from a user-supplied DOI.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{
		"https://doi.org/",
		"http://doi.org/",
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"doi.org/",
		"doi:",
	} {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	return s
}
