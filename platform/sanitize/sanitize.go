// Package sanitize cleans free text typed by beneficiaries and staff before
// it is stored: comments, descriptions, observations and notes.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
	blankLinePattern = regexp.MustCompile(`\n{3,}`)
)

// Text strips markup, decodes entities and trims the result. Runs of blank
// lines collapse to one so pasted text stays readable.
func Text(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	// Entities may have encoded a tag.
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Optional sanitizes an optional field. Nil and blank input give nil.
func Optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := Text(*s)
	if v == "" {
		return nil
	}
	return &v
}
