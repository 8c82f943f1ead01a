package pdftext

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reBlankRun   = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Normalize applies NFKC (folding ligatures and full-width digits that some
// invoice fonts emit) and turns CRLF and form feeds into plain newlines.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	return strings.ReplaceAll(s, "\f", "\n")
}

// collapse squeezes every whitespace run into a single space.
func collapse(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// squeezeLine collapses horizontal whitespace but keeps line breaks.
func squeezeLine(s string) string {
	return strings.TrimSpace(reBlankRun.ReplaceAllString(s, " "))
}
