package sales

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var instagramPrefix = regexp.MustCompile(`^https?://(www\.)?instagram\.com/`)

// NormalizeHandle canonicalizes a free-text client handle (profile URL,
// @handle, phone or raw text) for matching. Empty input yields "".
//
// Steps: lowercase, NFC, strip a leading instagram profile URL prefix, strip
// a leading '@', cut at the first '/', '?' or '#', trim whitespace.
// NormalizeHandle(NormalizeHandle(x)) == NormalizeHandle(x).
func NormalizeHandle(raw string) string {
	if raw == "" {
		return ""
	}
	s := norm.NFC.String(strings.ToLower(raw))

	// Repeat until stable so "@https://instagram.com/x" and "@@x" reach the
	// same fixed point a second call would.
	for {
		prev := s
		s = strings.TrimSpace(s)
		s = instagramPrefix.ReplaceAllString(s, "")
		s = strings.TrimPrefix(s, "@")
		if s == prev {
			break
		}
	}

	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
