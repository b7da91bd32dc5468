// Package decode normalizes the transport encoding of dispatch email
// bodies into a plain-text working buffer. No field semantics live
// here; the same raw body always yields the same plain text.
package decode

import (
	"encoding/hex"
	"html"
	"regexp"
	"strings"
)

var (
	softBreak = regexp.MustCompile(`=\r?\n`)
	qpEscape  = regexp.MustCompile(`=([0-9A-Fa-f]{2})`)
	htmlTag   = regexp.MustCompile(`<[^>]+>`)
	spaceRun  = regexp.MustCompile(`\s+`)
)

// Decode runs the normalization pipeline, in order: undo soft
// line-break continuations, decode quoted-printable =XX escapes, strip
// markup tags, decode HTML entities, collapse whitespace runs, trim.
func Decode(raw string) string {
	s := softBreak.ReplaceAllString(raw, "")
	s = qpEscape.ReplaceAllStringFunc(s, decodeEscape)
	s = htmlTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// decodeEscape converts a single "=XX" escape to its byte. Malformed
// escapes pass through untouched.
func decodeEscape(m string) string {
	b, err := hex.DecodeString(m[1:])
	if err != nil {
		return m
	}
	return string(b)
}
