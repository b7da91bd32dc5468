package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// rule is one extraction attempt for a field: a pattern, the capture
// group to take, and an optional postprocessing step.
type rule struct {
	pattern *regexp.Regexp
	group   int
	post    func(string) string
}

// chain is an ordered fallback list of rules for one field. The first
// rule whose capture is non-empty wins. Adding a new historical email
// format means appending a rule here, nothing else.
type chain []rule

func (c chain) apply(text string) string {
	for _, r := range c {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil || len(m) <= r.group {
			continue
		}
		v := strings.TrimSpace(m[r.group])
		if v == "" {
			continue
		}
		if r.post != nil {
			v = strings.TrimSpace(r.post(v))
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// clip caps a value at n bytes, backing off to a rune boundary so a
// multibyte character is never split.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// truncate caps a value at n bytes.
func truncate(n int) func(string) string {
	return func(s string) string {
		return clip(s, n)
	}
}

var nonDigits = regexp.MustCompile(`\D`)

// digitsOnly strips everything but digits, normalizing phone numbers.
func digitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}
