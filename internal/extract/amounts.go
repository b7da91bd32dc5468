package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Dollar-amount extraction from quote status emails. The wording varies
// wildly across senders, so each is a fallback chain over the cleaned
// body, then the subject. Amounts outside the sanity window are
// rejected rather than applied to a record.
const (
	minSaneAmount = 100
	maxSaneAmount = 1_000_000
)

var approvedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)approved\s+(?:for|amount[:\s]*)?[\s:]*\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)new\s+NTE[:\s]+(?:of\s+)?\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)NTE\s+has\s+been\s+(?:increased|approved|set)\s+to\s+\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)NTE[:\s]+\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)increased\s+to\s+\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)total\s+(?:NTE|amount)[:\s]+\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)not\s+to\s+exceed\s+\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)quote\s+(?:of|for)\s+\$?([\d,]+\.?\d*)\s+(?:has\s+been\s+)?approved`),
}

var submittedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)quote\s+(?:for|of|amount)?[:\s]*\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)submitted\s+(?:quote|for)?[:\s]*\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)requesting\s+\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)NTE\s+(?:increase|request)?\s*(?:to|of|for)?[:\s]*\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)total[:\s]+\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)amount[:\s]+\$?([\d,]+\.?\d*)`),
}

// ApprovedAmount pulls the approved NTE figure out of a quote-approval
// email. Returns 0 when no plausible amount is found; callers must not
// touch the stored NTE in that case.
func ApprovedAmount(subject, body string) float64 {
	return firstAmount(approvedPatterns, body, subject)
}

// SubmittedAmount pulls the quoted figure out of a quote-submitted
// email, recorded for tracking only (it never changes the NTE).
func SubmittedAmount(subject, body string) float64 {
	return firstAmount(submittedPatterns, body, subject)
}

func firstAmount(patterns []*regexp.Regexp, texts ...string) float64 {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, p := range patterns {
			m := p.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil {
				continue
			}
			if amount >= minSaneAmount && amount <= maxSaneAmount {
				return amount
			}
		}
	}
	return 0
}
