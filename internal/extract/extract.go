// Package extract pulls structured work-order fields out of decoded
// dispatch email text. Every field is driven by an ordered fallback
// chain of patterns because the dispatch system has emitted several
// historical formats (standard, preventive-maintenance, site-contact)
// for the same logical field.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emfcontracting/fieldsync/internal/classify"
	"github.com/emfcontracting/fieldsync/internal/model"
)

// ErrNotDispatch is returned when the subject line carries no
// work-order number; the message is not a dispatch email and the
// pipeline drops it.
var ErrNotDispatch = errors.New("subject has no work-order number")

const (
	maxBuildingLen    = 200
	maxDescriptionLen = 2000
)

// Subject-line work-order number: optional PM marker, "Work Order"
// (spaces or underscores), then one optional letter and digits.
var subjectNumber = regexp.MustCompile(
	`(?i)(?:PM[\s_]+)?Work[\s_]+Order[\s_]+([A-Z]?\d+)`,
)

var (
	bodyPriority = regexp.MustCompile(
		`(?i)Priority[:\s_]*P(\d+)\s*[-_]?\s*([A-Za-z0-9 ]{0,24})`,
	)
	subjectPriority = regexp.MustCompile(
		`(?i)Priority[:\s_]*P(\d+)[-\s_]*([A-Za-z0-9 ]{0,24})`,
	)
)

var dateEnteredPattern = regexp.MustCompile(
	`(?i)Date Entered:\s*([A-Za-z]+\s+\d{1,2}\s+\d{4}\s+[\d:]+\s*[AP]?M?)`,
)

// Field labels in the body run together with no delimiters, so each
// bounded field stops at the next known label or end of buffer. The
// terminator set must cover every label that can follow: historical
// formats omit Floor and Area entirely.
var buildingChain = chain{
	{pattern: regexp.MustCompile(
		`(?i)Building:\s*(.*?)(?:\s+Floor\b|\s+Area\b|\s+Country\b|\s+Address\b|\s+Date Entered\b|\s+Work Order Requestor\b|\s+Site Contact\b|\s+Problem Description\b|\s+Preventive Maintenance\b|$)`,
	), group: 1, post: truncate(maxBuildingLen)},
}

var addressChain = chain{
	{pattern: regexp.MustCompile(
		`(?i)Address:\s*(.*?)(?:\s+Country\b|\s+Building\b|\s+Date Entered\b|\s+Work Order Requestor\b|\s+Site Contact\b|\s+Problem Description\b|\s+Preventive Maintenance\b|$)`,
	), group: 1, post: cleanAddress},
}

// Combined location token: "Country, St, City: USA, SC, West Columbia".
// The city runs to the next known label or end of buffer.
var locationPattern = regexp.MustCompile(
	`(?i)Country,?\s*St,?\s*City[:\s]+USA?,?\s*([A-Z]{2}),?\s*([A-Za-z ]+?)(?:\s+Work Order\b|\s+Address\b|\s+Building\b|\s+The\b|\s*$)`,
)

// Requestor name and phone: the standard dispatch label first, then the
// site-contact variant used by some facilities.
var requestorPatterns = []*regexp.Regexp{
	regexp.MustCompile(
		`(?i)Work Order Requestor Name and Phone:\s*([^,]+?),\s*([0-9\-() ]+)`,
	),
	regexp.MustCompile(
		`(?i)Site Contact:\s*([^(]+?)\s*\(?([0-9\-]+)\)?`,
	),
}

var nteChain = chain{
	{pattern: regexp.MustCompile(
		`(?i)should not exceed\s*\*{0,2}([\d,]+\.?\d*)\s*USD`,
	), group: 1},
}

var descriptionChain = chain{
	{pattern: regexp.MustCompile(
		`(?i)Problem Description:\s*(.+?)(?:\s+Assignment Name\b|\s+Notes to Vendor\b|\s+Service Location\b|$)`,
	), group: 1},
	{pattern: regexp.MustCompile(
		`(?i)Preventive Maintenance Description:\s*(.+?)(?:\s+Service Location\b|\s+Asset\b|\s+PM Action\b|$)`,
	), group: 1},
}

var pmActionPattern = regexp.MustCompile(
	`(?i)PM Action Steps:\s*-*\s*(.+?)(?:\s+If you have any questions\b|\s+Assignment Name\b|$)`,
)

var (
	targetCompletionPattern = regexp.MustCompile(
		`(?i)Target Completion:\s*([A-Za-z]+\s+\d{1,2}\s+\d{4})`,
	)
	assetTagPattern = regexp.MustCompile(`(?i)Tag Number:\s*(\d+)`)
)

// Parse extracts a work order from a dispatch email's subject line and
// decoded body. sourceTag names the import path ("Auto-imported" or
// "Manually imported") for the audit trail. Returns ErrNotDispatch when
// the subject carries no work-order number.
func Parse(
	subject, body string, now time.Time, sourceTag string,
) (*model.WorkOrder, error) {
	m := subjectNumber.FindStringSubmatch(subject)
	if m == nil {
		return nil, ErrNotDispatch
	}

	wo := &model.WorkOrder{
		Number:   m[1],
		Priority: model.PriorityMedium,
		Status:   model.StatusPending,
	}

	wo.PreventiveMaintenance = isPM(subject, body)

	if code, qualifier, ok := findPriority(subject, body); ok {
		wo.Priority = classify.PriorityOf(code, qualifier)
	}

	wo.DateEntered, wo.DateInferred = dateEntered(body, now)
	wo.Building = buildingChain.apply(body)
	wo.Address = addressChain.apply(body)
	wo.City, wo.State = location(body)
	wo.RequestorName, wo.RequestorPhone = requestor(body)
	wo.NTE = notToExceed(body)
	wo.Description = description(body)
	wo.Comments = buildComments(wo, body, now, sourceTag)

	return wo, nil
}

// FindNumber resolves a work-order number from a status-change email,
// trying the subject first and falling back to the body. Patterns run
// from most to least specific; the loose digit forms exist because
// status emails reference work orders in free text.
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Work Order\s+([A-Z]{0,2}\d{6,})`),
	regexp.MustCompile(`(?i)WO#?\s*([A-Z]{0,2}\d{6,})`),
	regexp.MustCompile(`\b([A-Z]{1,2}\d{6,})\b`),
	regexp.MustCompile(`\b(\d{7,})\b`),
}

func FindNumber(subject, body string) string {
	for _, text := range []string{subject, body} {
		if text == "" {
			continue
		}
		for _, p := range numberPatterns {
			if m := p.FindStringSubmatch(text); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// isPM detects the preventive-maintenance work-order variant.
func isPM(subject, body string) bool {
	return strings.Contains(strings.ToLower(subject), "pm work order") ||
		strings.Contains(strings.ToLower(body), "preventive maintenance description")
}

// findPriority locates the priority code and its free-text qualifier,
// preferring the body and falling back to the subject line.
func findPriority(subject, body string) (code int, qualifier string, ok bool) {
	m := bodyPriority.FindStringSubmatch(body)
	if m == nil {
		m = subjectPriority.FindStringSubmatch(subject)
	}
	if m == nil {
		return 0, "", false
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return code, strings.TrimSpace(m[2]), true
}

// dateEntered parses the dispatch timestamp; on failure it falls back
// to ingestion time and reports the date as inferred.
func dateEntered(body string, now time.Time) (time.Time, bool) {
	m := dateEnteredPattern.FindStringSubmatch(body)
	if m != nil {
		if t, ok := parseLenient(m[1]); ok {
			return t, false
		}
	}
	return now.UTC(), true
}

func location(body string) (city, state string) {
	m := locationPattern.FindStringSubmatch(body)
	if m == nil {
		return "", ""
	}
	return strings.TrimSpace(m[2]), strings.TrimSpace(m[1])
}

func requestor(body string) (name, phone string) {
	for _, p := range requestorPatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		name = strings.TrimSpace(m[1])
		if len(m) > 2 {
			phone = digitsOnly(m[2])
		}
		return name, phone
	}
	return "", ""
}

func notToExceed(body string) float64 {
	raw := nteChain.apply(body)
	if raw == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	return amount
}

// description extracts the problem or preventive-maintenance section,
// appending the PM action steps when present and not already included.
func description(body string) string {
	desc := descriptionChain.apply(body)

	if m := pmActionPattern.FindStringSubmatch(body); m != nil {
		action := strings.TrimSpace(m[1])
		if action != "" && !strings.Contains(desc, action) {
			if desc == "" {
				desc = action
			} else {
				desc = desc + "\n\nPM Action: " + action
			}
		}
	}

	return clip(desc, maxDescriptionLen)
}

// cleanAddress collapses doubled commas and trims a trailing one.
func cleanAddress(s string) string {
	s = strings.ReplaceAll(s, ", ,", ",")
	return strings.TrimSuffix(strings.TrimSpace(s), ",")
}

// buildComments synthesizes the audit trail recorded at import time:
// variant marker, location and contact notes, target-completion and
// asset-tag lines from the body, and the import-source stamp.
func buildComments(
	wo *model.WorkOrder, body string, now time.Time, sourceTag string,
) string {
	var lines []string

	if wo.PreventiveMaintenance {
		lines = append(lines, "[PM - Preventive Maintenance]")
	}
	if wo.Address != "" {
		lines = append(lines, "Address: "+wo.Address)
	}
	if wo.City != "" && wo.State != "" {
		lines = append(lines, fmt.Sprintf("Location: %s, %s", wo.City, wo.State))
	}
	if wo.RequestorPhone != "" {
		lines = append(lines, "Contact Phone: "+wo.RequestorPhone)
	}
	if m := targetCompletionPattern.FindStringSubmatch(body); m != nil {
		lines = append(lines, "Target Completion: "+strings.TrimSpace(m[1]))
	}
	if m := assetTagPattern.FindStringSubmatch(body); m != nil {
		lines = append(lines, "Asset Tag: "+m[1])
	}
	if wo.DateInferred {
		lines = append(lines, "[Date entered not found in email; using import time]")
	}

	variant := ""
	if wo.PreventiveMaintenance {
		variant = "PM "
	}
	lines = append(lines, fmt.Sprintf(
		"[%s from %sdispatch email on %s EST]",
		sourceTag, variant, now.In(eastern()).Format("1/2/2006 3:04:05 PM"),
	))

	return strings.Join(lines, "\n")
}
