// Package classify maps raw tokens from dispatch and status emails to
// canonical enums. Both mappings are data tables so a new code or label
// is one row, and every pairing is independently testable.
package classify

import (
	"strings"

	"github.com/emfcontracting/fieldsync/internal/model"
)

// priorityRule matches either a numeric priority code or a substring of
// the free-text qualifier. Rules are evaluated in order; code matches
// use the exact code, qualifier matches use case-insensitive contains.
type priorityRule struct {
	code      int
	qualifier string
	tier      model.Priority
}

var priorityTable = []priorityRule{
	{code: 1, tier: model.PriorityEmergency},
	{qualifier: "emergency", tier: model.PriorityEmergency},
	{code: 2, tier: model.PriorityHigh},
	{qualifier: "urgent", tier: model.PriorityHigh},
	{qualifier: "24 hour", tier: model.PriorityHigh},
	{code: 3, tier: model.PriorityMedium},
	{code: 4, tier: model.PriorityMedium},
	{qualifier: "48 hour", tier: model.PriorityMedium},
	{qualifier: "72 hour", tier: model.PriorityMedium},
}

// PriorityOf maps a priority code and qualifier text to a severity
// tier. Unrecognized pairings resolve to low.
func PriorityOf(code int, qualifier string) model.Priority {
	q := strings.ToLower(qualifier)
	for _, r := range priorityTable {
		if r.code != 0 && r.code == code {
			return r.tier
		}
		if r.qualifier != "" && strings.Contains(q, r.qualifier) {
			return r.tier
		}
	}
	return model.PriorityLow
}

// labelStatus is the single source of truth for the reconciliation
// flow: mailbox label name to lifecycle status.
var labelStatus = map[string]model.LifecycleStatus{
	"escalation":       model.StatusEscalation,
	"quote-approval":   model.StatusQuoteApproved,
	"quote-rejected":   model.StatusQuoteRejected,
	"quote-submitted":  model.StatusQuoteSubmitted,
	"reassignment-of":  model.StatusReassigned,
	"invoice-rejected": model.StatusInvoiceRejected,
	"cancellation":     model.StatusCancelled,
}

// StatusOf maps a label name to a lifecycle status. Labels outside the
// fixed vocabulary return StatusUnknown so a renamed label fails loudly
// instead of silently corrupting a work order's state.
func StatusOf(label string) model.LifecycleStatus {
	if status, ok := labelStatus[strings.ToLower(strings.TrimSpace(label))]; ok {
		return status
	}
	return model.StatusUnknown
}

// ExtractsApprovedNTE reports whether messages under this label carry
// an approved NTE amount worth extracting (full-body fetch required).
func ExtractsApprovedNTE(label string) bool {
	return StatusOf(label) == model.StatusQuoteApproved
}

// ExtractsQuoteAmount reports whether messages under this label carry a
// submitted quote figure to record.
func ExtractsQuoteAmount(label string) bool {
	return StatusOf(label) == model.StatusQuoteSubmitted
}
