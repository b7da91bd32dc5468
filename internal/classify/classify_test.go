package classify

import (
	"testing"

	"github.com/emfcontracting/fieldsync/internal/model"
)

func TestPriorityOf(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		qualifier string
		want      model.Priority
	}{
		{"P1", 1, "", model.PriorityEmergency},
		{"P1 emergency", 1, "Emergency", model.PriorityEmergency},
		{"emergency text only", 0, "EMERGENCY response", model.PriorityEmergency},
		{"P2", 2, "", model.PriorityHigh},
		{"P2 urgent", 2, "Urgent", model.PriorityHigh},
		{"urgent text only", 0, "urgent repair", model.PriorityHigh},
		{"24 hour", 0, "24 Hour Response", model.PriorityHigh},
		{"P3", 3, "", model.PriorityMedium},
		{"P3 48 hour", 3, "48 Hour", model.PriorityMedium},
		{"P4", 4, "", model.PriorityMedium},
		{"72 hour text only", 0, "72 hour window", model.PriorityMedium},
		{"unrecognized code", 7, "", model.PriorityLow},
		{"unrecognized text", 0, "whenever convenient", model.PriorityLow},
		{"nothing", 0, "", model.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriorityOf(tt.code, tt.qualifier)
			if got != tt.want {
				t.Errorf("PriorityOf(%d, %q) = %q, want %q",
					tt.code, tt.qualifier, got, tt.want)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		label string
		want  model.LifecycleStatus
	}{
		{"escalation", model.StatusEscalation},
		{"quote-approval", model.StatusQuoteApproved},
		{"quote-rejected", model.StatusQuoteRejected},
		{"quote-submitted", model.StatusQuoteSubmitted},
		{"reassignment-of", model.StatusReassigned},
		{"invoice-rejected", model.StatusInvoiceRejected},
		{"cancellation", model.StatusCancelled},
		{"Escalation", model.StatusEscalation},
		{" quote-approval ", model.StatusQuoteApproved},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := StatusOf(tt.label); got != tt.want {
				t.Errorf("StatusOf(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

// A renamed or unexpected label must resolve to the unknown status, not
// to any default lifecycle state.
func TestStatusOf_UnknownLabel(t *testing.T) {
	for _, label := range []string{"", "escalations", "invoices", "random-folder"} {
		if got := StatusOf(label); got != model.StatusUnknown {
			t.Errorf("StatusOf(%q) = %q, want %q", label, got, model.StatusUnknown)
		}
	}
}

func TestAmountBearingLabels(t *testing.T) {
	if !ExtractsApprovedNTE("quote-approval") {
		t.Error("ExtractsApprovedNTE(quote-approval) = false, want true")
	}
	if ExtractsApprovedNTE("quote-submitted") {
		t.Error("ExtractsApprovedNTE(quote-submitted) = true, want false")
	}
	if !ExtractsQuoteAmount("quote-submitted") {
		t.Error("ExtractsQuoteAmount(quote-submitted) = false, want true")
	}
	if ExtractsQuoteAmount("escalation") {
		t.Error("ExtractsQuoteAmount(escalation) = true, want false")
	}
}
