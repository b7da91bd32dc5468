package extract

import "testing"

func TestApprovedAmount(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    float64
	}{
		{
			"approved for",
			"Quote Approved - Work Order C2959324",
			"Your quote has been approved for $1,250.00",
			1250,
		},
		{
			"new nte",
			"NTE update",
			"New NTE: $500.00 effective immediately",
			500,
		},
		{
			"nte increased to",
			"approval",
			"The NTE has been increased to $2,400",
			2400,
		},
		{
			"not to exceed",
			"approval",
			"work is approved, not to exceed $975.50",
			975.5,
		},
		{
			"subject fallback",
			"Approved for $800.00 - Work Order C2959324",
			"see subject",
			800,
		},
		{
			"no amount",
			"Quote Approved",
			"your quote has been approved",
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApprovedAmount(tt.subject, tt.body)
			if got != tt.want {
				t.Errorf("ApprovedAmount() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Amounts outside the plausible window must be rejected, not applied.
func TestApprovedAmount_SanityWindow(t *testing.T) {
	if got := ApprovedAmount("", "approved for $50.00"); got != 0 {
		t.Errorf("ApprovedAmount(below window) = %v, want 0", got)
	}
	if got := ApprovedAmount("", "approved for $2,000,000"); got != 0 {
		t.Errorf("ApprovedAmount(above window) = %v, want 0", got)
	}
}

// The body is the primary source; the subject is only a fallback.
func TestApprovedAmount_BodyPreferred(t *testing.T) {
	got := ApprovedAmount("Approved for $900.00", "approved for $300.00")
	if got != 300 {
		t.Errorf("ApprovedAmount() = %v, want body amount 300", got)
	}
}

func TestSubmittedAmount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{"quote for", "We have submitted a quote for $850.50", 850.5},
		{"requesting", "requesting $1,100 for parts and labor", 1100},
		{"total", "parts and labor total: $640.00", 640},
		{"none", "quote submitted for your review", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubmittedAmount("Quote Submitted", tt.body)
			if got != tt.want {
				t.Errorf("SubmittedAmount() = %v, want %v", got, tt.want)
			}
		})
	}
}
