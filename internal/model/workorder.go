package model

import "time"

// Priority is the severity tier assigned to a work order, derived from the
// dispatch email's priority code and qualifier text.
type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// LifecycleStatus tracks where a work order sits in the client's workflow.
// New imports start at StatusPending; subsequent transitions are driven
// entirely by labeled status emails.
type LifecycleStatus string

const (
	StatusPending         LifecycleStatus = "pending"
	StatusEscalation      LifecycleStatus = "escalation"
	StatusQuoteSubmitted  LifecycleStatus = "quote_submitted"
	StatusQuoteApproved   LifecycleStatus = "quote_approved"
	StatusQuoteRejected   LifecycleStatus = "quote_rejected"
	StatusReassigned      LifecycleStatus = "reassigned"
	StatusInvoiceRejected LifecycleStatus = "invoice_rejected"
	StatusCancelled       LifecycleStatus = "cancelled"

	// StatusUnknown is returned for labels outside the fixed vocabulary.
	// Reconciliation ignores it rather than guessing a transition.
	StatusUnknown LifecycleStatus = "unknown"
)

// WorkOrder is a dispatch record extracted from an inbound email.
// Identity fields are fixed at creation; only Status, NTE, and Comments
// change afterward, driven by the reconciliation flow.
type WorkOrder struct {
	// ID is the internal unique identifier for this record.
	ID string `json:"id"`

	// Number is the client-assigned work-order number (e.g. "C2959324").
	// Unique across all records; the dedup guard keys on it.
	Number string `json:"wo_number"`

	// Building is the site name from the dispatch body.
	Building string `json:"building"`

	// Address, City, and State describe the service location.
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`

	// Priority is the normalized severity tier.
	Priority Priority `json:"priority"`

	// DateEntered is when the client entered the work order, stored UTC.
	// If the dispatch email's date could not be parsed this is the
	// ingestion time and DateInferred is set.
	DateEntered  time.Time `json:"date_entered"`
	DateInferred bool      `json:"date_inferred"`

	// Description is the problem or preventive-maintenance description,
	// capped at 2000 characters.
	Description string `json:"description"`

	// RequestorName and RequestorPhone identify the site contact.
	// The phone is digits only.
	RequestorName  string `json:"requestor"`
	RequestorPhone string `json:"requestor_phone"`

	// NTE is the not-to-exceed budget ceiling in USD. Zero when the
	// dispatch email carries no amount.
	NTE float64 `json:"nte"`

	// PreventiveMaintenance marks the PM work-order variant.
	PreventiveMaintenance bool `json:"preventive_maintenance"`

	// Status is the lifecycle status, updated by reconciliation.
	Status          LifecycleStatus `json:"status"`
	StatusUpdatedAt time.Time       `json:"status_updated_at"`

	// Comments is the synthesized audit trail: source tag, location and
	// contact notes, target-completion and asset-tag lines, import
	// timestamp, and reconciliation entries appended over time.
	Comments string `json:"comments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusLabelEvent is one labeled status-change email observed during a
// reconciliation pass. It only ever drives a transition on an existing
// record; it never creates one.
type StatusLabelEvent struct {
	// Label is the mailbox label/folder the message carried.
	Label string `json:"label"`

	// Number is the work-order number resolved from the message.
	Number string `json:"wo_number"`

	// Subject is kept for the audit trail.
	Subject string `json:"subject"`

	// Unseen reports whether the message was still unread when observed.
	Unseen bool `json:"unseen"`
}

// ImportRun is the structured summary of one ingestion pass, persisted
// for operational review.
type ImportRun struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"` // "cycle", "reconcile", or "manual"
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Fetched    int           `json:"fetched"`
	Parsed     int           `json:"parsed"`
	Created    int           `json:"created"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}
