package ingest

import (
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/emfcontracting/fieldsync/internal/mail"
	"github.com/emfcontracting/fieldsync/internal/model"
)

// CycleSummary is the structured result of one scheduled import cycle.
// Cycles never crash the process; whatever happened, the counts come back.
type CycleSummary struct {
	Message    string        `json:"message,omitempty"`
	Fetched    int           `json:"fetched"`
	Parsed     int           `json:"parsed"`
	Created    int           `json:"created"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	ErrorList  []string      `json:"error_list,omitempty"`
	Imported   []string      `json:"imported,omitempty"` // work-order numbers
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

func (s *CycleSummary) recordError(err error) {
	s.Errors++
	s.ErrorList = append(s.ErrorList, err.Error())
}

func (s *CycleSummary) toRun(kind string, success bool) model.ImportRun {
	return model.ImportRun{
		Kind:       kind,
		Success:    success,
		Message:    s.Message,
		Fetched:    s.Fetched,
		Parsed:     s.Parsed,
		Created:    s.Created,
		Duplicates: s.Duplicates,
		Skipped:    s.Skipped,
		Errors:     s.Errors,
		StartedAt:  s.StartedAt,
		Duration:   s.Duration,
	}
}

// StatusUpdate is one applied transition from the reconciliation pass.
type StatusUpdate struct {
	Number      string                `json:"wo_number"`
	Label       string                `json:"label"`
	Status      model.LifecycleStatus `json:"status"`
	ApprovedNTE float64               `json:"approved_nte,omitempty"`
	QuoteAmount float64               `json:"quote_amount,omitempty"`
}

// ReconcileSummary is the structured result of one reconciliation pass.
type ReconcileSummary struct {
	Processed int            `json:"processed"`
	Updated   int            `json:"updated"`
	NotFound  int            `json:"not_found"`
	Errors    int            `json:"errors"`
	ErrorList []string       `json:"error_list,omitempty"`
	Updates   []StatusUpdate `json:"updates,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

func (s *ReconcileSummary) recordError(err error) {
	s.Errors++
	s.ErrorList = append(s.ErrorList, err.Error())
}

// RecentMessage is one entry of the diagnostics report's message list.
type RecentMessage struct {
	UID     imap.UID  `json:"uid"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
	Unseen  bool      `json:"unseen"`
}

// MailboxReport is the read-only diagnostics view of the source
// mailbox: folder inventory plus the most recent dispatch messages.
type MailboxReport struct {
	Folders []mail.FolderInfo `json:"folders"`
	Recent  []RecentMessage   `json:"recent"`
}
