package mail

import (
	"time"

	"github.com/emersion/go-imap/v2"
)

// Mode selects which messages a scope covers.
type Mode int

const (
	// ModeUnseen covers unread messages only.
	ModeUnseen Mode = iota
	// ModeAll covers every message in the folder.
	ModeAll
	// ModeRecent covers messages from the configured recency window.
	ModeRecent
)

// Scope is the result of selecting a folder and evaluating a search:
// the matching UIDs plus message-count metadata, no bodies fetched.
type Scope struct {
	Folder string
	Total  uint32
	Unseen uint32
	UIDs   []imap.UID
}

// FolderInfo is one entry of the mailbox inventory report.
type FolderInfo struct {
	Name   string `json:"name"`
	Total  uint32 `json:"total"`
	Unseen uint32 `json:"unseen"`
}

// RawMessage is one fetched message. Body is empty for header-only
// fetches; for full fetches it prefers the HTML part (the dispatch
// system sends HTML) and falls back to plain text.
type RawMessage struct {
	UID     imap.UID
	Subject string
	From    string
	Date    time.Time
	Flags   []string
	Body    string
}

// Unseen reports whether the message was unread when fetched.
func (m RawMessage) Unseen() bool {
	for _, f := range m.Flags {
		if f == string(imap.FlagSeen) {
			return false
		}
	}
	return true
}

// MessageError records a failure scoped to a single message within a
// batch. The rest of the batch continues.
type MessageError struct {
	UID     imap.UID
	Subject string
	Err     error
}

func (e MessageError) Error() string {
	return "message " + e.Subject + ": " + e.Err.Error()
}

func (e MessageError) Unwrap() error { return e.Err }
