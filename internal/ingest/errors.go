package ingest

import (
	"errors"
	"fmt"
)

// ErrMessageNotFound is returned by manual import when no message in
// the search window matches the requested work-order number.
var ErrMessageNotFound = errors.New("no matching message found in mailbox")

// MalformedMessageError scopes a decode or extraction failure to a
// single message. The rest of the batch continues.
type MalformedMessageError struct {
	Subject string
	Err     error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message %q: %v", e.Subject, e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// SinkError scopes a record-store failure to the work order being
// written. Distinct from MalformedMessageError so summaries can tell
// bad input from a bad database.
type SinkError struct {
	Op     string
	Number string
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("record store %s for %s: %v", e.Op, e.Number, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// NumberMismatchError rejects a manual import whose parsed work-order
// number differs from the one requested. The record is imported under
// neither number.
type NumberMismatchError struct {
	Requested string
	Parsed    string
}

func (e *NumberMismatchError) Error() string {
	return fmt.Sprintf(
		"work-order number mismatch: requested %s, email parsed as %s",
		e.Requested, e.Parsed,
	)
}

// IsNumberMismatch reports whether err (or any error in its chain) is a
// NumberMismatchError.
func IsNumberMismatch(err error) bool {
	var mismatch *NumberMismatchError
	return errors.As(err, &mismatch)
}
