package mail

import (
	"errors"
	"fmt"
)

// ConnectionError indicates a network or TLS failure while reaching the
// IMAP server. It aborts the current cycle only; the next scheduled poll
// retries naturally.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError indicates rejected credentials or an expired token.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TimeoutError indicates a stage exceeded its budget. Stage is one of
// "connect", "auth", or the operation name.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out during %s", e.Stage)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTimeout reports whether err (or any error in its chain) is a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
