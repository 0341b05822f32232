package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of identity failures surfaced to callers.
type ErrorKind string

const (
	KindNotAuthorized    ErrorKind = "not_authorized"
	KindUserNotConfirmed ErrorKind = "user_not_confirmed"
	KindUserNotFound     ErrorKind = "user_not_found"
	KindUsernameExists   ErrorKind = "username_exists"
	KindCodeMismatch     ErrorKind = "code_mismatch"
	KindExpiredCode      ErrorKind = "expired_code"
	KindInvalidPassword  ErrorKind = "invalid_password"
	KindLimitExceeded    ErrorKind = "limit_exceeded"
	KindInvalidParameter ErrorKind = "invalid_parameter"
	KindMFARequired      ErrorKind = "mfa_required"
	KindUnknown          ErrorKind = "unknown"
)

// Kinds lists every ErrorKind.
var Kinds = []ErrorKind{
	KindNotAuthorized,
	KindUserNotConfirmed,
	KindUserNotFound,
	KindUsernameExists,
	KindCodeMismatch,
	KindExpiredCode,
	KindInvalidPassword,
	KindLimitExceeded,
	KindInvalidParameter,
	KindMFARequired,
	KindUnknown,
}

// Error wraps a provider failure with its kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("identity %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("identity %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(op string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr.Kind
	}
	return KindUnknown
}

var (
	ErrNoSession      = errors.New("no_session")
	ErrSessionExpired = errors.New("session_expired")
)
