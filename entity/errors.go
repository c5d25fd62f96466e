package entity

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy shared by every service. Business-rule
// violations are returned to the caller and never abort the process;
// KindStoreUnavailable marks transient store trouble whose outcome must be
// re-read, not assumed.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindDeadlineExceeded    ErrorKind = "deadline_exceeded"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindResourceExhausted   ErrorKind = "resource_exhausted"
	KindStoreUnavailable    ErrorKind = "store_unavailable"
)

// Store-level sentinels. Each carries an exact message so errors.Is can
// tell which uniqueness constraint fired; a bare E(kind, "") matches any
// error of that kind.
var (
	ErrCodeTaken     = E(KindConflict, "referral code already in use")
	ErrPhoneTaken    = E(KindConflict, "phone number already registered")
	ErrIdentityTaken = E(KindConflict, "account already registered")
	ErrEdgeExists    = E(KindConflict, "referral edge already exists")
	ErrAdminExists   = E(KindConflict, "admin already registered")
)

// Error carries a kind alongside the message and optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		if t.Kind != e.Kind {
			return false
		}
		return t.Message == "" || t.Message == e.Message
	}
	return false
}

func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Ef(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapE(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain. Untyped errors are
// reported as KindStoreUnavailable since everything the services return
// deliberately is typed.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
