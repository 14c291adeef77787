package auth

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the auth subsystem reports. The set is closed;
// transports map each kind to exactly one status.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidCredentials
	KindAccountLocked
	KindInvalidToken
	KindPermissionDenied
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountLocked:
		return "account_locked"
	case KindInvalidToken:
		return "invalid_token"
	case KindPermissionDenied:
		return "permission_denied"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the single error type returned across the auth boundary.
type Error struct {
	Kind     Kind
	Msg      string
	Resource string
	Action   Action
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels compare by classification.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Msg: "Incorrect username or password"}
	ErrAccountLocked      = &Error{Kind: KindAccountLocked, Msg: "Inactive user"}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken, Msg: "Could not validate credentials"}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied, Msg: "Permission denied"}
	ErrInvalidInput       = &Error{Kind: KindValidation, Msg: "invalid input"}
	ErrNotFound           = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict           = &Error{Kind: KindConflict, Msg: "resource conflict"}
)

// Validation reports malformed caller input.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing record.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Conflict reports a uniqueness violation.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// Denied names the (resource, action) pair the caller lacks.
func Denied(resource string, action Action) error {
	return &Error{
		Kind:     KindPermissionDenied,
		Msg:      fmt.Sprintf("Permission denied: %s on %s", action, resource),
		Resource: resource,
		Action:   action,
	}
}

// KindOf classifies err. Errors that did not originate here are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
