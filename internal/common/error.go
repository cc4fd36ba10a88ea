// Package common defines shared constants, the error taxonomy and small
// helpers used across the sessionkeeper server. Callers should use errors.Is
// or KindOf to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Kind sentinels. Every *Error matches exactly one of these via errors.Is.
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrStorage        = errors.New("storage error")
	ErrInternal       = errors.New("internal error")
)

// ErrorKind classifies failures so that the transport layer can map them
// without looking at messages.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindRateLimit
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindAuthentication:
		return ErrAuthentication
	case KindRateLimit:
		return ErrRateLimited
	case KindStorage:
		return ErrStorage
	default:
		return ErrInternal
	}
}

// Authentication failure reasons. They are recorded in audit events only and
// never sent to clients.
const (
	ReasonInvalidCredentials  = "invalid_credentials"
	ReasonNotFound            = "not_found"
	ReasonRevoked             = "revoked"
	ReasonExpired             = "expired"
	ReasonFingerprintMismatch = "fingerprint_mismatch"
	ReasonInvalidToken        = "invalid_token"
	ReasonUserInactive        = "user_inactive"
)

// Error is the typed error returned by services.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewValidationError reports malformed input.
func NewValidationError(reason string) error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// NewAuthError reports an authentication failure with an internal reason.
func NewAuthError(reason string) error {
	return &Error{Kind: KindAuthentication, Reason: reason}
}

// NewRateLimitError reports that the caller is throttled.
func NewRateLimitError() error {
	return &Error{Kind: KindRateLimit}
}

// NewStorageError wraps a persistent-store failure.
func NewStorageError(err error) error {
	return &Error{Kind: KindStorage, Err: err}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) error {
	return &Error{Kind: KindInternal, Err: err}
}

// KindOf extracts the ErrorKind of err. Errors that are not *Error are
// treated as internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the internal reason attached to err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
