package multisig

import (
	"errors"
	"fmt"
)

// Kind classifies a coordinator failure so callers can present a specific,
// actionable message.
type Kind string

const (
	KindDuplicateOperation       Kind = "duplicate_operation"
	KindDuplicateSigner          Kind = "duplicate_signer"
	KindNotAnOwner               Kind = "not_an_owner"
	KindInvalidState             Kind = "invalid_state"
	KindMalformedSignature       Kind = "malformed_signature"
	KindThresholdViolation       Kind = "threshold_violation"
	KindExternalSubmissionFailed Kind = "external_submission_failed"
	KindNotFound                 Kind = "not_found"
	KindInvalidNonce             Kind = "invalid_nonce"
	KindInvalidOwner             Kind = "invalid_owner"
	KindInvalidRequest           Kind = "invalid_request"
	KindDuplicateWallet          Kind = "duplicate_wallet"
	KindInvalidSignature         Kind = "invalid_signature"
	KindConflict                 Kind = "conflict"
)

// Error carries a Kind plus a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrDuplicateOperation       = &Error{Kind: KindDuplicateOperation}
	ErrDuplicateSigner          = &Error{Kind: KindDuplicateSigner}
	ErrNotAnOwner               = &Error{Kind: KindNotAnOwner}
	ErrInvalidState             = &Error{Kind: KindInvalidState}
	ErrMalformedSignature       = &Error{Kind: KindMalformedSignature}
	ErrThresholdViolation       = &Error{Kind: KindThresholdViolation}
	ErrExternalSubmissionFailed = &Error{Kind: KindExternalSubmissionFailed}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrInvalidNonce             = &Error{Kind: KindInvalidNonce}
	ErrInvalidOwner             = &Error{Kind: KindInvalidOwner}
	ErrInvalidRequest           = &Error{Kind: KindInvalidRequest}
	ErrDuplicateWallet          = &Error{Kind: KindDuplicateWallet}
	ErrInvalidSignature         = &Error{Kind: KindInvalidSignature}
	ErrConflict                 = &Error{Kind: KindConflict}
)

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound builds a not-found error for store implementations.
func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

// Conflict builds the error a store returns when a concurrent writer won.
func Conflict(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

// DuplicateOperation builds the error a store returns for a repeated hash.
func DuplicateOperation(hash string) error {
	return newError(KindDuplicateOperation, "operation %s already proposed", hash)
}

// DuplicateWallet builds the error a store returns for a repeated address.
func DuplicateWallet(address string) error {
	return newError(KindDuplicateWallet, "wallet %s already registered", address)
}

// DuplicateSigner builds the error for a second signature by one owner.
func DuplicateSigner(signer string) error {
	return newError(KindDuplicateSigner, "%s has already signed this transaction", signer)
}

// KindOf extracts the Kind of err, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
