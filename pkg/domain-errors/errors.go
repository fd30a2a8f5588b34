// Package domainerrors provides coded errors for the audit workflow domain.
//
// Two codes matter to callers above all others: CodeValidation ("fix your
// input" — the field is missing/invalid or the requested transition does not
// exist from the current state) and CodeForbidden ("you are not allowed" —
// the transition exists but the caller lacks authority). Handlers translate
// codes to HTTP statuses; services never inspect message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks invalid input or a transition that does not
	// exist from the entity's current state.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks malformed identifiers or values rejected at
	// trust boundaries (ID parsing, enum parsing).
	CodeInvalidInput Code = "invalid_input"
	// CodeForbidden marks a valid request the caller lacks authority for.
	CodeForbidden Code = "forbidden"
	// CodeUnauthorized marks a missing or unverifiable identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a uniqueness or concurrent-state conflict.
	CodeConflict Code = "conflict"
	// CodePersistence marks an opaque remote-store failure. Callers may
	// re-issue the operation; no automatic retry happens below this layer.
	CodePersistence Code = "persistence"
	// CodeInternal marks everything else.
	CodeInternal Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code carried by err, or CodeInternal when
// err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, or err.Error() for
// uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
