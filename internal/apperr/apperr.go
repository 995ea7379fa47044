package apperr

import (
	"errors"
	"fmt"

	"github.com/vidtube/backend/internal/repositories"
)

// Error kinds returned by the core services. Every failure surfaced by identity, relations
// and channels matches exactly one of these via errors.Is.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAuth indicates rejected credentials or tokens.
	ErrAuth = errors.New("authentication failed")
	// ErrUnavailable indicates the persistence layer could not be reached in time. Safe to retry.
	ErrUnavailable = errors.New("service unavailable")
)

// Error carries a kind, a human-readable message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation builds an ErrValidation error.
func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// Conflict builds an ErrConflict error.
func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

// NotFound builds an ErrNotFound error.
func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// Auth builds an ErrAuth error.
func Auth(message string) error {
	return &Error{Kind: ErrAuth, Message: message}
}

// Unavailable wraps cause as an ErrUnavailable error.
func Unavailable(message string, cause error) error {
	return &Error{Kind: ErrUnavailable, Message: message, Err: cause}
}

// Wrap attaches kind and message to cause.
func Wrap(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports which kind err belongs to, or nil when err is nil or unclassified.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrAuth, ErrUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// FromStore translates a repository failure into a taxonomy error. Errors that already carry a
// kind pass through unchanged; anything unrecognised is reported as unavailable so no store
// failure escapes untyped.
func FromStore(message string, err error) error {
	switch {
	case err == nil:
		return nil
	case KindOf(err) != nil:
		return err
	case errors.Is(err, repositories.ErrNotFound):
		return Wrap(ErrNotFound, message, err)
	case errors.Is(err, repositories.ErrConflict), errors.Is(err, repositories.ErrStale):
		return Wrap(ErrConflict, message, err)
	default:
		return Unavailable(message, err)
	}
}
