package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrUnavailable indicates the database could not be reached or did not answer in time.
	ErrUnavailable = errors.New("store unavailable")
	// ErrStale indicates a compare-and-swap write lost against a concurrent change.
	ErrStale = errors.New("record changed concurrently")
)
