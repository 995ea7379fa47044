package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string. Identifiers sort by creation time and carry 74 random
// bits, so they are neither guessable nor reused.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s is a well-formed canonical identifier.
func Valid(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
