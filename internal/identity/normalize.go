package identity

import (
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const maxHandleLength = 64

// NormalizeHandle trims, NFKC-normalizes and case-folds a handle so that lookups are
// case-insensitive across scripts.
func NormalizeHandle(handle string) string {
	return fold(handle)
}

// NormalizeEmail applies the same folding to an email address.
func NormalizeEmail(email string) string {
	return fold(email)
}

func fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// A Caser carries state, so each call gets its own.
	return cases.Fold().String(norm.NFKC.String(s))
}

func validHandle(handle string) bool {
	if handle == "" || len(handle) > maxHandleLength {
		return false
	}
	return strings.IndexFunc(handle, unicode.IsSpace) < 0
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
