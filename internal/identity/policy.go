package identity

import (
	"fmt"
	"strings"
)

// RevocationPolicy decides which credentials a password change or logout invalidates.
type RevocationPolicy string

const (
	// RevokeNone leaves issued tokens alone on password change. Logout still clears the refresh
	// fingerprint.
	RevokeNone RevocationPolicy = "none"
	// RevokeRefresh clears the refresh fingerprint on password change as well.
	RevokeRefresh RevocationPolicy = "refresh"
	// RevokeAll additionally bumps the session version so outstanding access tokens fail
	// Authenticate before they expire.
	RevokeAll RevocationPolicy = "all"
)

// ParseRevocationPolicy accepts none, refresh or all. Empty input means none.
func ParseRevocationPolicy(value string) (RevocationPolicy, error) {
	switch policy := RevocationPolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case "":
		return RevokeNone, nil
	case RevokeNone, RevokeRefresh, RevokeAll:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown revocation policy %q", value)
	}
}

func (p RevocationPolicy) revokesOnPasswordChange() bool {
	return p == RevokeRefresh || p == RevokeAll
}

func (p RevocationPolicy) bumpsSessionVersion() bool {
	return p == RevokeAll
}
