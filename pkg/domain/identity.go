// Package domain holds identifier types shared across the registry.
package domain

import (
	"strings"
	"unicode"
)

// Identity is a stable, externally verified caller reference, such as a
// cryptographic address. Issuance and key custody live outside this system;
// the registry only compares identities for authorization.
type Identity string

// MaxIdentityLength bounds stored identities. Addresses in the wild are far
// shorter; the cap exists so free-form input cannot bloat the ledger.
const MaxIdentityLength = 128

func (i Identity) String() string {
	return string(i)
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i == ""
}

// ParseIdentity validates a raw identity string. Well-formed means non-empty
// after trimming, within length bounds, and free of control characters.
func ParseIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyIdentity
	}
	if len(trimmed) > MaxIdentityLength {
		return "", ErrIdentityTooLong
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", ErrIdentityMalformed
		}
	}
	return Identity(trimmed), nil
}
