package domain

import "errors"

// Validation errors returned by ParseIdentity. Services map these onto the
// caller-facing invalid_owner code.
var (
	ErrEmptyIdentity     = errors.New("identity is empty")
	ErrIdentityTooLong   = errors.New("identity exceeds length limit")
	ErrIdentityMalformed = errors.New("identity contains control characters")
)
