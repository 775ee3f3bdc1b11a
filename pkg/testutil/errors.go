package testutil

import "errors"

// ErrUnknownToken is returned by StaticValidator for tokens it was not
// seeded with.
var ErrUnknownToken = errors.New("unknown token")
