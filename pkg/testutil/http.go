package testutil

import (
	"net/http"
	"time"

	id "provenance/pkg/domain"
	"provenance/pkg/requestcontext"
)

// WithCaller adds a verified caller identity to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithCaller(req *http.Request, caller id.Identity) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithRequestTime pins the commit clock on the request, simulating the
// RequestTime middleware with a deterministic value.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// StaticValidator maps fixed tokens to identities for handler tests, standing
// in for the JWT validator.
type StaticValidator map[string]id.Identity

func (v StaticValidator) ValidateToken(tokenString string) (id.Identity, error) {
	caller, ok := v[tokenString]
	if !ok {
		return "", ErrUnknownToken
	}
	return caller, nil
}
