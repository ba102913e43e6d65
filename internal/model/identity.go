package model

import "context"

// IdentityVerifier checks an opaque bearer token against an identity provider
// and returns the subject identifier it was issued for.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}
