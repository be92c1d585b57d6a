package core

import "context"

// Identity is the verified caller extracted from a bearer token.
type Identity struct {
	// UserID is the identity provider's subject claim.
	UserID string

	// SessionID is the provider session, when the token carries one.
	SessionID string

	// Claims holds the remaining token claims for handlers that need
	// more than the subject.
	Claims map[string]any
}

type identityKey struct{}

// WithIdentity returns a context carrying the verified identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity placed by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
