package shared

import (
	"context"
	"time"
)

// PrincipalSessionKey is the session key holding the logged-in principal.
const PrincipalSessionKey = "principal"

// Principal is the logged-in user and the bearer credential issued by the backend.
// It is read from the session once per request and passed down through the context.
type Principal struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether p carries a credential that has not expired at now.
func (p Principal) Valid(now time.Time) bool {
	if p.Token == "" {
		return false
	}
	return p.ExpiresAt.IsZero() || now.Before(p.ExpiresAt)
}

type principalContextKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal of the request, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
