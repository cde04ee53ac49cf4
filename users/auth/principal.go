package auth

import (
	"context"

	"userAuthService/users/sessions"
	"userAuthService/users/state"
)

// Principal represents the authenticated caller: the user id and role bound
// to the current session.
type Principal struct {
	ID   int
	Role state.Role
}

type principalKey struct{}
type sessionKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// WithSession stores the resolved session in context so handlers like
// logout can act on it without a second lookup.
func WithSession(ctx context.Context, s *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext retrieves the session from context (if any).
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*sessions.Session)
	return s, ok
}
