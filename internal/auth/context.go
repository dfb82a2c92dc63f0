package auth

import "context"

type identityContextKey struct{}
type tokenContextKey struct{}

// ContextWithIdentity attaches the authenticated user to the context.
func ContextWithIdentity(ctx context.Context, user *User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, user)
}

// IdentityFromContext extracts the authenticated user from the context.
func IdentityFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*User)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithToken stores the raw bearer token inside the context so the
// logout handler can revoke the exact session it arrived on.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
