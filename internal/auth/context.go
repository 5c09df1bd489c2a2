package auth

import (
	"context"

	"medivault.org/internal/session"
)

type claimsContextKey struct{}

// ContextWithClaims attaches validated session claims to the context.
func ContextWithClaims(ctx context.Context, claims *session.Claims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts validated session claims from the context.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsContextKey{}).(*session.Claims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}
