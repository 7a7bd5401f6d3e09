package auth

import (
	"context"

	"github.com/otcheredev/roadservice-api/internal/models"
)

type identityContextKey struct{}
type tokenContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to ctx
func ContextWithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext returns the identity attached by the authenticator
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	if ctx == nil {
		return models.Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*models.Identity)
	if !ok || v == nil {
		return models.Identity{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if one was attached
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
