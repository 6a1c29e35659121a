// Package auth resolves the actor behind an API request: a JWKS-verified
// bearer token in production, a trusted header in local development.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing verified JWT claims.
	ClaimsKey contextKey = "claims"
	// ActorKey is the context key for storing the resolved actor.
	ActorKey contextKey = "actor"
)

// Claims represents the JWT claims accepted from a trusted issuer.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present, e.g. in dev-header mode.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// ActorFromContext returns the actor set by the middleware, or "" when absent.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(ActorKey).(string)
	return actor
}
