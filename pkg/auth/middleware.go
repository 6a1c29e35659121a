package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates actor resolution to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireActor resolves the actor and stores it, plus any verified claims, in
// the request context.
func (m *Middleware) RequireActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, claims, err := m.authService.ResolveActor(r)
		if err != nil || actor == "" {
			m.unauthorized(w, "Authentication required")
			return
		}

		ctx := WithActor(r.Context(), actor)
		if claims != nil {
			ctx = context.WithValue(ctx, ClaimsKey, claims)
		}
		next(w, r.WithContext(ctx))
	}
}

// Handler is RequireActor for http.Handler values such as the MCP endpoint.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return m.RequireActor(next.ServeHTTP)
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
