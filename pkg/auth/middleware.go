package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
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

// RequireWorkspace validates the JWT and matches the URL path workspace ID to
// the token. Use for endpoints like /api/workspaces/{wid}/... where the URL
// carries workspace scope. pathParamName is the name used in r.PathValue()
// (e.g., "wid").
func (m *Middleware) RequireWorkspace(pathParamName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, token, err := m.authService.ValidateRequest(r)
			if err != nil {
				m.unauthorized(w, "Authentication required")
				return
			}

			urlWorkspaceID := r.PathValue(pathParamName)
			if err := m.authService.ValidateWorkspaceIDMatch(claims, urlWorkspaceID); err != nil {
				m.logger.Warn("Workspace scope mismatch",
					zap.String("path", r.URL.Path))
				m.forbidden(w, "Workspace ID mismatch between token and URL")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = context.WithValue(ctx, TokenKey, token)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireEditor rejects requests whose claims carry neither the admin nor the
// editor role. It must run after RequireWorkspace.
func (m *Middleware) RequireEditor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r.Context())
		if !ok || claims == nil {
			m.unauthorized(w, "Authentication required")
			return
		}
		if !claims.CanEdit() {
			m.logger.Warn("Insufficient role for mutating operation",
				zap.String("role", claims.Role),
				zap.String("path", r.URL.Path))
			m.forbidden(w, "Editor role required")
			return
		}
		next(w, r)
	}
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

// forbidden returns a 403 response with JSON error body.
func (m *Middleware) forbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "forbidden",
		"message": message,
	})
}
