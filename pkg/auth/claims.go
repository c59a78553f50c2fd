// Package auth provides JWT-based authentication for the semantic engine.
// It verifies workspace tokens issued by the platform's auth service.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Roles a workspace member can hold. Admin implies editor; viewer is
// read-only.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Claims represents the JWT claims structure issued by the platform's auth
// service. It embeds RegisteredClaims for standard JWT fields (sub, iss, exp)
// and adds custom claims for workspace context.
type Claims struct {
	jwt.RegisteredClaims
	WorkspaceID string `json:"wid,omitempty"`   // Workspace UUID
	Email       string `json:"email,omitempty"` // User email address
	Role        string `json:"role,omitempty"`  // Role within the workspace
}

// CanEdit reports whether the claims allow mutating operations.
func (c *Claims) CanEdit() bool {
	return c.Role == RoleAdmin || c.Role == RoleEditor
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// GetWorkspaceIDFromContext extracts the workspace ID from JWT claims in the
// context. Returns uuid.Nil if not authenticated or claims are missing.
func GetWorkspaceIDFromContext(ctx context.Context) uuid.UUID {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.WorkspaceID == "" {
		return uuid.Nil
	}

	workspaceID, err := uuid.Parse(claims.WorkspaceID)
	if err != nil {
		return uuid.Nil
	}
	return workspaceID
}

// RequireWorkspaceIDFromContext extracts the workspace ID from context and
// returns an error if not found or malformed.
func RequireWorkspaceIDFromContext(ctx context.Context) (uuid.UUID, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil, fmt.Errorf("authentication required: no claims in context")
	}
	if claims.WorkspaceID == "" {
		return uuid.Nil, fmt.Errorf("missing workspace ID in JWT claims")
	}
	workspaceID, err := uuid.Parse(claims.WorkspaceID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid workspace ID format: %w", err)
	}
	return workspaceID, nil
}
