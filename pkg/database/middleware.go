package database

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WithWorkspaceContext creates middleware that sets up a workspace-scoped DB
// connection from the {wid} path value. It runs AFTER auth middleware, which
// guarantees the token matches the path workspace. The connection is cleaned
// up after the handler returns.
func WithWorkspaceContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			widStr := r.PathValue("wid")
			if widStr == "" {
				logger.Error("Missing workspace ID in request path")
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing workspace context")
				return
			}

			workspaceID, err := uuid.Parse(widStr)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_workspace_id", "Invalid workspace ID format")
				return
			}

			scope, err := db.WithWorkspace(r.Context(), workspaceID)
			if err != nil {
				logger.Error("Failed to acquire workspace connection",
					zap.String("workspace_id", workspaceID.String()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			ctx := SetWorkspaceScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
