package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/auth"
	"github.com/quarrybi/semantic-engine/pkg/services"
)

// WorkspaceMiddleware wires the workspace-scoped database connection into
// the request context. Defined here so handlers do not import the database
// package directly.
type WorkspaceMiddleware func(http.HandlerFunc) http.HandlerFunc

// ModelHandler serves the data model and table catalog.
type ModelHandler struct {
	catalog services.CatalogService
	logger  *zap.Logger
}

// NewModelHandler creates a model handler.
func NewModelHandler(catalog services.CatalogService, logger *zap.Logger) *ModelHandler {
	return &ModelHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the model handler's routes on the given mux.
func (h *ModelHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, workspaceMiddleware WorkspaceMiddleware) {
	mux.HandleFunc("GET /api/workspaces/{wid}/default-model",
		authMiddleware.RequireWorkspace("wid")(workspaceMiddleware(h.GetDefaultModel)))
	mux.HandleFunc("GET /api/workspaces/{wid}/tables",
		authMiddleware.RequireWorkspace("wid")(workspaceMiddleware(h.GetTables)))
}

// GetDefaultModel handles GET /api/workspaces/{wid}/default-model.
// Creates the default model on first access.
func (h *ModelHandler) GetDefaultModel(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	model, err := h.catalog.EnsureDefaultModel(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("Failed to ensure default model",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, model)
}

// GetTables handles GET /api/workspaces/{wid}/tables?dataModelId=.
func (h *ModelHandler) GetTables(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	dataModelID, ok := ParseQueryUUID(w, r, "dataModelId", "invalid_data_model_id", "dataModelId query parameter is required", h.logger)
	if !ok {
		return
	}

	catalog, err := h.catalog.Load(r.Context(), dataModelID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"tables": catalog.Tables,
	})
}
