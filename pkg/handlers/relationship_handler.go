package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/auth"
	"github.com/quarrybi/semantic-engine/pkg/models"
	"github.com/quarrybi/semantic-engine/pkg/services"
)

// CreateRelationshipRequest is the body of POST /relationships.
type CreateRelationshipRequest struct {
	DataModelID          uuid.UUID `json:"dataModelId"`
	FromTableID          uuid.UUID `json:"fromTableId"`
	FromColumn           string    `json:"fromColumn"`
	ToTableID            uuid.UUID `json:"toTableId"`
	ToColumn             string    `json:"toColumn"`
	RelationshipType     string    `json:"relationshipType,omitempty"`
	CrossFilterDirection string    `json:"crossFilterDirection,omitempty"`
}

// AutoDetectRequest is the body of POST /relationships/auto-detect.
type AutoDetectRequest struct {
	DataModelID uuid.UUID   `json:"dataModelId"`
	TableIDs    []uuid.UUID `json:"tableIds,omitempty"`
}

// RelationshipHandler serves relationship CRUD and auto-detection.
type RelationshipHandler struct {
	relationships services.RelationshipService
	inference     services.InferenceService
	catalog       services.CatalogService
	logger        *zap.Logger
}

// NewRelationshipHandler creates a relationship handler.
func NewRelationshipHandler(
	relationships services.RelationshipService,
	inference services.InferenceService,
	catalog services.CatalogService,
	logger *zap.Logger,
) *RelationshipHandler {
	return &RelationshipHandler{
		relationships: relationships,
		inference:     inference,
		catalog:       catalog,
		logger:        logger,
	}
}

// RegisterRoutes registers the relationship handler's routes on the given mux.
// Mutations additionally require the editor role.
func (h *RelationshipHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, workspaceMiddleware WorkspaceMiddleware) {
	mux.HandleFunc("GET /api/workspaces/{wid}/relationships",
		authMiddleware.RequireWorkspace("wid")(workspaceMiddleware(h.List)))
	mux.HandleFunc("POST /api/workspaces/{wid}/relationships",
		authMiddleware.RequireWorkspace("wid")(authMiddleware.RequireEditor(workspaceMiddleware(h.Create))))
	mux.HandleFunc("DELETE /api/workspaces/{wid}/relationships/{rid}",
		authMiddleware.RequireWorkspace("wid")(authMiddleware.RequireEditor(workspaceMiddleware(h.Delete))))
	mux.HandleFunc("POST /api/workspaces/{wid}/relationships/auto-detect",
		authMiddleware.RequireWorkspace("wid")(workspaceMiddleware(h.AutoDetect)))
}

// List handles GET /api/workspaces/{wid}/relationships?dataModelId=.
func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	dataModelID, ok := ParseQueryUUID(w, r, "dataModelId", "invalid_data_model_id", "dataModelId query parameter is required", h.logger)
	if !ok {
		return
	}

	relationships, err := h.relationships.List(r.Context(), dataModelID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"relationships": relationships,
	})
}

// Create handles POST /api/workspaces/{wid}/relationships.
func (h *RelationshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}

	var req CreateRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.DataModelID == uuid.Nil || req.FromTableID == uuid.Nil || req.ToTableID == uuid.Nil ||
		req.FromColumn == "" || req.ToColumn == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request",
			"dataModelId, fromTableId, fromColumn, toTableId and toColumn are required")
		return
	}
	if req.RelationshipType != "" && !validCardinality(req.RelationshipType) {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "unknown relationshipType")
		return
	}
	if req.CrossFilterDirection != "" &&
		req.CrossFilterDirection != models.CrossFilterSingle && req.CrossFilterDirection != models.CrossFilterBoth {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "unknown crossFilterDirection")
		return
	}

	rel, err := h.relationships.Create(r.Context(), &services.CreateRelationshipRequest{
		DataModelID:          req.DataModelID,
		FromTableID:          req.FromTableID,
		FromColumn:           req.FromColumn,
		ToTableID:            req.ToTableID,
		ToColumn:             req.ToColumn,
		Type:                 req.RelationshipType,
		CrossFilterDirection: req.CrossFilterDirection,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, rel)
}

// Delete handles DELETE /api/workspaces/{wid}/relationships/{rid}.
func (h *RelationshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	relationshipID, ok := ParseRelationshipID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.relationships.Delete(r.Context(), relationshipID); err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AutoDetect handles POST /api/workspaces/{wid}/relationships/auto-detect.
func (h *RelationshipHandler) AutoDetect(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}

	var req AutoDetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.DataModelID == uuid.Nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "dataModelId is required")
		return
	}

	catalog, err := h.catalog.Load(r.Context(), req.DataModelID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	suggestions, err := h.inference.AutoDetect(r.Context(), catalog, req.TableIDs)
	if err != nil {
		h.logger.Error("Auto-detect failed",
			zap.String("data_model_id", req.DataModelID.String()),
			zap.Error(err))
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
	})
}

func validCardinality(c string) bool {
	switch c {
	case models.Cardinality1To1, models.Cardinality1ToN, models.CardinalityNTo1, models.CardinalityNToN:
		return true
	}
	return false
}
