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

// ExecuteRequest is the body of POST /query/execute: either a full semantic
// spec, or a raw-SQL request scoped to an explicit table selection.
type ExecuteRequest struct {
	models.SemanticQuerySpec

	TableIDs []uuid.UUID `json:"tableIds,omitempty"`
	RawSQL   string      `json:"rawSql,omitempty"`
}

// QueryHandler serves query planning and execution.
type QueryHandler struct {
	queries services.QueryService
	logger  *zap.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(queries services.QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, workspaceMiddleware WorkspaceMiddleware) {
	mux.HandleFunc("POST /api/workspaces/{wid}/query/plan",
		authMiddleware.RequireWorkspace("wid")(workspaceMiddleware(h.Plan)))
	mux.HandleFunc("POST /api/workspaces/{wid}/query/execute",
		authMiddleware.RequireWorkspace("wid")(workspaceMiddleware(h.Execute)))
}

// Plan handles POST /api/workspaces/{wid}/query/plan. Compiles the spec and
// returns the plan without executing it.
func (h *QueryHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}

	var spec models.SemanticQuerySpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if spec.DataModelID == uuid.Nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "data_model_id is required")
		return
	}

	plan, err := h.queries.Plan(r.Context(), &spec)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, plan)
}

// Execute handles POST /api/workspaces/{wid}/query/execute.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.DataModelID == uuid.Nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "data_model_id is required")
		return
	}

	var result *services.QueryResult
	var err error
	if req.RawSQL != "" {
		result, err = h.queries.ExecuteRaw(r.Context(), req.DataModelID, req.TableIDs, req.RawSQL)
	} else {
		result, err = h.queries.Execute(r.Context(), &req.SemanticQuerySpec)
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}
