package handler

import (
	"log/slog"
	"net/http"

	"fintrack/internal/domain/services"
	"fintrack/internal/httputil"
)

// TreeHandler handles HTTP requests for the nested category tree
type TreeHandler struct {
	treeService services.CategoryTreeService
	logger      *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(treeService services.CategoryTreeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		treeService: treeService,
		logger:      logger,
	}
}

// GetTree returns the user's categories as a nested forest
// GET /api/categories/tree
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	tree, err := h.treeService.GetCategoryTree(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}

// HealthCheck reports liveness
// GET /health
func (h *TreeHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
