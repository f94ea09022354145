package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"fintrack/internal/domain"
	"fintrack/internal/domain/models"
	"fintrack/internal/domain/services"
	"fintrack/internal/httputil"
)

// CategoryHandler handles category HTTP requests
type CategoryHandler struct {
	categoryService services.CategoryService
	logger          *slog.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categoryService services.CategoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		logger:          logger,
	}
}

// CreateCategory creates a new category
// POST /api/categories
// Returns 201 if created, 409 with the existing category on duplicate names
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req services.CreateCategoryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.categoryService.CreateCategory(r.Context(), userID, &req)
	if err != nil {
		// Handle conflict by fetching and returning the existing category with 409
		HandleCreateConflict(w, err, func() (*models.Category, error) {
			var conflictErr *domain.ConflictError
			if errors.As(err, &conflictErr) && conflictErr.ResourceID != "" {
				return h.categoryService.GetCategory(r.Context(), userID, conflictErr.ResourceID)
			}
			return nil, err
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, category)
}

// BulkCreateCategories creates a batch of categories; failed items are
// collected per-index without aborting the rest
// POST /api/categories/bulk
func (h *CategoryHandler) BulkCreateCategories(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req services.BulkCreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.categoryService.BulkCreateCategories(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// GetCategory retrieves a category by ID
// GET /api/categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, err := parseUUID(r.PathValue("id"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid category ID format")
		return
	}

	category, err := h.categoryService.GetCategory(r.Context(), userID, id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, category)
}

// UpdateCategory renames and/or reparents a category
// PUT /api/categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, err := parseUUID(r.PathValue("id"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid category ID format")
		return
	}

	var req services.UpdateCategoryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.categoryService.UpdateCategory(r.Context(), userID, id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, category)
}

// DeleteCategory soft-deletes a category
// DELETE /api/categories/{id}
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	id, err := parseUUID(r.PathValue("id"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid category ID format")
		return
	}

	if err := h.categoryService.DeleteCategory(r.Context(), userID, id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCategories returns a filtered, paginated category listing
// GET /api/categories?parent_id=&level=&is_active=&type=&search=&page=&limit=
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	req, err := parseListQuery(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.categoryService.ListCategories(r.Context(), userID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, page)
}

// parseListQuery translates the listing query string into a service request.
// parent_id=null selects root categories explicitly.
func parseListQuery(r *http.Request) (*services.ListCategoriesRequest, error) {
	q := r.URL.Query()
	req := &services.ListCategoriesRequest{
		Type:   q.Get("type"),
		Search: q.Get("search"),
	}

	if v := q.Get("parent_id"); v != "" {
		if v == "null" {
			req.RootOnly = true
		} else {
			id, err := parseUUID(v)
			if err != nil {
				return nil, errors.New("invalid parent_id format")
			}
			req.ParentID = &id
		}
	}

	if v := q.Get("level"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil || level < 0 {
			return nil, errors.New("invalid level")
		}
		req.Level = &level
	}

	if v := q.Get("is_active"); v != "" {
		isActive, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid is_active")
		}
		req.IsActive = &isActive
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return nil, errors.New("invalid page")
		}
		req.Page = page
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return nil, errors.New("invalid limit")
		}
		req.Limit = limit
	}

	return req, nil
}
