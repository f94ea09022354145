package services

import (
	"context"

	"fintrack/internal/domain/models"
	"fintrack/internal/httputil"
)

// CategoryService handles category tree business logic: the four structural
// operations plus listing, tree assembly and bulk creation. Every method is
// scoped to the authenticated user's ID.
type CategoryService interface {
	// CreateCategory creates a new category, at the root or under an
	// existing parent owned by the same user
	CreateCategory(ctx context.Context, userID string, req *CreateCategoryRequest) (*models.Category, error)

	// GetCategory retrieves a category, enforcing ownership
	GetCategory(ctx context.Context, userID, categoryID string) (*models.Category, error)

	// UpdateCategory renames and/or reparents a category, cascading the
	// denormalized level/path recomputation to every descendant
	UpdateCategory(ctx context.Context, userID, categoryID string, req *UpdateCategoryRequest) (*models.Category, error)

	// DeleteCategory soft-deletes a category; refused while it has active
	// children or when it is system-provisioned
	DeleteCategory(ctx context.Context, userID, categoryID string) error

	// ListCategories returns one page of the user's categories matching the
	// given filters, ordered (level ASC, name ASC)
	ListCategories(ctx context.Context, userID string, req *ListCategoriesRequest) (*CategoryPage, error)

	// BulkCreateCategories attempts each item independently and collects
	// failures without aborting the batch
	BulkCreateCategories(ctx context.Context, userID string, req *BulkCreateRequest) (*BulkCreateResult, error)
}

// CategoryTreeService builds the nested category forest for a user.
type CategoryTreeService interface {
	// GetCategoryTree loads all of the user's categories and assembles them
	// into a parent/children structure rooted at the parentless ones
	GetCategoryTree(ctx context.Context, userID string) (*models.CategoryTree, error)
}

// CreateCategoryRequest represents a category creation request
type CreateCategoryRequest struct {
	Name        string  `json:"name"`
	ParentID    *string `json:"parent_id,omitempty"` // nil or "" = root category
	Type        string  `json:"type,omitempty"`      // defaults to expense
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	Color       string  `json:"color,omitempty"`
}

// UpdateCategoryRequest represents a rename and/or reparent request.
// ParentID is tri-state: absent = keep current parent, null = move to root,
// value = move under that category.
type UpdateCategoryRequest struct {
	Name        *string                 `json:"name,omitempty"`
	ParentID    httputil.OptionalString `json:"parent_id"`
	Description *string                 `json:"description,omitempty"`
	Icon        *string                 `json:"icon,omitempty"`
	Color       *string                 `json:"color,omitempty"`
}

// ListCategoriesRequest carries the listing filters and pagination
type ListCategoriesRequest struct {
	ParentID *string
	RootOnly bool
	Level    *int
	IsActive *bool
	Type     string
	Search   string
	Page     int
	Limit    int
}

// CategoryPage is one page of a category listing
type CategoryPage struct {
	Categories []models.Category `json:"categories"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// BulkCreateRequest is a batch of independent creation attempts
type BulkCreateRequest struct {
	Categories []CreateCategoryRequest `json:"categories"`
}

// BulkCreateError records one failed item of a bulk creation
type BulkCreateError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BulkCreateResult distinguishes requested from created counts; Errors holds
// one entry per failed item
type BulkCreateResult struct {
	Requested  int               `json:"requested"`
	Created    int               `json:"created"`
	Categories []models.Category `json:"categories"`
	Errors     []BulkCreateError `json:"errors,omitempty"`
}
