package repositories

import (
	"context"

	"fintrack/internal/domain/models"
)

// CategoryFilter narrows a paginated category listing. Zero values mean
// "no filter" except RootOnly, which explicitly selects parentless
// categories (a nil ParentID alone cannot express that).
type CategoryFilter struct {
	ParentID *string
	RootOnly bool
	Level    *int
	IsActive *bool
	Type     string
	Search   string // case-insensitive substring over name and description
	Page     int    // 1-based
	Limit    int
}

// CategoryRepository defines data access operations for categories.
// Point reads and single-row writes are assumed linearizable; nothing here
// implies multi-row atomicity unless the caller wraps the context in a
// transaction via TransactionManager.
type CategoryRepository interface {
	// Create persists a new category and fills in its DB-assigned ID and
	// timestamps
	Create(ctx context.Context, category *models.Category) error

	// GetByID retrieves a category by ID without owner scoping. The service
	// layer compares owners itself so it can distinguish "not found" from
	// "owned by someone else".
	GetByID(ctx context.Context, id string) (*models.Category, error)

	// Update persists the mutable fields of an existing category
	Update(ctx context.Context, category *models.Category) error

	// FindByNameAndParent finds the sibling with the given name under the
	// given parent (nil = root), active or not. Returns (nil, nil) when no
	// such sibling exists.
	FindByNameAndParent(ctx context.Context, userID, name string, parentID *string) (*models.Category, error)

	// ListChildren lists the immediate children of a category, including
	// soft-deleted ones. A nil parentID lists root categories.
	ListChildren(ctx context.Context, userID string, parentID *string) ([]models.Category, error)

	// CountActiveChildren counts active categories whose parent is the given
	// category
	CountActiveChildren(ctx context.Context, userID, parentID string) (int, error)

	// List returns one page of categories matching the filter, ordered by
	// (level ASC, name ASC), along with the total match count
	List(ctx context.Context, userID string, filter CategoryFilter) ([]models.Category, int, error)

	// ListAll retrieves every category belonging to a user (flat list)
	ListAll(ctx context.Context, userID string) ([]models.Category, error)
}
