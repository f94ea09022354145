package models

import (
	"time"
)

// Category types. Every category classifies either spending or income;
// the tree operations never branch on this, it only matters for listing
// and for the default taxonomy the seeder installs.
const (
	CategoryTypeExpense = "expense"
	CategoryTypeIncome  = "income"
)

// Category is a node in a per-user classification tree for transactions
// and budgets.
//
// Level and Path are denormalized: Level is the number of ancestors
// (root = 0) and Path is the ordered list of ancestor names from root to
// immediate parent, exclusive of the category's own name. Both are kept
// consistent by the category service on every structural write.
type Category struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	ParentID    *string    `json:"parent_id" db:"parent_id"` // NULL = root category
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	Type        string     `json:"type" db:"type"`
	Icon        string     `json:"icon,omitempty" db:"icon"`
	Color       string     `json:"color,omitempty" db:"color"`
	Level       int        `json:"level" db:"level"`
	Path        []string   `json:"path" db:"path"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	IsSystem    bool       `json:"is_system" db:"is_system"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// CategoryTreeNode is a category with its children nested, as returned by
// the tree endpoint. Children are pointers so nesting links stay live while
// the tree is being assembled.
type CategoryTreeNode struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Type     string              `json:"type"`
	Icon     string              `json:"icon,omitempty"`
	Color    string              `json:"color,omitempty"`
	ParentID *string             `json:"parent_id"`
	Level    int                 `json:"level"`
	Path     []string            `json:"path"`
	IsActive bool                `json:"is_active"`
	IsSystem bool                `json:"is_system"`
	Children []*CategoryTreeNode `json:"children"`
}

// CategoryTree is the nested forest rooted at the parentless categories of
// one user.
type CategoryTree struct {
	Categories []*CategoryTreeNode `json:"categories"`
	Total      int                 `json:"total"`
}
