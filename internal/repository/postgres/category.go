package postgres

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/domain"
	"fintrack/internal/domain/models"
	"fintrack/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// categoryColumns is the column list shared by every SELECT in this file.
const categoryColumns = `id, user_id, parent_id, name, description, type, icon, color,
	level, path, is_active, is_system, deleted_at, created_at, updated_at`

// PostgresCategoryRepository implements the CategoryRepository interface
type PostgresCategoryRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(config *RepositoryConfig) repositories.CategoryRepository {
	return &PostgresCategoryRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create persists a new category and fills in its DB-assigned ID and timestamps
func (r *PostgresCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, parent_id, name, description, type, icon, color,
			level, path, is_active, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`, r.tables.Categories)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		category.UserID,
		category.ParentID,
		category.Name,
		category.Description,
		category.Type,
		category.Icon,
		category.Color,
		category.Level,
		category.Path,
		category.IsActive,
		category.IsSystem,
		category.CreatedAt,
		category.UpdatedAt,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("category %q already exists at this level", category.Name),
				ResourceType: "category",
			}
		}
		return fmt.Errorf("create category: %w", err)
	}

	return nil
}

// GetByID retrieves a category by ID without owner scoping
func (r *PostgresCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, categoryColumns, r.tables.Categories)

	row := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id)
	category, err := scanCategory(row)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

// Update persists the mutable fields of an existing category
func (r *PostgresCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, name = $2, description = $3, icon = $4, color = $5,
			level = $6, path = $7, is_active = $8, deleted_at = $9, updated_at = $10
		WHERE id = $11 AND user_id = $12
	`, r.tables.Categories)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		category.ParentID,
		category.Name,
		category.Description,
		category.Icon,
		category.Color,
		category.Level,
		category.Path,
		category.IsActive,
		category.DeletedAt,
		category.UpdatedAt,
		category.ID,
		category.UserID,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("category %q already exists at this level", category.Name),
				ResourceType: "category",
			}
		}
		return fmt.Errorf("update category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("category %s: %w", category.ID, domain.ErrNotFound)
	}

	return nil
}

// FindByNameAndParent finds the sibling with the given name under the given
// parent, active or not. Returns (nil, nil) when no such sibling exists.
func (r *PostgresCategoryRepository) FindByNameAndParent(ctx context.Context, userID, name string, parentID *string) (*models.Category, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE user_id = $1 AND name = $2 AND parent_id IS NULL
		`, categoryColumns, r.tables.Categories)
		args = append(args, userID, name)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE user_id = $1 AND name = $2 AND parent_id = $3
		`, categoryColumns, r.tables.Categories)
		args = append(args, userID, name, *parentID)
	}

	row := GetExecutor(ctx, r.pool).QueryRow(ctx, query, args...)
	category, err := scanCategory(row)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, nil // Not found, not an error
		}
		return nil, fmt.Errorf("get category by name and parent: %w", err)
	}

	return category, nil
}

// ListChildren lists the immediate children of a category, including
// soft-deleted ones. A nil parentID lists root categories.
func (r *PostgresCategoryRepository) ListChildren(ctx context.Context, userID string, parentID *string) ([]models.Category, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE user_id = $1 AND parent_id IS NULL
			ORDER BY name ASC
		`, categoryColumns, r.tables.Categories)
		args = append(args, userID)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE user_id = $1 AND parent_id = $2
			ORDER BY name ASC
		`, categoryColumns, r.tables.Categories)
		args = append(args, userID, *parentID)
	}

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list category children: %w", err)
	}
	defer rows.Close()

	return collectCategories(rows)
}

// CountActiveChildren counts active categories whose parent is the given category
func (r *PostgresCategoryRepository) CountActiveChildren(ctx context.Context, userID, parentID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s
		WHERE user_id = $1 AND parent_id = $2 AND is_active = TRUE
	`, r.tables.Categories)

	var count int
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, userID, parentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active children: %w", err)
	}

	return count, nil
}

// List returns one page of categories matching the filter, ordered by
// (level ASC, name ASC), along with the total match count
func (r *PostgresCategoryRepository) List(ctx context.Context, userID string, filter repositories.CategoryFilter) ([]models.Category, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.RootOnly {
		conditions = append(conditions, "parent_id IS NULL")
	} else if filter.ParentID != nil {
		args = append(args, *filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)))
	}

	if filter.Level != nil {
		args = append(args, *filter.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}

	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")

	// COUNT(*) OVER() avoids a second round-trip for the total
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM %s
		WHERE %s
		ORDER BY level ASC, name ASC
		LIMIT $%d OFFSET $%d
	`, categoryColumns, r.tables.Categories, where, len(args)-1, len(args))

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	var total int
	for rows.Next() {
		var c models.Category
		err := rows.Scan(
			&c.ID, &c.UserID, &c.ParentID, &c.Name, &c.Description, &c.Type,
			&c.Icon, &c.Color, &c.Level, &c.Path, &c.IsActive, &c.IsSystem,
			&c.DeletedAt, &c.CreatedAt, &c.UpdatedAt, &total,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate categories: %w", err)
	}

	// An empty page beyond the last one still needs the real total
	if categories == nil && filter.Page > 1 {
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, r.tables.Categories, where)
		if err := GetExecutor(ctx, r.pool).QueryRow(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count categories: %w", err)
		}
	}

	return categories, total, nil
}

// ListAll retrieves every category belonging to a user (flat list)
func (r *PostgresCategoryRepository) ListAll(ctx context.Context, userID string) ([]models.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1
		ORDER BY level ASC, name ASC
	`, categoryColumns, r.tables.Categories)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list all categories: %w", err)
	}
	defer rows.Close()

	return collectCategories(rows)
}

// scanCategory scans a single category row
func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	err := row.Scan(
		&c.ID, &c.UserID, &c.ParentID, &c.Name, &c.Description, &c.Type,
		&c.Icon, &c.Color, &c.Level, &c.Path, &c.IsActive, &c.IsSystem,
		&c.DeletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// collectCategories drains rows produced by a categoryColumns SELECT
func collectCategories(rows pgx.Rows) ([]models.Category, error) {
	var categories []models.Category
	for rows.Next() {
		var c models.Category
		err := rows.Scan(
			&c.ID, &c.UserID, &c.ParentID, &c.Name, &c.Description, &c.Type,
			&c.Icon, &c.Color, &c.Level, &c.Path, &c.IsActive, &c.IsSystem,
			&c.DeletedAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}
