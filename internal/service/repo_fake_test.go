package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fintrack/internal/domain"
	"fintrack/internal/domain/models"
	"fintrack/internal/domain/repositories"
)

// fakeCategoryRepo is an in-memory CategoryRepository. It stores copies of
// every record so callers mutating a returned struct cannot bypass Update,
// mirroring how a real row store behaves.
type fakeCategoryRepo struct {
	categories map[string]models.Category
	nextID     int
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: make(map[string]models.Category)}
}

func (r *fakeCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	r.nextID++
	category.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", r.nextID)
	r.categories[category.ID] = *cloneCategory(category)
	return nil
}

func (r *fakeCategoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return cloneCategory(&c), nil
}

func (r *fakeCategoryRepo) Update(ctx context.Context, category *models.Category) error {
	existing, ok := r.categories[category.ID]
	if !ok || existing.UserID != category.UserID {
		return fmt.Errorf("category %s: %w", category.ID, domain.ErrNotFound)
	}
	r.categories[category.ID] = *cloneCategory(category)
	return nil
}

func (r *fakeCategoryRepo) FindByNameAndParent(ctx context.Context, userID, name string, parentID *string) (*models.Category, error) {
	for _, c := range r.categories {
		if c.UserID == userID && c.Name == name && sameRef(c.ParentID, parentID) {
			return cloneCategory(&c), nil
		}
	}
	return nil, nil
}

func (r *fakeCategoryRepo) ListChildren(ctx context.Context, userID string, parentID *string) ([]models.Category, error) {
	var children []models.Category
	for _, c := range r.categories {
		if c.UserID == userID && sameRef(c.ParentID, parentID) {
			children = append(children, *cloneCategory(&c))
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (r *fakeCategoryRepo) CountActiveChildren(ctx context.Context, userID, parentID string) (int, error) {
	count := 0
	for _, c := range r.categories {
		if c.UserID == userID && c.ParentID != nil && *c.ParentID == parentID && c.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *fakeCategoryRepo) List(ctx context.Context, userID string, filter repositories.CategoryFilter) ([]models.Category, int, error) {
	var matches []models.Category
	for _, c := range r.categories {
		if c.UserID != userID {
			continue
		}
		if filter.RootOnly && c.ParentID != nil {
			continue
		}
		if !filter.RootOnly && filter.ParentID != nil && !sameRef(c.ParentID, filter.ParentID) {
			continue
		}
		if filter.Level != nil && c.Level != *filter.Level {
			continue
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(c.Name), needle) &&
				!strings.Contains(strings.ToLower(c.Description), needle) {
				continue
			}
		}
		matches = append(matches, *cloneCategory(&c))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Level != matches[j].Level {
			return matches[i].Level < matches[j].Level
		}
		return matches[i].Name < matches[j].Name
	})

	total := len(matches)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (r *fakeCategoryRepo) ListAll(ctx context.Context, userID string) ([]models.Category, error) {
	var all []models.Category
	for _, c := range r.categories {
		if c.UserID == userID {
			all = append(all, *cloneCategory(&c))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Level != all[j].Level {
			return all[i].Level < all[j].Level
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func cloneCategory(c *models.Category) *models.Category {
	clone := *c
	if c.ParentID != nil {
		parentID := *c.ParentID
		clone.ParentID = &parentID
	}
	clone.Path = append([]string(nil), c.Path...)
	if c.DeletedAt != nil {
		deletedAt := *c.DeletedAt
		clone.DeletedAt = &deletedAt
	}
	return &clone
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
