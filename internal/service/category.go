package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/domain"
	"fintrack/internal/domain/models"
	"fintrack/internal/domain/repositories"
	"fintrack/internal/domain/services"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// categoryService owns the category tree invariants: ownership closure,
// acyclicity, depth/path consistency and sibling-name uniqueness. All of
// them are enforced here rather than in the repository so the persistence
// layer stays a plain record store.
//
// Consistency note: the duplicate-name and cycle guards are check-then-act
// over individual reads and writes. Two concurrent updates touching the
// same subtree can interleave between check and persist; that race is
// accepted (see DESIGN.md) and the service holds no subtree lock.
type categoryService struct {
	repo   repositories.CategoryRepository
	logger *slog.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(repo repositories.CategoryRepository, logger *slog.Logger) services.CategoryService {
	return &categoryService{
		repo:   repo,
		logger: logger,
	}
}

// CreateCategory creates a new category, at the root or under an existing
// parent owned by the same user.
func (s *categoryService) CreateCategory(ctx context.Context, userID string, req *services.CreateCategoryRequest) (*models.Category, error) {
	// Normalize empty string to nil for root-level categories
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Type == "" {
		req.Type = models.CategoryTypeExpense
	}

	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Derive level and path from the parent, if any
	// Root categories carry an empty (never nil) path so the persisted
	// text[] column and the JSON rendering both stay []
	level := 0
	path := []string{}
	if req.ParentID != nil {
		parent, err := s.resolveParent(ctx, userID, *req.ParentID)
		if err != nil {
			return nil, err
		}
		level = parent.Level + 1
		path = childPath(parent)

		if level >= config.MaxTreeDepth {
			return nil, fmt.Errorf("%w: category nesting exceeds %d levels", domain.ErrValidation, config.MaxTreeDepth)
		}
	}

	// Sibling-name uniqueness covers soft-deleted siblings too, so a
	// reactivated or restored category never collides
	existing, err := s.repo.FindByNameAndParent(ctx, userID, req.Name, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate names: %w", err)
	}
	if existing != nil {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("a category named %q already exists at this level", req.Name),
			ResourceType: "category",
			ResourceID:   existing.ID,
		}
	}

	now := time.Now()
	category := &models.Category{
		UserID:      userID,
		ParentID:    req.ParentID,
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Icon:        req.Icon,
		Color:       req.Color,
		Level:       level,
		Path:        path,
		IsActive:    true,
		IsSystem:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("category created",
		"id", category.ID,
		"name", category.Name,
		"user_id", userID,
		"parent_id", category.ParentID,
		"level", category.Level,
	)

	return category, nil
}

// GetCategory retrieves a category, enforcing ownership. A category that
// exists but belongs to someone else is reported as forbidden, not as
// missing; every mutation below goes through the same check.
func (s *categoryService) GetCategory(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	if category.UserID != userID {
		return nil, fmt.Errorf("access denied to category %s: %w", categoryID, domain.ErrForbidden)
	}

	return category, nil
}

// UpdateCategory renames and/or reparents a category. Any change to the name
// or the parent invalidates the denormalized level/path of every descendant,
// so both paths end in the same cascade.
func (s *categoryService) UpdateCategory(ctx context.Context, userID, categoryID string, req *services.UpdateCategoryRequest) (*models.Category, error) {
	category, err := s.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}

	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// System-provisioned categories keep their name and position
	if category.IsSystem && (req.Name != nil || req.ParentID.Present) {
		return nil, fmt.Errorf("category %s: %w", categoryID, domain.ErrSystemCategory)
	}

	nameChanged := false
	if req.Name != nil {
		newName := strings.TrimSpace(*req.Name)
		nameChanged = newName != category.Name
		category.Name = newName
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.Icon != nil {
		category.Icon = *req.Icon
	}
	if req.Color != nil {
		category.Color = *req.Color
	}

	// Tri-state: only move the category if the field was present in the
	// request. null moves it to the root.
	parentChanged := false
	if req.ParentID.Present && !sameParent(category.ParentID, req.ParentID.Value) {
		parentChanged = true
		if req.ParentID.Value != nil {
			parent, err := s.resolveParent(ctx, userID, *req.ParentID.Value)
			if err != nil {
				return nil, err
			}

			// Reparenting under the target's own subtree would orphan it
			// into a cycle and break every depth/path computation
			if err := s.checkCircularReference(ctx, category.ID, parent); err != nil {
				return nil, err
			}

			category.ParentID = &parent.ID
			category.Level = parent.Level + 1
			category.Path = childPath(parent)

			if category.Level >= config.MaxTreeDepth {
				return nil, fmt.Errorf("%w: category nesting exceeds %d levels", domain.ErrValidation, config.MaxTreeDepth)
			}
		} else {
			category.ParentID = nil
			category.Level = 0
			category.Path = []string{}
		}
	}

	// Duplicate check at the resulting parent (excluding the target itself)
	if nameChanged || parentChanged {
		existing, err := s.repo.FindByNameAndParent(ctx, userID, category.Name, category.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicate names: %w", err)
		}
		if existing != nil && existing.ID != category.ID {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("a category named %q already exists at this level", category.Name),
				ResourceType: "category",
				ResourceID:   existing.ID,
			}
		}
	}

	category.UpdatedAt = time.Now()

	// The target is persisted before any descendant so a reader never sees
	// a cascaded child pointing at stale parent state
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, err
	}

	if nameChanged || parentChanged {
		if err := s.cascadeSubtree(ctx, category); err != nil {
			return nil, err
		}
	}

	s.logger.Info("category updated",
		"id", category.ID,
		"name", category.Name,
		"user_id", userID,
		"parent_id", category.ParentID,
		"level", category.Level,
		"cascaded", nameChanged || parentChanged,
	)

	return category, nil
}

// DeleteCategory soft-deletes a category. The record keeps its position in
// the tree; only active listings stop showing it.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	category, err := s.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return err
	}

	if category.IsSystem {
		return fmt.Errorf("category %s: %w", categoryID, domain.ErrSystemCategory)
	}

	activeChildren, err := s.repo.CountActiveChildren(ctx, userID, categoryID)
	if err != nil {
		return err
	}
	if activeChildren > 0 {
		return fmt.Errorf("category %s has %d active children: %w", categoryID, activeChildren, domain.ErrHasActiveChildren)
	}

	now := time.Now()
	category.IsActive = false
	category.DeletedAt = &now
	category.UpdatedAt = now

	if err := s.repo.Update(ctx, category); err != nil {
		return err
	}

	s.logger.Info("category deleted",
		"id", categoryID,
		"name", category.Name,
		"user_id", userID,
	)

	return nil
}

// ListCategories returns one page of the user's categories. The
// (level ASC, name ASC) order makes the flat page directly renderable as an
// indented tree listing.
func (s *categoryService) ListCategories(ctx context.Context, userID string, req *services.ListCategoriesRequest) (*services.CategoryPage, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}

	filter := repositories.CategoryFilter{
		ParentID: req.ParentID,
		RootOnly: req.RootOnly,
		Level:    req.Level,
		IsActive: req.IsActive,
		Type:     req.Type,
		Search:   strings.TrimSpace(req.Search),
		Page:     page,
		Limit:    limit,
	}

	categories, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []models.Category{}
	}

	return &services.CategoryPage{
		Categories: categories,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// BulkCreateCategories attempts each item independently; one failing item
// never aborts the batch.
func (s *categoryService) BulkCreateCategories(ctx context.Context, userID string, req *services.BulkCreateRequest) (*services.BulkCreateResult, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("%w: categories must not be empty", domain.ErrValidation)
	}
	if len(req.Categories) > config.MaxBulkCreateItems {
		return nil, fmt.Errorf("%w: at most %d categories per batch", domain.ErrValidation, config.MaxBulkCreateItems)
	}

	result := &services.BulkCreateResult{
		Requested:  len(req.Categories),
		Categories: []models.Category{},
	}

	for i := range req.Categories {
		item := req.Categories[i]
		category, err := s.CreateCategory(ctx, userID, &item)
		if err != nil {
			result.Errors = append(result.Errors, services.BulkCreateError{
				Index: i,
				Name:  item.Name,
				Error: err.Error(),
			})
			continue
		}
		result.Created++
		result.Categories = append(result.Categories, *category)
	}

	s.logger.Info("bulk category creation finished",
		"user_id", userID,
		"requested", result.Requested,
		"created", result.Created,
	)

	return result, nil
}

// resolveParent loads and ownership-checks a prospective parent. A missing
// parent and a cross-owner parent are indistinguishable to the caller.
func (s *categoryService) resolveParent(ctx context.Context, userID, parentID string) (*models.Category, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("parent category %s: %w", parentID, domain.ErrParentNotFound)
		}
		return nil, err
	}
	if parent.UserID != userID {
		return nil, fmt.Errorf("parent category %s: %w", parentID, domain.ErrParentNotFound)
	}
	return parent, nil
}

// checkCircularReference walks the new parent's ancestor chain; if the
// category being moved appears anywhere in it (including the new parent
// itself), the move would make the category its own descendant. The walk is
// bounded by the visited set, so even corrupted data cannot loop it.
func (s *categoryService) checkCircularReference(ctx context.Context, categoryID string, newParent *models.Category) error {
	if newParent.ID == categoryID {
		return fmt.Errorf("cannot move a category under itself: %w", domain.ErrCircularReference)
	}

	visited := map[string]bool{newParent.ID: true}
	current := newParent
	for current.ParentID != nil {
		ancestorID := *current.ParentID
		if ancestorID == categoryID {
			return fmt.Errorf("cannot move a category under its own descendant: %w", domain.ErrCircularReference)
		}
		if visited[ancestorID] {
			break
		}
		visited[ancestorID] = true

		ancestor, err := s.repo.GetByID(ctx, ancestorID)
		if err != nil {
			return err
		}
		current = ancestor
	}

	return nil
}

// cascadeSubtree recomputes level and path for every descendant of root,
// breadth-first over parent->children queries. Soft-deleted descendants are
// included: they keep their tree position and their denormalized ancestry
// must stay consistent too. Each node is visited exactly once because the
// tree is acyclic.
func (s *categoryService) cascadeSubtree(ctx context.Context, root *models.Category) error {
	now := time.Now()
	worklist := []*models.Category{root}

	for len(worklist) > 0 {
		parent := worklist[0]
		worklist = worklist[1:]

		children, err := s.repo.ListChildren(ctx, parent.UserID, &parent.ID)
		if err != nil {
			return fmt.Errorf("cascade: list children of %s: %w", parent.ID, err)
		}

		for i := range children {
			child := &children[i]
			child.Level = parent.Level + 1
			child.Path = childPath(parent)
			child.UpdatedAt = now

			if err := s.repo.Update(ctx, child); err != nil {
				return fmt.Errorf("cascade: update %s: %w", child.ID, err)
			}
			worklist = append(worklist, child)
		}
	}

	return nil
}

// childPath builds the path a child of parent carries: the parent's path
// plus the parent's own name. Always a fresh slice so cascaded siblings
// never share backing arrays.
func childPath(parent *models.Category) []string {
	path := make([]string, 0, len(parent.Path)+1)
	path = append(path, parent.Path...)
	return append(path, parent.Name)
}

// sameParent compares two nullable parent references
func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// validateCreateRequest validates a category creation request
func (s *categoryService) validateCreateRequest(req *services.CreateCategoryRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxCategoryNameLength),
		),
		validation.Field(&req.Type,
			validation.In(models.CategoryTypeExpense, models.CategoryTypeIncome),
		),
		validation.Field(&req.Description,
			validation.Length(0, config.MaxCategoryDescriptionLength),
		),
	)
}

// validateUpdateRequest validates a category update request
func (s *categoryService) validateUpdateRequest(req *services.UpdateCategoryRequest) error {
	// At least one field must be provided
	if req.Name == nil && !req.ParentID.Present && req.Description == nil && req.Icon == nil && req.Color == nil {
		return fmt.Errorf("at least one field must be provided")
	}

	rules := []*validation.FieldRules{}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return fmt.Errorf("name must not be blank")
		}
		rules = append(rules,
			validation.Field(&req.Name,
				validation.Length(1, config.MaxCategoryNameLength),
			),
		)
	}

	if req.Description != nil {
		rules = append(rules,
			validation.Field(&req.Description,
				validation.Length(0, config.MaxCategoryDescriptionLength),
			),
		)
	}

	if len(rules) == 0 {
		return nil
	}
	return validation.ValidateStruct(req, rules...)
}
