package service

import (
	"context"
	"log/slog"

	"fintrack/internal/domain/models"
	"fintrack/internal/domain/repositories"
	"fintrack/internal/domain/services"
)

// treeService implements the CategoryTreeService interface
type treeService struct {
	repo   repositories.CategoryRepository
	logger *slog.Logger
}

// NewCategoryTreeService creates a new category tree service
func NewCategoryTreeService(repo repositories.CategoryRepository, logger *slog.Logger) services.CategoryTreeService {
	return &treeService{
		repo:   repo,
		logger: logger,
	}
}

// GetCategoryTree builds the nested category forest for a user using a
// two-pass algorithm: one pass creates an id->node map, a second links each
// node to its parent's children list (or to the root list when parentless).
// Linking never follows parent pointers transitively, so defective data
// containing a cycle degrades into unreachable nodes instead of a loop.
func (s *treeService) GetCategoryTree(ctx context.Context, userID string) (*models.CategoryTree, error) {
	categories, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	// First pass: create all nodes
	nodeMap := make(map[string]*models.CategoryTreeNode, len(categories))
	for _, c := range categories {
		nodeMap[c.ID] = &models.CategoryTreeNode{
			ID:       c.ID,
			Name:     c.Name,
			Type:     c.Type,
			Icon:     c.Icon,
			Color:    c.Color,
			ParentID: c.ParentID,
			Level:    c.Level,
			Path:     c.Path,
			IsActive: c.IsActive,
			IsSystem: c.IsSystem,
			Children: []*models.CategoryTreeNode{},
		}
	}

	// Second pass: link children to parents, collect roots in input order
	// (level ASC, name ASC from the repository) so two reads without
	// intervening writes yield structurally identical trees
	roots := make([]*models.CategoryTreeNode, 0)
	for _, c := range categories {
		node := nodeMap[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, exists := nodeMap[*c.ParentID]; exists {
			parent.Children = append(parent.Children, node)
		}
	}

	s.logger.Debug("category tree built",
		"user_id", userID,
		"category_count", len(categories),
	)

	return &models.CategoryTree{
		Categories: roots,
		Total:      len(categories),
	}, nil
}
