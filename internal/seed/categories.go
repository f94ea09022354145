package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/domain/models"
	"fintrack/internal/domain/repositories"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultCategory is one node of the shipped default taxonomy
type DefaultCategory struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Icon        string            `yaml:"icon"`
	Color       string            `yaml:"color"`
	Children    []DefaultCategory `yaml:"children"`
}

// DefaultTaxonomy is the full default category set, split by type
type DefaultTaxonomy struct {
	Expense []DefaultCategory `yaml:"expense"`
	Income  []DefaultCategory `yaml:"income"`
}

// LoadDefaults parses the embedded default taxonomy
func LoadDefaults() (*DefaultTaxonomy, error) {
	var taxonomy DefaultTaxonomy
	if err := yaml.Unmarshal(defaultsYAML, &taxonomy); err != nil {
		return nil, fmt.Errorf("parse default categories: %w", err)
	}
	if len(taxonomy.Expense) == 0 && len(taxonomy.Income) == 0 {
		return nil, fmt.Errorf("default categories file is empty")
	}
	return &taxonomy, nil
}

// CategorySeeder installs the default system categories for a user.
// System categories are immutable through the normal API, so provisioning
// is the only place they are ever written.
type CategorySeeder struct {
	repo      repositories.CategoryRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewCategorySeeder creates a new category seeder
func NewCategorySeeder(
	repo repositories.CategoryRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *CategorySeeder {
	return &CategorySeeder{
		repo:      repo,
		txManager: txManager,
		logger:    logger,
	}
}

// SeedDefaults installs the embedded default taxonomy for userID inside one
// transaction. Idempotent per (user, parent, name): nodes that already exist
// are kept and only used as parents for their missing children. Returns the
// number of categories created.
func (s *CategorySeeder) SeedDefaults(ctx context.Context, userID string) (int, error) {
	taxonomy, err := LoadDefaults()
	if err != nil {
		return 0, err
	}

	created := 0
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		n, err := s.seedLevel(txCtx, userID, models.CategoryTypeExpense, nil, taxonomy.Expense)
		if err != nil {
			return err
		}
		created += n

		n, err = s.seedLevel(txCtx, userID, models.CategoryTypeIncome, nil, taxonomy.Income)
		if err != nil {
			return err
		}
		created += n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("default categories seeded",
		"user_id", userID,
		"created", created,
	)

	return created, nil
}

// seedLevel creates one sibling group under parent, then recurses into each
// node's children with that node as the parent.
func (s *CategorySeeder) seedLevel(ctx context.Context, userID, categoryType string, parent *models.Category, defaults []DefaultCategory) (int, error) {
	created := 0
	now := time.Now()

	for _, def := range defaults {
		var parentID *string
		level := 0
		path := []string{}
		if parent != nil {
			parentID = &parent.ID
			level = parent.Level + 1
			path = append(path, parent.Path...)
			path = append(path, parent.Name)
		}

		category, err := s.repo.FindByNameAndParent(ctx, userID, def.Name, parentID)
		if err != nil {
			return created, err
		}

		if category == nil {
			category = &models.Category{
				UserID:      userID,
				ParentID:    parentID,
				Name:        def.Name,
				Description: def.Description,
				Type:        categoryType,
				Icon:        def.Icon,
				Color:       def.Color,
				Level:       level,
				Path:        path,
				IsActive:    true,
				IsSystem:    true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.repo.Create(ctx, category); err != nil {
				return created, fmt.Errorf("seed category %q: %w", def.Name, err)
			}
			created++
		}

		n, err := s.seedLevel(ctx, userID, categoryType, category, def.Children)
		if err != nil {
			return created, err
		}
		created += n
	}

	return created, nil
}
