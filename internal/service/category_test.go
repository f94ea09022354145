package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/domain"
	"fintrack/internal/domain/services"
	"fintrack/internal/httputil"
)

const (
	testUser  = "11111111-1111-1111-1111-111111111111"
	otherUser = "22222222-2222-2222-2222-222222222222"
)

func newTestService(t *testing.T) (services.CategoryService, *fakeCategoryRepo) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := newFakeCategoryRepo()
	return NewCategoryService(repo, logger), repo
}

func mustCreate(t *testing.T, svc services.CategoryService, userID, name string, parentID *string) string {
	t.Helper()
	category, err := svc.CreateCategory(context.Background(), userID, &services.CreateCategoryRequest{
		Name:     name,
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("CreateCategory(%q) failed: %v", name, err)
	}
	return category.ID
}

func TestCreateCategory_Root(t *testing.T) {
	svc, _ := newTestService(t)

	category, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name: "Food",
	})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	if category.Level != 0 {
		t.Errorf("expected level 0, got %d", category.Level)
	}
	if len(category.Path) != 0 {
		t.Errorf("expected empty path, got %v", category.Path)
	}
	if category.Path == nil {
		t.Error("expected empty path, got nil")
	}
	if !category.IsActive {
		t.Error("expected new category to be active")
	}
	if category.IsSystem {
		t.Error("expected new category not to be system")
	}
	if category.Type != "expense" {
		t.Errorf("expected default type expense, got %q", category.Type)
	}
}

func TestCreateCategory_Child(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)

	category, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name:     "Groceries",
		ParentID: &foodID,
	})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	if category.Level != 1 {
		t.Errorf("expected level 1, got %d", category.Level)
	}
	if len(category.Path) != 1 || category.Path[0] != "Food" {
		t.Errorf("expected path [Food], got %v", category.Path)
	}
}

func TestCreateCategory_DuplicateName(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	mustCreate(t, svc, testUser, "Groceries", &foodID)

	_, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name:     "Groceries",
		ParentID: &foodID,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var conflictErr *domain.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %T", err)
	}
	if conflictErr.ResourceID == "" {
		t.Error("expected conflict to carry the existing category ID")
	}
}

func TestCreateCategory_DuplicateIncludesInactive(t *testing.T) {
	svc, _ := newTestService(t)
	id := mustCreate(t, svc, testUser, "Temp", nil)

	if err := svc.DeleteCategory(context.Background(), testUser, id); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	// Sibling uniqueness covers soft-deleted records too
	_, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name: "Temp",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict against soft-deleted sibling, got %v", err)
	}
}

func TestCreateCategory_SameNameDifferentParents(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	travelID := mustCreate(t, svc, testUser, "Travel", nil)

	mustCreate(t, svc, testUser, "Other", &foodID)
	mustCreate(t, svc, testUser, "Other", &travelID)
	mustCreate(t, svc, testUser, "Other", nil)
}

func TestCreateCategory_ParentNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	missing := "00000000-0000-0000-0000-000000000999"

	_, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name:     "Groceries",
		ParentID: &missing,
	})
	if !errors.Is(err, domain.ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
}

func TestCreateCategory_CrossOwnerParent(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, otherUser, "Food", nil)

	// A parent owned by someone else is reported exactly like a missing one
	_, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name:     "Groceries",
		ParentID: &foodID,
	})
	if !errors.Is(err, domain.ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound for cross-owner parent, got %v", err)
	}
}

func TestCreateCategory_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name: "   ",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank name, got %v", err)
	}

	_, err = svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name: "Food",
		Type: "savings",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
}

func TestCreateCategory_DepthLimit(t *testing.T) {
	svc, _ := newTestService(t)

	var parentID *string
	for i := 0; i < config.MaxTreeDepth; i++ {
		id := mustCreate(t, svc, testUser, fmt.Sprintf("Level %d", i), parentID)
		parentID = &id
	}

	_, err := svc.CreateCategory(context.Background(), testUser, &services.CreateCategoryRequest{
		Name:     "Too Deep",
		ParentID: parentID,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation at depth %d, got %v", config.MaxTreeDepth, err)
	}
}

func TestGetCategory_NotFoundVsAccessDenied(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)

	_, err := svc.GetCategory(context.Background(), testUser, "00000000-0000-0000-0000-000000000999")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = svc.GetCategory(context.Background(), otherUser, foodID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign category, got %v", err)
	}
}

func TestUpdateCategory_RenameCascadesPaths(t *testing.T) {
	svc, repo := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	groceriesID := mustCreate(t, svc, testUser, "Groceries", &foodID)
	dairyID := mustCreate(t, svc, testUser, "Dairy", &groceriesID)

	newName := "Nutrition"
	updated, err := svc.UpdateCategory(context.Background(), testUser, foodID, &services.UpdateCategoryRequest{
		Name: &newName,
	})
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}
	if updated.Name != "Nutrition" {
		t.Errorf("expected renamed category, got %q", updated.Name)
	}

	groceries, _ := repo.GetByID(context.Background(), groceriesID)
	if len(groceries.Path) != 1 || groceries.Path[0] != "Nutrition" {
		t.Errorf("expected child path [Nutrition], got %v", groceries.Path)
	}
	if groceries.Level != 1 {
		t.Errorf("expected child level 1, got %d", groceries.Level)
	}

	dairy, _ := repo.GetByID(context.Background(), dairyID)
	if len(dairy.Path) != 2 || dairy.Path[0] != "Nutrition" || dairy.Path[1] != "Groceries" {
		t.Errorf("expected grandchild path [Nutrition Groceries], got %v", dairy.Path)
	}
	if dairy.Level != 2 {
		t.Errorf("expected grandchild level 2, got %d", dairy.Level)
	}
}

func TestUpdateCategory_ReparentCascadesSubtree(t *testing.T) {
	svc, repo := newTestService(t)
	oldRootID := mustCreate(t, svc, testUser, "Old Root", nil)
	newRootID := mustCreate(t, svc, testUser, "New Root", nil)
	midID := mustCreate(t, svc, testUser, "Mid", &oldRootID)
	leafID := mustCreate(t, svc, testUser, "Leaf", &midID)

	moved, err := svc.UpdateCategory(context.Background(), testUser, midID, &services.UpdateCategoryRequest{
		ParentID: httputil.OptionalString{Present: true, Value: &newRootID},
	})
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}

	if moved.Level != 1 {
		t.Errorf("expected moved level 1, got %d", moved.Level)
	}
	if len(moved.Path) != 1 || moved.Path[0] != "New Root" {
		t.Errorf("expected moved path [New Root], got %v", moved.Path)
	}

	leaf, _ := repo.GetByID(context.Background(), leafID)
	if leaf.Level != 2 {
		t.Errorf("expected leaf level 2, got %d", leaf.Level)
	}
	if len(leaf.Path) != 2 || leaf.Path[0] != "New Root" || leaf.Path[1] != "Mid" {
		t.Errorf("expected leaf path [New Root Mid], got %v", leaf.Path)
	}
}

func TestUpdateCategory_MoveToRoot(t *testing.T) {
	svc, repo := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	groceriesID := mustCreate(t, svc, testUser, "Groceries", &foodID)
	dairyID := mustCreate(t, svc, testUser, "Dairy", &groceriesID)

	// null parent moves the category to the root
	moved, err := svc.UpdateCategory(context.Background(), testUser, groceriesID, &services.UpdateCategoryRequest{
		ParentID: httputil.OptionalString{Present: true, Value: nil},
	})
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}

	if moved.ParentID != nil || moved.Level != 0 || len(moved.Path) != 0 {
		t.Errorf("expected root category, got parent=%v level=%d path=%v", moved.ParentID, moved.Level, moved.Path)
	}

	dairy, _ := repo.GetByID(context.Background(), dairyID)
	if dairy.Level != 1 || len(dairy.Path) != 1 || dairy.Path[0] != "Groceries" {
		t.Errorf("expected cascaded child at level 1 path [Groceries], got level=%d path=%v", dairy.Level, dairy.Path)
	}
}

func TestUpdateCategory_CircularReference(t *testing.T) {
	svc, repo := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	groceriesID := mustCreate(t, svc, testUser, "Groceries", &foodID)
	dairyID := mustCreate(t, svc, testUser, "Dairy", &groceriesID)

	// Moving Food under its own grandchild must fail
	_, err := svc.UpdateCategory(context.Background(), testUser, foodID, &services.UpdateCategoryRequest{
		ParentID: httputil.OptionalString{Present: true, Value: &dairyID},
	})
	if !errors.Is(err, domain.ErrCircularReference) {
		t.Fatalf("expected ErrCircularReference, got %v", err)
	}

	// Moving a category under itself must fail too
	_, err = svc.UpdateCategory(context.Background(), testUser, foodID, &services.UpdateCategoryRequest{
		ParentID: httputil.OptionalString{Present: true, Value: &foodID},
	})
	if !errors.Is(err, domain.ErrCircularReference) {
		t.Fatalf("expected ErrCircularReference for self-parent, got %v", err)
	}

	// The tree is unchanged after the rejected moves
	food, _ := repo.GetByID(context.Background(), foodID)
	if food.ParentID != nil || food.Level != 0 {
		t.Errorf("expected Food unchanged at root, got parent=%v level=%d", food.ParentID, food.Level)
	}
	groceries, _ := repo.GetByID(context.Background(), groceriesID)
	if groceries.ParentID == nil || *groceries.ParentID != foodID {
		t.Errorf("expected Groceries still under Food")
	}
}

func TestUpdateCategory_DuplicateAtNewParent(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	travelID := mustCreate(t, svc, testUser, "Travel", nil)
	otherUnderFoodID := mustCreate(t, svc, testUser, "Other", &foodID)
	mustCreate(t, svc, testUser, "Other", &travelID)

	_, err := svc.UpdateCategory(context.Background(), testUser, otherUnderFoodID, &services.UpdateCategoryRequest{
		ParentID: httputil.OptionalString{Present: true, Value: &travelID},
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict at new parent, got %v", err)
	}
}

func TestUpdateCategory_RenameToSameNameIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)

	name := "Food"
	updated, err := svc.UpdateCategory(context.Background(), testUser, foodID, &services.UpdateCategoryRequest{
		Name: &name,
	})
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}
	if updated.Name != "Food" {
		t.Errorf("expected name unchanged, got %q", updated.Name)
	}
}

func TestUpdateCategory_SystemImmutable(t *testing.T) {
	svc, repo := newTestService(t)
	id := mustCreate(t, svc, testUser, "Salary", nil)

	// Mark as system-provisioned behind the service's back
	c, _ := repo.GetByID(context.Background(), id)
	c.IsSystem = true
	if err := repo.Update(context.Background(), c); err != nil {
		t.Fatalf("fake update failed: %v", err)
	}

	newName := "Wages"
	_, err := svc.UpdateCategory(context.Background(), testUser, id, &services.UpdateCategoryRequest{
		Name: &newName,
	})
	if !errors.Is(err, domain.ErrSystemCategory) {
		t.Fatalf("expected ErrSystemCategory on rename, got %v", err)
	}

	if err := svc.DeleteCategory(context.Background(), testUser, id); !errors.Is(err, domain.ErrSystemCategory) {
		t.Fatalf("expected ErrSystemCategory on delete, got %v", err)
	}

	// Cosmetic fields stay editable on system categories
	desc := "Monthly pay"
	updated, err := svc.UpdateCategory(context.Background(), testUser, id, &services.UpdateCategoryRequest{
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("expected description update to succeed, got %v", err)
	}
	if updated.Description != "Monthly pay" {
		t.Errorf("expected description updated, got %q", updated.Description)
	}
}

func TestDeleteCategory_BlockedByActiveChildren(t *testing.T) {
	svc, repo := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	groceriesID := mustCreate(t, svc, testUser, "Groceries", &foodID)

	err := svc.DeleteCategory(context.Background(), testUser, foodID)
	if !errors.Is(err, domain.ErrHasActiveChildren) {
		t.Fatalf("expected ErrHasActiveChildren, got %v", err)
	}

	// Leaf-first deletion succeeds
	if err := svc.DeleteCategory(context.Background(), testUser, groceriesID); err != nil {
		t.Fatalf("DeleteCategory(child) failed: %v", err)
	}
	if err := svc.DeleteCategory(context.Background(), testUser, foodID); err != nil {
		t.Fatalf("DeleteCategory(parent) failed: %v", err)
	}

	// Soft delete keeps both records and their tree positions
	food, _ := repo.GetByID(context.Background(), foodID)
	if food.IsActive || food.DeletedAt == nil {
		t.Error("expected parent soft-deleted")
	}
	groceries, _ := repo.GetByID(context.Background(), groceriesID)
	if groceries.IsActive || groceries.DeletedAt == nil {
		t.Error("expected child soft-deleted")
	}
	if groceries.ParentID == nil || *groceries.ParentID != foodID {
		t.Error("expected soft-deleted child to keep its parent reference")
	}
}

func TestCascadeIncludesSoftDeletedDescendants(t *testing.T) {
	svc, repo := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	groceriesID := mustCreate(t, svc, testUser, "Groceries", &foodID)

	if err := svc.DeleteCategory(context.Background(), testUser, groceriesID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	newName := "Nutrition"
	if _, err := svc.UpdateCategory(context.Background(), testUser, foodID, &services.UpdateCategoryRequest{
		Name: &newName,
	}); err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}

	// The soft-deleted child kept its position, so its path cascades too
	groceries, _ := repo.GetByID(context.Background(), groceriesID)
	if len(groceries.Path) != 1 || groceries.Path[0] != "Nutrition" {
		t.Errorf("expected soft-deleted child path [Nutrition], got %v", groceries.Path)
	}
}

func TestListCategories_OrderAndPagination(t *testing.T) {
	svc, _ := newTestService(t)
	bID := mustCreate(t, svc, testUser, "Bills", nil)
	aID := mustCreate(t, svc, testUser, "Auto", nil)
	mustCreate(t, svc, testUser, "Insurance", &bID)
	mustCreate(t, svc, testUser, "Fuel", &aID)

	page, err := svc.ListCategories(context.Background(), testUser, &services.ListCategoriesRequest{
		Page:  1,
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}

	if page.Total != 4 {
		t.Errorf("expected total 4, got %d", page.Total)
	}
	if page.TotalPages != 2 {
		t.Errorf("expected 2 pages, got %d", page.TotalPages)
	}
	if len(page.Categories) != 3 {
		t.Fatalf("expected 3 items on page 1, got %d", len(page.Categories))
	}

	// level ASC then name ASC: roots first, alphabetical within a level
	got := []string{page.Categories[0].Name, page.Categories[1].Name, page.Categories[2].Name}
	want := []string{"Auto", "Bills", "Fuel"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	page2, err := svc.ListCategories(context.Background(), testUser, &services.ListCategoriesRequest{
		Page:  2,
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("ListCategories page 2 failed: %v", err)
	}
	if len(page2.Categories) != 1 || page2.Categories[0].Name != "Insurance" {
		t.Fatalf("expected [Insurance] on page 2, got %v", page2.Categories)
	}
}

func TestListCategories_Filters(t *testing.T) {
	svc, _ := newTestService(t)
	foodID := mustCreate(t, svc, testUser, "Food", nil)
	groceriesID := mustCreate(t, svc, testUser, "Groceries", &foodID)
	mustCreate(t, svc, testUser, "Travel", nil)

	if err := svc.DeleteCategory(context.Background(), testUser, groceriesID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	roots, err := svc.ListCategories(context.Background(), testUser, &services.ListCategoriesRequest{RootOnly: true})
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(roots.Categories) != 2 {
		t.Errorf("expected 2 root categories, got %d", len(roots.Categories))
	}

	active := true
	activeOnly, err := svc.ListCategories(context.Background(), testUser, &services.ListCategoriesRequest{IsActive: &active})
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(activeOnly.Categories) != 2 {
		t.Errorf("expected 2 active categories, got %d", len(activeOnly.Categories))
	}

	search, err := svc.ListCategories(context.Background(), testUser, &services.ListCategoriesRequest{Search: "groc"})
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(search.Categories) != 1 || search.Categories[0].Name != "Groceries" {
		t.Errorf("expected case-insensitive search to find Groceries, got %v", search.Categories)
	}
}

func TestBulkCreateCategories_PartialFailure(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, testUser, "Food", nil)

	result, err := svc.BulkCreateCategories(context.Background(), testUser, &services.BulkCreateRequest{
		Categories: []services.CreateCategoryRequest{
			{Name: "Travel"},
			{Name: "Food"}, // duplicate, must not abort the batch
			{Name: "Health"},
		},
	})
	if err != nil {
		t.Fatalf("BulkCreateCategories failed: %v", err)
	}

	if result.Requested != 3 {
		t.Errorf("expected requested 3, got %d", result.Requested)
	}
	if result.Created != 2 {
		t.Errorf("expected created 2, got %d", result.Created)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].Index != 1 || result.Errors[0].Name != "Food" {
		t.Errorf("expected failure at index 1 for Food, got %+v", result.Errors[0])
	}
}

func TestBulkCreateCategories_EmptyBatch(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.BulkCreateCategories(context.Background(), testUser, &services.BulkCreateRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
