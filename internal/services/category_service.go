package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgerd/internal/core"
	"ledgerd/internal/storage"
)

// CategoryRepository is the slice of storage the category service needs.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, c core.Category) error
	GetCategory(ctx context.Context, userID, id string) (*core.Category, error)
	ListCategories(ctx context.Context, userID string, filter storage.CategoryFilter) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
	CountTransactionsByCategory(ctx context.Context, userID, categoryID string) (int64, error)
}

// CategoryInput carries the client-supplied fields for a new category.
type CategoryInput struct {
	Name  string
	Type  core.TransactionType
	Color string
	Icon  string
}

// CategoryPatch carries a partial update; nil fields are left unchanged.
type CategoryPatch struct {
	Name     *string
	Color    *string
	Icon     *string
	IsActive *bool
}

// CategoryService owns the category lifecycle, always scoped to one user.
type CategoryService struct {
	categories CategoryRepository
	nowFn      func() time.Time
}

func NewCategoryService(categories CategoryRepository) *CategoryService {
	return &CategoryService{
		categories: categories,
		nowFn:      time.Now,
	}
}

// Create validates and persists a category. Color and icon fall back to
// defaults; the (name, user, type) unique key surfaces as ErrDuplicateCategory.
func (s *CategoryService) Create(ctx context.Context, userID string, input CategoryInput) (*core.Category, error) {
	now := s.nowFn()
	category := core.Category{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(input.Name),
		Type:      input.Type,
		Color:     input.Color,
		Icon:      input.Icon,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if category.Color == "" {
		category.Color = core.DefaultCategoryColor
	}
	if category.Icon == "" {
		category.Icon = core.DefaultCategoryIcon
	}

	if err := category.Validate(); err != nil {
		return nil, err
	}
	if err := s.categories.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) List(ctx context.Context, userID string, filter storage.CategoryFilter) ([]core.Category, error) {
	return s.categories.ListCategories(ctx, userID, filter)
}

// Get returns an owner-scoped category plus the number of transactions
// referencing it.
func (s *CategoryService) Get(ctx context.Context, userID, id string) (*core.Category, int64, error) {
	category, err := s.categories.GetCategory(ctx, userID, id)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.categories.CountTransactionsByCategory(ctx, userID, id)
	if err != nil {
		return nil, 0, err
	}
	return category, count, nil
}

// Update applies a partial update. The category's type is immutable: changing
// it would silently break the type agreement of existing transactions.
func (s *CategoryService) Update(ctx context.Context, userID, id string, patch CategoryPatch) (*core.Category, error) {
	category, err := s.categories.GetCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		category.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Color != nil {
		category.Color = *patch.Color
	}
	if patch.Icon != nil {
		category.Icon = *patch.Icon
	}
	if patch.IsActive != nil {
		category.IsActive = *patch.IsActive
	}
	category.UpdatedAt = s.nowFn()

	if err := category.Validate(); err != nil {
		return nil, err
	}
	if err := s.categories.UpdateCategory(ctx, *category); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Category updated", "category_id", id, "user_id", userID)
	return category, nil
}

// Delete refuses to remove a category that still has transactions
// (core.ErrCategoryInUse); deactivating is the supported alternative.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	return s.categories.DeleteCategory(ctx, userID, id)
}
