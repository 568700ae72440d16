package gallery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/repositories"
)

// CategorySource lists the category names used by a user's images.
type CategorySource interface {
	DistinctCategories(ctx context.Context, userID string) ([]string, error)
}

// Categories merges image-derived category names with stored category records.
type Categories struct {
	images CategorySource
	store  repositories.CategoryRepository
	now    func() time.Time
}

// NewCategories constructs the category service.
func NewCategories(images CategorySource, store repositories.CategoryRepository) *Categories {
	return &Categories{
		images: images,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns every distinct non-empty category name for userID, sorted.
func (c *Categories) List(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	seen := make(map[string]struct{})

	derived, err := c.images.DistinctCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list image categories: %w", err)
	}
	for _, name := range derived {
		if name = strings.TrimSpace(name); name != "" {
			seen[name] = struct{}{}
		}
	}

	if c.store != nil {
		stored, err := c.store.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list stored categories: %w", err)
		}
		for _, category := range stored {
			if name := strings.TrimSpace(category.Name); name != "" {
				seen[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Add stores a new category named name for userID.
func (c *Categories) Add(ctx context.Context, userID, name string) (models.Category, error) {
	if userID == "" {
		return models.Category{}, ErrNoUser
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Category{}, apperror.Validation("name", "Category name is required.")
	}

	category := models.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: c.now(),
	}
	if err := c.store.Create(ctx, category); err != nil {
		return models.Category{}, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}
