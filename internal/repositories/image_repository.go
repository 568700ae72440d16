package repositories

import (
	"context"

	"github.com/LeeRoiii/Image-Vault/internal/models"
)

// ImageQuery selects a window of a user's images, newest first.
type ImageQuery struct {
	UserID string
	// Category filters on an exact category name when non-empty.
	Category string
	Offset   int
	Limit    int
}

// ImageRepository exposes data access for image metadata records.
type ImageRepository interface {
	Create(ctx context.Context, image models.Image) error
	List(ctx context.Context, query ImageQuery) ([]models.Image, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	DistinctCategories(ctx context.Context, userID string) ([]string, error)
}
