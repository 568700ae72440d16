package repositories

import (
	"context"

	"github.com/LeeRoiii/Image-Vault/internal/models"
)

// CategoryRepository defines data access for stored category records.
type CategoryRepository interface {
	Create(ctx context.Context, category models.Category) error
	ListByUser(ctx context.Context, userID string) ([]models.Category, error)
}

// PasswordResetRepository persists single-use password recovery tokens.
type PasswordResetRepository interface {
	Save(ctx context.Context, reset models.PasswordReset) error
	Consume(ctx context.Context, tokenHash string) (models.PasswordReset, error)
}
