package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LeeRoiii/Image-Vault/internal/db"
	"github.com/LeeRoiii/Image-Vault/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return writeError("insert user", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// column is one of a fixed set chosen by the callers above.
	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE `+column+` = $1
    `, value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, readError("select user by "+column, err)
	}

	return user, nil
}

// UpdatePassword replaces a user's password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET password_hash = $2, updated_at = $3
        WHERE id = $1
    `, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresImageRepository provides PostgreSQL-backed persistence for image metadata.
type PostgresImageRepository struct {
	pool db.Pool
}

// NewPostgresImageRepository constructs an image repository backed by PostgreSQL.
func NewPostgresImageRepository(pool db.Pool) *PostgresImageRepository {
	return &PostgresImageRepository{pool: pool}
}

// Create stores a new image record.
func (r *PostgresImageRepository) Create(ctx context.Context, image models.Image) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO images (id, user_id, path, title, description, category, content_type, size_bytes, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, image.ID, image.UserID, image.Path, image.Title, image.Description, image.Category, image.ContentType, image.Size, image.UploadedAt)
	if err != nil {
		return writeError("insert image", err)
	}

	return nil
}

// List returns one window of a user's images ordered by upload time, newest first.
func (r *PostgresImageRepository) List(ctx context.Context, query ImageQuery) ([]models.Image, error) {
	if query.Limit <= 0 {
		return nil, nil
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, path, title, description, category, content_type, size_bytes, uploaded_at
        FROM images
        WHERE user_id = $1
          AND ($2 = '' OR category = $2)
        ORDER BY uploaded_at DESC, id DESC
        LIMIT $3 OFFSET $4
    `, query.UserID, query.Category, query.Limit, query.Offset)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	images := make([]models.Image, 0, query.Limit)
	for rows.Next() {
		var image models.Image
		if err := rows.Scan(&image.ID, &image.UserID, &image.Path, &image.Title, &image.Description, &image.Category, &image.ContentType, &image.Size, &image.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		image.UploadedAt = image.UploadedAt.UTC()
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}

	return images, nil
}

// CountByUser returns how many images a user has uploaded.
func (r *PostgresImageRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM images WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}

	return count, nil
}

// DistinctCategories returns the non-empty category names used by a user's images.
func (r *PostgresImageRepository) DistinctCategories(ctx context.Context, userID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT DISTINCT category
        FROM images
        WHERE user_id = $1 AND category <> ''
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query image categories: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect image categories: %w", err)
	}

	return names, nil
}

// PostgresCategoryRepository provides PostgreSQL-backed persistence for categories.
type PostgresCategoryRepository struct {
	pool db.Pool
}

// NewPostgresCategoryRepository constructs a category repository backed by PostgreSQL.
func NewPostgresCategoryRepository(pool db.Pool) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{pool: pool}
}

// Create stores a new category record.
func (r *PostgresCategoryRepository) Create(ctx context.Context, category models.Category) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO categories (id, user_id, name, created_at)
        VALUES ($1, $2, $3, $4)
    `, category.ID, category.UserID, strings.TrimSpace(category.Name), category.CreatedAt)
	if err != nil {
		return writeError("insert category", err)
	}

	return nil
}

// ListByUser returns a user's stored categories, oldest first.
func (r *PostgresCategoryRepository) ListByUser(ctx context.Context, userID string) ([]models.Category, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, name, created_at
        FROM categories
        WHERE user_id = $1
        ORDER BY created_at ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.UserID, &category.Name, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// PostgresPasswordResetStore persists recovery tokens to PostgreSQL.
type PostgresPasswordResetStore struct {
	pool db.Pool
}

// NewPostgresPasswordResetStore constructs a reset store backed by PostgreSQL.
func NewPostgresPasswordResetStore(pool db.Pool) *PostgresPasswordResetStore {
	return &PostgresPasswordResetStore{pool: pool}
}

// Save stores a pending reset.
func (s *PostgresPasswordResetStore) Save(ctx context.Context, reset models.PasswordReset) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO password_resets (token_hash, user_id, expires_at, created_at)
        VALUES ($1, $2, $3, $4)
    `, reset.TokenHash, reset.UserID, reset.ExpiresAt.UTC(), reset.CreatedAt.UTC())
	if err != nil {
		return writeError("insert password reset", err)
	}

	return nil
}

// Consume deletes and returns the reset matching the token hash, so a token
// can be used at most once.
func (s *PostgresPasswordResetStore) Consume(ctx context.Context, tokenHash string) (models.PasswordReset, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.PasswordReset{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        DELETE FROM password_resets
        WHERE token_hash = $1
        RETURNING token_hash, user_id, expires_at, created_at
    `, tokenHash)

	var reset models.PasswordReset
	if err := row.Scan(&reset.TokenHash, &reset.UserID, &reset.ExpiresAt, &reset.CreatedAt); err != nil {
		return models.PasswordReset{}, readError("consume password reset", err)
	}

	reset.ExpiresAt = reset.ExpiresAt.UTC()
	reset.CreatedAt = reset.CreatedAt.UTC()
	return reset, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ImageRepository = (*PostgresImageRepository)(nil)
var _ CategoryRepository = (*PostgresCategoryRepository)(nil)
var _ PasswordResetRepository = (*PostgresPasswordResetStore)(nil)
