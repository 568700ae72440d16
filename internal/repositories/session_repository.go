package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/LeeRoiii/Image-Vault/internal/auth"
	"github.com/LeeRoiii/Image-Vault/internal/db"
)

// PostgresSessionStore persists refresh tokens to PostgreSQL. Only a digest
// of each token is stored, so a leaked table cannot be replayed.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func refreshTokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Save stores a session and drops the user's expired ones in the same round trip.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	batch.Queue(`
        INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
        VALUES ($1, $2, $3, $4)
    `, refreshTokenDigest(session.RefreshToken), session.UserID, session.ExpiresAt.UTC(), time.Now().UTC())
	batch.Queue(`
        DELETE FROM sessions
        WHERE user_id = $1 AND expires_at < $2
    `, session.UserID, time.Now().UTC())

	results := conn.SendBatch(ctx, batch)
	if _, err := results.Exec(); err != nil {
		_ = results.Close()
		return writeError("insert session", err)
	}
	if _, err := results.Exec(); err != nil {
		_ = results.Close()
		return fmt.Errorf("purge expired sessions: %w", err)
	}
	return results.Close()
}

// Find loads a session by its refresh token.
func (s *PostgresSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	session := auth.Session{RefreshToken: refreshToken}
	err = conn.QueryRow(ctx, `
        SELECT user_id, expires_at
        FROM sessions
        WHERE token_hash = $1
    `, refreshTokenDigest(refreshToken)).Scan(&session.UserID, &session.ExpiresAt)
	if err != nil {
		if err = readError("select session", err); errors.Is(err, ErrNotFound) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, err
	}

	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

// Delete removes a session by its refresh token.
func (s *PostgresSessionStore) Delete(ctx context.Context, refreshToken string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, refreshTokenDigest(refreshToken))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// DeleteByUser removes every session belonging to a user, returning how many
// were removed. It backs "sign out everywhere" after a password change.
func (s *PostgresSessionStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
