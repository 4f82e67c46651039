package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pianote/internal/domain"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
)

// RefreshTokenRepository persists refresh tokens. Tokens are single use:
// exchanging one revokes it and issues its successor.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// FindByToken returns the token whether or not it has been revoked
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	// Rotate revokes current and inserts next for the same user in one statement.
	// next.UserID is filled from the revoked row.
	Rotate(ctx context.Context, current string, next *domain.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

type refreshTokenRepository struct {
	db *sql.DB
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository
func NewRefreshTokenRepository(db *sql.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

// Create inserts a new refresh token
func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt, token.Revoked,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE token = $1
	`

	refreshToken := &domain.RefreshToken{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, token).Scan(
		&refreshToken.ID,
		&refreshToken.UserID,
		&refreshToken.Token,
		&refreshToken.ExpiresAt,
		&refreshToken.CreatedAt,
		&refreshToken.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	return refreshToken, nil
}

// Revoke marks a live token revoked. A token revoked earlier reports
// ErrRefreshTokenRevoked.
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return r.whyUnusable(ctx, token, time.Time{})
	}

	return nil
}

func (r *refreshTokenRepository) Rotate(ctx context.Context, current string, next *domain.RefreshToken) error {
	query := `
		WITH spent AS (
			UPDATE refresh_tokens
			SET revoked = TRUE
			WHERE token = $1 AND revoked = FALSE AND expires_at > $5
			RETURNING user_id
		)
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked)
		SELECT $2, user_id, $3, $4, $5, FALSE FROM spent
		RETURNING user_id
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		current, next.ID, next.Token, next.ExpiresAt, next.CreatedAt,
	).Scan(&next.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.whyUnusable(ctx, current, next.CreatedAt)
		}
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return nil
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// whyUnusable explains a guarded update that matched no row. A zero now skips
// the expiry check.
func (r *refreshTokenRepository) whyUnusable(ctx context.Context, token string, now time.Time) error {
	stored, err := r.FindByToken(ctx, token)
	if err != nil {
		return err
	}
	if stored.Revoked {
		return ErrRefreshTokenRevoked
	}
	if !now.IsZero() && stored.IsExpired(now) {
		return ErrRefreshTokenExpired
	}
	return ErrRefreshTokenRevoked
}
