package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openon-app/capsule-api/internal/model"
	"github.com/openon-app/capsule-api/internal/repository"
)

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, display_name, premium_until, is_premium,
		       created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, display_name, premium_until, is_premium,
		       created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// RefreshPremiumFlags recomputes the is_premium cache from
// premium_until. Only rows whose cached value drifted are touched.
func (r *userRepository) RefreshPremiumFlags(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET is_premium = (premium_until IS NOT NULL AND premium_until > $1),
		    updated_at = $1
		WHERE is_premium IS DISTINCT FROM (premium_until IS NOT NULL AND premium_until > $1)
	`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh premium flags: %w", err)
	}
	return result.RowsAffected()
}
