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

const capsuleColumns = `
	id, sender_id, recipient_id, title, body,
	is_anonymous, is_disappearing, disappearing_after_seconds,
	status, unlocks_at, opened_at, expires_at, deleted_at,
	created_at, updated_at
`

func (r *capsuleRepository) Create(ctx context.Context, capsule *model.Capsule) error {
	query := `
		INSERT INTO capsules (
			id, sender_id, recipient_id, title, body,
			is_anonymous, is_disappearing, disappearing_after_seconds,
			status, unlocks_at, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		capsule.ID,
		capsule.SenderID,
		capsule.RecipientID,
		capsule.Title,
		capsule.Body,
		capsule.IsAnonymous,
		capsule.IsDisappearing,
		capsule.DisappearingAfterSeconds,
		capsule.Status,
		capsule.UnlocksAt,
		capsule.ExpiresAt,
		capsule.CreatedAt,
		capsule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create capsule: %w", err)
	}
	return nil
}

func (r *capsuleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsules WHERE id = $1`

	var capsule model.Capsule
	err := r.db.GetContext(ctx, &capsule, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrCapsuleNotFound
		}
		return nil, fmt.Errorf("failed to get capsule: %w", err)
	}
	return &capsule, nil
}

func (r *capsuleRepository) UpdateContent(ctx context.Context, id uuid.UUID, title, body string, updatedAt time.Time) error {
	query := `
		UPDATE capsules
		SET title = $1, body = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, title, body, updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update capsule content: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrCapsuleNotFound
	}
	return nil
}

func (r *capsuleRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	query := `
		UPDATE capsules
		SET deleted_at = $1, status = $2, updated_at = $1
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, deletedAt, model.CapsuleStatusExpired, id)
	if err != nil {
		return fmt.Errorf("failed to delete capsule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrCapsuleNotFound
	}
	return nil
}

// Open performs the at-most-once opening write. The WHERE clause is the
// whole race-safety story: the first concurrent caller flips opened_at,
// everyone else affects zero rows and gets false back.
func (r *capsuleRepository) Open(ctx context.Context, id uuid.UUID, openedAt time.Time) (bool, error) {
	query := `
		UPDATE capsules
		SET opened_at = $1, status = $2, updated_at = $1
		WHERE id = $3
		  AND opened_at IS NULL
		  AND deleted_at IS NULL
		  AND unlocks_at <= $1
		  AND (expires_at IS NULL OR expires_at > $1)
	`
	result, err := r.db.ExecContext(ctx, query, openedAt, model.CapsuleStatusOpened, id)
	if err != nil {
		return false, fmt.Errorf("failed to open capsule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *capsuleRepository) ListBySender(ctx context.Context, senderID uuid.UUID) ([]*model.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE sender_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	var capsules []*model.Capsule
	err := r.db.SelectContext(ctx, &capsules, query, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list capsules: %w", err)
	}
	return capsules, nil
}

func (r *capsuleRepository) ListForRecipientUser(ctx context.Context, userID uuid.UUID, email string) ([]*model.Capsule, error) {
	query := `
		SELECT c.id, c.sender_id, c.recipient_id, c.title, c.body,
		       c.is_anonymous, c.is_disappearing, c.disappearing_after_seconds,
		       c.status, c.unlocks_at, c.opened_at, c.expires_at, c.deleted_at,
		       c.created_at, c.updated_at
		FROM capsules c
		JOIN recipients r ON r.id = c.recipient_id
		WHERE (r.linked_user_id = $1 OR lower(r.email) = lower($2))
		  AND c.deleted_at IS NULL
		ORDER BY c.unlocks_at ASC
	`
	var capsules []*model.Capsule
	err := r.db.SelectContext(ctx, &capsules, query, userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox capsules: %w", err)
	}
	return capsules, nil
}

func (r *capsuleRepository) ListSealedUnlockingBetween(ctx context.Context, from, to time.Time) ([]*model.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE status = $1
		  AND deleted_at IS NULL
		  AND opened_at IS NULL
		  AND unlocks_at >= $2 AND unlocks_at < $3
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY unlocks_at ASC
	`
	var capsules []*model.Capsule
	err := r.db.SelectContext(ctx, &capsules, query, model.CapsuleStatusSealed, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocking capsules: %w", err)
	}
	return capsules, nil
}

// MarkReady flips the cached status from sealed to ready. Zero rows
// means another sweep got there first, which callers use to gate the
// one-time ready notification.
func (r *capsuleRepository) MarkReady(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE capsules
		SET status = $1, updated_at = $2
		WHERE id = $3
		  AND status = $4
		  AND opened_at IS NULL
		  AND deleted_at IS NULL
		  AND unlocks_at <= $2
	`
	result, err := r.db.ExecContext(ctx, query, model.CapsuleStatusReady, now, id, model.CapsuleStatusSealed)
	if err != nil {
		return false, fmt.Errorf("failed to mark capsule ready: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *capsuleRepository) MarkExpiredDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE capsules
		SET status = $1, updated_at = $2
		WHERE expires_at IS NOT NULL AND expires_at <= $2
		  AND opened_at IS NULL
		  AND status <> $1
	`
	result, err := r.db.ExecContext(ctx, query, model.CapsuleStatusExpired, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark capsules expired: %w", err)
	}
	return result.RowsAffected()
}

func (r *capsuleRepository) ListDisappearingExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsules
		WHERE is_disappearing
		  AND opened_at IS NOT NULL
		  AND deleted_at IS NULL
		  AND opened_at + make_interval(secs => disappearing_after_seconds) > $1
		  AND opened_at + make_interval(secs => disappearing_after_seconds) <= $2
	`
	var capsules []*model.Capsule
	err := r.db.SelectContext(ctx, &capsules, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring disappearing capsules: %w", err)
	}
	return capsules, nil
}

// SoftDeleteDueDisappearing stamps deleted_at with the exact derived
// deadline rather than the sweep time, so a late sweep still records
// opened_at + duration.
func (r *capsuleRepository) SoftDeleteDueDisappearing(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE capsules
		SET deleted_at = opened_at + make_interval(secs => disappearing_after_seconds),
		    status = $1,
		    updated_at = $2
		WHERE is_disappearing
		  AND opened_at IS NOT NULL
		  AND deleted_at IS NULL
		  AND opened_at + make_interval(secs => disappearing_after_seconds) <= $2
	`
	result, err := r.db.ExecContext(ctx, query, model.CapsuleStatusExpired, now)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete disappearing capsules: %w", err)
	}
	return result.RowsAffected()
}
