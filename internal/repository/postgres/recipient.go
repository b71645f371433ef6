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

func (r *recipientRepository) Create(ctx context.Context, recipient *model.Recipient) error {
	query := `
		INSERT INTO recipients (
			id, owner_user_id, display_name, email, linked_user_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		recipient.ID,
		recipient.OwnerUserID,
		recipient.DisplayName,
		recipient.Email,
		recipient.LinkedUserID,
		recipient.CreatedAt,
		recipient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

func (r *recipientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	query := `
		SELECT id, owner_user_id, display_name, email, linked_user_id,
		       created_at, updated_at
		FROM recipients
		WHERE id = $1
	`
	var recipient model.Recipient
	err := r.db.GetContext(ctx, &recipient, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &recipient, nil
}

func (r *recipientRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Recipient, error) {
	query := `
		SELECT id, owner_user_id, display_name, email, linked_user_id,
		       created_at, updated_at
		FROM recipients
		WHERE owner_user_id = $1
		ORDER BY display_name ASC
	`
	var recipients []*model.Recipient
	err := r.db.SelectContext(ctx, &recipients, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}

func (r *recipientRepository) LinkUser(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE recipients
		SET linked_user_id = $1, updated_at = $2
		WHERE id = $3 AND linked_user_id IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, userID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to link recipient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrRecipientNotFound
	}
	return nil
}
