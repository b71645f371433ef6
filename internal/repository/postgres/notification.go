package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openon-app/capsule-api/internal/model"
)

// Create inserts an intent. The ON CONFLICT clause enforces the
// one-notification-per-(capsule, user, kind) rule at the storage layer,
// so concurrent sweeps cannot double-emit. Returns whether a row was
// actually inserted.
func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, capsule_id, kind, title, body,
			status, retry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (capsule_id, user_id, kind) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.UserID,
		notification.CapsuleID,
		notification.Kind,
		notification.Title,
		notification.Body,
		notification.Status,
		notification.RetryCount,
		notification.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *notificationRepository) ListPending(ctx context.Context, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, capsule_id, kind, title, body,
		       status, retry_count, last_error, sent_at, created_at
		FROM notifications
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, query, model.NotificationStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.NotificationStatusSent, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE notifications
		SET status = $1, retry_count = retry_count + 1, last_error = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.NotificationStatusFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, capsule_id, kind, title, body,
		       status, retry_count, last_error, sent_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
