package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openon-app/capsule-api/internal/model"
)

// Storage-level not-found sentinels, shared by every backend so the
// service layer can classify without knowing the implementation.
var (
	ErrCapsuleNotFound   = errors.New("capsule not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrUserNotFound      = errors.New("user not found")
)

// All repository interfaces in one file
type (
	// CapsuleRepository handles capsule persistence. Open is the
	// conditional-update primitive the opening handler relies on: it
	// only succeeds while opened_at is still null and the unlock time
	// has passed, so concurrent opens resolve to exactly one winner.
	CapsuleRepository interface {
		Create(ctx context.Context, capsule *model.Capsule) error
		Get(ctx context.Context, id uuid.UUID) (*model.Capsule, error)
		UpdateContent(ctx context.Context, id uuid.UUID, title, body string, updatedAt time.Time) error
		SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
		Open(ctx context.Context, id uuid.UUID, openedAt time.Time) (bool, error)
		ListBySender(ctx context.Context, senderID uuid.UUID) ([]*model.Capsule, error)
		ListForRecipientUser(ctx context.Context, userID uuid.UUID, email string) ([]*model.Capsule, error)

		// Sweep queries. All are filtered on current timestamps so that
		// re-running them is a no-op for rows already processed.
		ListSealedUnlockingBetween(ctx context.Context, from, to time.Time) ([]*model.Capsule, error)
		MarkReady(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
		MarkExpiredDue(ctx context.Context, now time.Time) (int64, error)
		ListDisappearingExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Capsule, error)
		SoftDeleteDueDisappearing(ctx context.Context, now time.Time) (int64, error)
	}

	RecipientRepository interface {
		Create(ctx context.Context, recipient *model.Recipient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error)
		ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Recipient, error)
		LinkUser(ctx context.Context, id, userID uuid.UUID) error
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		RefreshPremiumFlags(ctx context.Context, now time.Time) (int64, error)
	}

	// NotificationRepository stores intents. Create must be
	// conflict-tolerant on (capsule_id, user_id, kind) and report
	// whether a row was actually inserted.
	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) (bool, error)
		ListPending(ctx context.Context, limit int) ([]*model.Notification, error)
		MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error)
	}
)
