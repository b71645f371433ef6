package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationKindUnlockSoon          NotificationKind = "unlock_soon"
	NotificationKindUnlocked            NotificationKind = "unlocked"
	NotificationKindNewCapsule          NotificationKind = "new_capsule"
	NotificationKindDisappearingWarning NotificationKind = "disappearing_warning"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is a recorded notification intent. The core only ever
// produces these; delivery (push, email) is the dispatcher's problem.
// The (capsule_id, user_id, kind) triple is unique in storage, which
// is what makes re-running the notifier sweeps duplicate-free.
type Notification struct {
	ID         uuid.UUID          `db:"id" json:"id"`
	UserID     uuid.UUID          `db:"user_id" json:"user_id"`
	CapsuleID  uuid.UUID          `db:"capsule_id" json:"capsule_id"`
	Kind       NotificationKind   `db:"kind" json:"kind"`
	Title      string             `db:"title" json:"title"`
	Body       string             `db:"body" json:"body"`
	Status     NotificationStatus `db:"status" json:"status"`
	RetryCount int                `db:"retry_count" json:"retry_count"`
	LastError  *string            `db:"last_error" json:"last_error,omitempty"`
	SentAt     *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}
