package model

import (
	"time"

	"github.com/google/uuid"
)

type CapsuleStatus string

const (
	CapsuleStatusSealed  CapsuleStatus = "sealed"
	CapsuleStatusReady   CapsuleStatus = "ready"
	CapsuleStatusOpened  CapsuleStatus = "opened"
	CapsuleStatusExpired CapsuleStatus = "expired"
)

// Capsule is a time-locked letter. Status is a cache column: every read
// and every write recomputes it from the temporal fields, never the
// other way around.
type Capsule struct {
	Base
	SenderID    uuid.UUID `db:"sender_id" json:"sender_id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`

	IsAnonymous             bool   `db:"is_anonymous" json:"is_anonymous"`
	IsDisappearing          bool   `db:"is_disappearing" json:"is_disappearing"`
	DisappearingAfterSeconds *int64 `db:"disappearing_after_seconds" json:"disappearing_after_seconds,omitempty"`

	Status    CapsuleStatus `db:"status" json:"status"`
	UnlocksAt time.Time     `db:"unlocks_at" json:"unlocks_at"`
	OpenedAt  *time.Time    `db:"opened_at" json:"opened_at,omitempty"`
	ExpiresAt *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
	DeletedAt *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
}

// DisappearingDuration returns the configured disappearing window.
// Only meaningful when IsDisappearing is true.
func (c *Capsule) DisappearingDuration() time.Duration {
	if c.DisappearingAfterSeconds == nil {
		return 0
	}
	return time.Duration(*c.DisappearingAfterSeconds) * time.Second
}

// EffectiveDeleteAt returns the moment the capsule stops existing for
// readers: the persisted soft-delete marker if present, otherwise the
// deadline derived from opening a disappearing capsule. Nil means the
// capsule has no deletion scheduled.
func (c *Capsule) EffectiveDeleteAt() *time.Time {
	if c.DeletedAt != nil {
		return c.DeletedAt
	}
	if c.IsDisappearing && c.OpenedAt != nil && c.DisappearingAfterSeconds != nil {
		t := c.OpenedAt.Add(c.DisappearingDuration())
		return &t
	}
	return nil
}

type CreateCapsuleRequest struct {
	RecipientID              uuid.UUID `json:"recipient_id" binding:"required"`
	Title                    string    `json:"title" binding:"required,max=200"`
	Body                     string    `json:"body" binding:"required"`
	UnlocksAt                time.Time `json:"unlocks_at" binding:"required"`
	ExpiresAt                *time.Time `json:"expires_at"`
	IsAnonymous              bool      `json:"is_anonymous"`
	IsDisappearing           bool      `json:"is_disappearing"`
	DisappearingAfterSeconds *int64    `json:"disappearing_after_seconds"`
}

type UpdateCapsuleContentRequest struct {
	Title *string `json:"title" binding:"omitempty,max=200"`
	Body  *string `json:"body"`
}

type CapsuleFilters struct {
	SenderID uuid.UUID
	Status   CapsuleStatus
}
