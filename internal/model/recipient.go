package model

import (
	"github.com/google/uuid"
)

// Recipient is an address-book entry owned by a sender. It may or may
// not be linked to a registered account; unlinked recipients are
// matched by email when they sign up or open a share link.
type Recipient struct {
	Base
	OwnerUserID  uuid.UUID  `db:"owner_user_id" json:"owner_user_id"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	Email        string     `db:"email" json:"email"`
	LinkedUserID *uuid.UUID `db:"linked_user_id" json:"linked_user_id,omitempty"`
}

type CreateRecipientRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
}
