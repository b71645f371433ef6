package model

import (
	"time"
)

// User mirrors the account record owned by the auth platform. IsPremium
// is a cache over PremiumUntil, refreshed by the daily sweep; it gates
// cosmetic features only, never write access.
type User struct {
	Base
	Email        string     `db:"email" json:"email"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	PremiumUntil *time.Time `db:"premium_until" json:"premium_until,omitempty"`
	IsPremium    bool       `db:"is_premium" json:"is_premium"`
}

// PremiumAt reports whether the subscription is active at the given time.
func (u *User) PremiumAt(now time.Time) bool {
	return u.PremiumUntil != nil && u.PremiumUntil.After(now)
}
