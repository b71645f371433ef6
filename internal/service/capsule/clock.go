package capsule

import (
	"time"

	"github.com/openon-app/capsule-api/internal/model"
)

// ComputeStatus derives a capsule's status from its temporal fields at
// the given instant. It is pure: no clock reads, no side effects. Every
// read and every write path goes through this before trusting a status,
// so the persisted status column can never drift from the timestamps.
//
// Evaluation order matters and first match wins:
//
//  1. past its (effective) deletion time  -> expired
//  2. opened                              -> opened
//  3. past expires_at                     -> expired
//  4. past unlocks_at                     -> ready
//  5. otherwise                           -> sealed
func ComputeStatus(c *model.Capsule, now time.Time) model.CapsuleStatus {
	if del := c.EffectiveDeleteAt(); del != nil && !now.Before(*del) {
		return model.CapsuleStatusExpired
	}
	if c.OpenedAt != nil {
		return model.CapsuleStatusOpened
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return model.CapsuleStatusExpired
	}
	if !now.Before(c.UnlocksAt) {
		return model.CapsuleStatusReady
	}
	return model.CapsuleStatusSealed
}

// Gone reports whether the capsule should be treated as absent: the
// soft-delete marker or derived disappearing deadline has passed.
func Gone(c *model.Capsule, now time.Time) bool {
	del := c.EffectiveDeleteAt()
	return del != nil && !now.Before(*del)
}
