package capsule

import (
	"github.com/openon-app/capsule-api/pkg/errors"
)

// Business-rule violations, one sentinel per kind. The API layer maps
// these to transport statuses; the service never retries them.
var (
	// ErrInvalidSchedule: the unlock time was not strictly in the
	// future at creation.
	ErrInvalidSchedule = errors.BadRequest("unlock time must be in the future", nil)

	// ErrInvalidDisappearingConfig: the disappearing flag and duration
	// disagree.
	ErrInvalidDisappearingConfig = errors.BadRequest("disappearing capsules need a positive duration, and only disappearing capsules may set one", nil)

	// ErrImmutableAfterSeal: content edits are only allowed while the
	// computed status is still sealed.
	ErrImmutableAfterSeal = errors.Forbidden("capsule can no longer be edited", nil)

	// ErrCannotDeleteOpened: a capsule that has been opened belongs to
	// its recipient's history and cannot be withdrawn.
	ErrCannotDeleteOpened = errors.Conflict("an opened capsule cannot be deleted", nil)

	// ErrNotYetUnlocked: open attempted before the unlock time.
	ErrNotYetUnlocked = errors.BadRequest("capsule is not yet unlocked", nil)

	// ErrAlreadyOpened: the open race was lost, or the capsule was
	// opened earlier. Expected under concurrency, so the message is
	// user-facing.
	ErrAlreadyOpened = errors.Conflict("this letter has already been opened", nil)

	// ErrUnauthorizedRecipient: the caller is not the capsule's
	// resolved recipient.
	ErrUnauthorizedRecipient = errors.Forbidden("only the recipient can open this capsule", nil)

	// ErrCapsuleExpired: open attempted after expires_at passed
	// without an opening.
	ErrCapsuleExpired = errors.Conflict("this capsule has expired", nil)

	// ErrNotFound covers missing and soft-deleted capsules alike.
	ErrNotFound = errors.NotFound("capsule", nil)

	// ErrNotSender: mutation attempted by someone other than the
	// capsule's sender.
	ErrNotSender = errors.Forbidden("only the sender can modify this capsule", nil)

	// ErrInvalidExpiry: expires_at set at or before unlocks_at, which
	// would make the capsule unopenable.
	ErrInvalidExpiry = errors.BadRequest("expiry must be after the unlock time", nil)

	// ErrRecipientNotOwned: the referenced recipient belongs to a
	// different sender's address book.
	ErrRecipientNotOwned = errors.Forbidden("recipient does not belong to sender", nil)
)
