package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openon-app/capsule-api/internal/model"
	"github.com/openon-app/capsule-api/internal/repository"
	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/metrics"
)

// Service records notification intents. It never delivers anything;
// the dispatcher drains pending rows. Duplicate intents for the same
// (capsule, user, kind) are suppressed by the storage layer, which is
// what lets the sweeps re-run safely.
type Service struct {
	repo    repository.NotificationRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		metrics: m,
	}
}

// Emit records an intent. Returns true if the intent was new, false if
// an identical one had already been emitted.
func (s *Service) Emit(ctx context.Context, userID, capsuleID uuid.UUID, kind model.NotificationKind, title, body string, now time.Time) (bool, error) {
	n := &model.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		CapsuleID: capsuleID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Status:    model.NotificationStatusPending,
		CreatedAt: now,
	}

	inserted, err := s.repo.Create(ctx, n)
	if err != nil {
		return false, fmt.Errorf("failed to emit %s intent: %w", kind, err)
	}

	if inserted {
		if s.metrics != nil {
			s.metrics.IntentsEmitted.WithLabelValues(string(kind)).Inc()
		}
		s.logger.ZL.Debug().
			Str("capsule_id", capsuleID.String()).
			Str("user_id", userID.String()).
			Str("kind", string(kind)).
			Msg("notification intent emitted")
	} else if s.metrics != nil {
		s.metrics.IntentsDeduplicated.WithLabelValues(string(kind)).Inc()
	}

	return inserted, nil
}

// EmitNewCapsule tells a linked recipient account a letter is waiting.
func (s *Service) EmitNewCapsule(ctx context.Context, userID uuid.UUID, c *model.Capsule, now time.Time) (bool, error) {
	body := fmt.Sprintf("A letter titled %q will unlock on %s.", c.Title, c.UnlocksAt.Format("Jan 2, 2006"))
	return s.Emit(ctx, userID, c.ID, model.NotificationKindNewCapsule,
		"A letter is waiting for you", body, now)
}

// EmitUnlockSoon warns a recipient their capsule unlocks within the
// sweep window.
func (s *Service) EmitUnlockSoon(ctx context.Context, userID uuid.UUID, c *model.Capsule, now time.Time) (bool, error) {
	body := fmt.Sprintf("%q unlocks at %s.", c.Title, c.UnlocksAt.Format(time.RFC1123))
	return s.Emit(ctx, userID, c.ID, model.NotificationKindUnlockSoon,
		"A letter unlocks soon", body, now)
}

// EmitUnlockedForRecipient fires once on the sealed-to-ready transition.
func (s *Service) EmitUnlockedForRecipient(ctx context.Context, userID uuid.UUID, c *model.Capsule, now time.Time) (bool, error) {
	body := fmt.Sprintf("%q is now ready to open.", c.Title)
	return s.Emit(ctx, userID, c.ID, model.NotificationKindUnlocked,
		"Your letter has unlocked", body, now)
}

// EmitUnlockedForSender tells the sender their letter was opened.
func (s *Service) EmitUnlockedForSender(ctx context.Context, c *model.Capsule, now time.Time) (bool, error) {
	body := fmt.Sprintf("Your letter %q was opened.", c.Title)
	return s.Emit(ctx, c.SenderID, c.ID, model.NotificationKindUnlocked,
		"Your letter was opened", body, now)
}

// EmitDisappearingWarning warns a recipient an opened disappearing
// letter is about to be deleted.
func (s *Service) EmitDisappearingWarning(ctx context.Context, userID uuid.UUID, c *model.Capsule, deleteAt time.Time, now time.Time) (bool, error) {
	body := fmt.Sprintf("%q disappears at %s.", c.Title, deleteAt.Format(time.RFC1123))
	return s.Emit(ctx, userID, c.ID, model.NotificationKindDisappearingWarning,
		"A letter is about to disappear", body, now)
}

// ListForUser returns a user's recent notifications.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListForUser(ctx, userID, limit)
}
