package capsule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openon-app/capsule-api/internal/model"
	"github.com/openon-app/capsule-api/internal/repository"
	"github.com/openon-app/capsule-api/internal/service/notification"
	recipientsvc "github.com/openon-app/capsule-api/internal/service/recipient"
	apperrors "github.com/openon-app/capsule-api/pkg/errors"
	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/metrics"
)

// Service is the capsule state machine: it validates and applies every
// transition, always deciding from freshly recomputed status, never
// from the cached column.
type Service struct {
	repo       repository.CapsuleRepository
	recipients *recipientsvc.Service
	notifier   *notification.Service
	logger     *logger.Logger
	metrics    *metrics.Metrics

	// now is the single clock source for the service, swappable in tests.
	now func() time.Time
}

func NewService(
	repo repository.CapsuleRepository,
	recipients *recipientsvc.Service,
	notifier *notification.Service,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:       repo,
		recipients: recipients,
		notifier:   notifier,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Create seals a new capsule. The unlock time must be strictly in the
// future and the disappearing flag and duration must agree.
func (s *Service) Create(ctx context.Context, senderID uuid.UUID, req *model.CreateCapsuleRequest) (*model.Capsule, error) {
	now := s.now()

	if !req.UnlocksAt.After(now) {
		return nil, ErrInvalidSchedule
	}
	if err := validateDisappearing(req.IsDisappearing, req.DisappearingAfterSeconds); err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(req.UnlocksAt) {
		return nil, ErrInvalidExpiry
	}

	recipient, err := s.recipients.Get(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			return nil, apperrors.NotFound("recipient", err)
		}
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if recipient.OwnerUserID != senderID {
		return nil, ErrRecipientNotOwned
	}

	capsule := &model.Capsule{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		SenderID:                 senderID,
		RecipientID:              req.RecipientID,
		Title:                    req.Title,
		Body:                     req.Body,
		IsAnonymous:              req.IsAnonymous,
		IsDisappearing:           req.IsDisappearing,
		DisappearingAfterSeconds: req.DisappearingAfterSeconds,
		Status:                   model.CapsuleStatusSealed,
		UnlocksAt:                req.UnlocksAt,
		ExpiresAt:                req.ExpiresAt,
	}

	if err := s.repo.Create(ctx, capsule); err != nil {
		return nil, fmt.Errorf("failed to create capsule: %w", err)
	}
	if s.metrics != nil {
		s.metrics.CapsulesCreated.Inc()
	}

	// A notification failure never fails the create.
	if recipient.LinkedUserID != nil {
		if _, err := s.notifier.EmitNewCapsule(ctx, *recipient.LinkedUserID, capsule, now); err != nil {
			s.logger.Error(err, "failed to emit new_capsule intent", "capsule_id", capsule.ID.String())
		}
	}

	s.logger.ZL.Info().
		Str("capsule_id", capsule.ID.String()).
		Time("unlocks_at", capsule.UnlocksAt).
		Bool("disappearing", capsule.IsDisappearing).
		Msg("capsule created")

	return capsule, nil
}

// GetForUser fetches a capsule on behalf of a caller. The bool result
// reports whether the caller is the sender; non-senders must resolve as
// the recipient or the capsule stays invisible to them.
func (s *Service) GetForUser(ctx context.Context, id, userID uuid.UUID, email string) (*model.Capsule, bool, error) {
	now := s.now()

	capsule, err := s.fetch(ctx, id, now)
	if err != nil {
		return nil, false, err
	}

	if capsule.SenderID == userID {
		return capsule, true, nil
	}

	isRecipient, err := s.recipients.IsRecipient(ctx, capsule.RecipientID, userID, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if !isRecipient {
		// Not found rather than forbidden: strangers learn nothing.
		return nil, false, ErrNotFound
	}
	return capsule, false, nil
}

// UpdateContent edits title/body. Only allowed while the computed
// status is still sealed; timestamps are never touched.
func (s *Service) UpdateContent(ctx context.Context, id, senderID uuid.UUID, req *model.UpdateCapsuleContentRequest) (*model.Capsule, error) {
	now := s.now()

	capsule, err := s.fetch(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if capsule.SenderID != senderID {
		return nil, ErrNotSender
	}
	if capsule.Status != model.CapsuleStatusSealed {
		return nil, ErrImmutableAfterSeal
	}

	if req.Title != nil {
		capsule.Title = *req.Title
	}
	if req.Body != nil {
		capsule.Body = *req.Body
	}

	if err := s.repo.UpdateContent(ctx, capsule.ID, capsule.Title, capsule.Body, now); err != nil {
		return nil, fmt.Errorf("failed to update capsule: %w", err)
	}
	capsule.UpdatedAt = now
	return capsule, nil
}

// Delete is the sender-initiated soft delete. Opened capsules belong
// to the recipient's history and cannot be withdrawn.
func (s *Service) Delete(ctx context.Context, id, senderID uuid.UUID) error {
	now := s.now()

	capsule, err := s.fetch(ctx, id, now)
	if err != nil {
		return err
	}
	if capsule.SenderID != senderID {
		return ErrNotSender
	}
	if capsule.OpenedAt != nil {
		return ErrCannotDeleteOpened
	}

	if err := s.repo.SoftDelete(ctx, capsule.ID, now); err != nil {
		return fmt.Errorf("failed to delete capsule: %w", err)
	}
	if s.metrics != nil {
		s.metrics.CapsulesDeleted.Inc()
	}
	return nil
}

// Open is the one-time opening transition. At-most-once is enforced by
// the repository's conditional update, not by any in-process lock:
// with N concurrent calls exactly one wins and the rest are classified
// from a re-read. A loser still gets the opened capsule back so the
// caller can render it alongside ErrAlreadyOpened.
func (s *Service) Open(ctx context.Context, id, userID uuid.UUID, email string) (*model.Capsule, error) {
	now := s.now()

	capsule, err := s.fetch(ctx, id, now)
	if err != nil {
		return nil, err
	}

	isRecipient, err := s.recipients.IsRecipient(ctx, capsule.RecipientID, userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if !isRecipient {
		return nil, ErrUnauthorizedRecipient
	}

	switch capsule.Status {
	case model.CapsuleStatusOpened:
		return capsule, ErrAlreadyOpened
	case model.CapsuleStatusSealed:
		return nil, ErrNotYetUnlocked
	case model.CapsuleStatusExpired:
		return nil, ErrCapsuleExpired
	}

	opened, err := s.repo.Open(ctx, capsule.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to open capsule: %w", err)
	}
	if !opened {
		return s.classifyOpenFailure(ctx, id, now)
	}

	capsule.OpenedAt = &now
	capsule.Status = model.CapsuleStatusOpened
	if s.metrics != nil {
		s.metrics.CapsulesOpened.Inc()
	}

	if _, err := s.notifier.EmitUnlockedForSender(ctx, capsule, now); err != nil {
		s.logger.Error(err, "failed to emit unlocked intent", "capsule_id", capsule.ID.String())
	}

	s.logger.ZL.Info().
		Str("capsule_id", capsule.ID.String()).
		Time("opened_at", now).
		Msg("capsule opened")

	return capsule, nil
}

// classifyOpenFailure re-reads after a zero-row conditional update and
// names the reason. Losing the race to another opener is the common
// case.
func (s *Service) classifyOpenFailure(ctx context.Context, id uuid.UUID, now time.Time) (*model.Capsule, error) {
	capsule, err := s.fetch(ctx, id, now)
	if err != nil {
		return nil, err
	}

	switch capsule.Status {
	case model.CapsuleStatusOpened:
		if s.metrics != nil {
			s.metrics.OpenConflicts.Inc()
		}
		return capsule, ErrAlreadyOpened
	case model.CapsuleStatusSealed:
		return nil, ErrNotYetUnlocked
	case model.CapsuleStatusExpired:
		return nil, ErrCapsuleExpired
	}
	return nil, fmt.Errorf("open capsule %s: %w", id, errInconsistentState)
}

// ListSent returns the sender's capsules with freshly computed status.
func (s *Service) ListSent(ctx context.Context, senderID uuid.UUID) ([]*model.Capsule, error) {
	now := s.now()

	capsules, err := s.repo.ListBySender(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return refreshAll(capsules, now), nil
}

// ListInbox returns capsules addressed to the caller, excluding any
// whose deletion deadline has passed.
func (s *Service) ListInbox(ctx context.Context, userID uuid.UUID, email string) ([]*model.Capsule, error) {
	now := s.now()

	capsules, err := s.repo.ListForRecipientUser(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	return refreshAll(capsules, now), nil
}

// fetch loads a capsule, treats effectively deleted ones as absent and
// recomputes the status cache before anyone looks at it.
func (s *Service) fetch(ctx context.Context, id uuid.UUID, now time.Time) (*model.Capsule, error) {
	capsule, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCapsuleNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get capsule: %w", err)
	}
	if Gone(capsule, now) {
		return nil, ErrNotFound
	}
	capsule.Status = ComputeStatus(capsule, now)
	return capsule, nil
}

func refreshAll(capsules []*model.Capsule, now time.Time) []*model.Capsule {
	visible := capsules[:0]
	for _, c := range capsules {
		if Gone(c, now) {
			continue
		}
		c.Status = ComputeStatus(c, now)
		visible = append(visible, c)
	}
	return visible
}

func validateDisappearing(isDisappearing bool, seconds *int64) error {
	if isDisappearing {
		if seconds == nil || *seconds <= 0 {
			return ErrInvalidDisappearingConfig
		}
		return nil
	}
	if seconds != nil {
		return ErrInvalidDisappearingConfig
	}
	return nil
}

var errInconsistentState = errors.New("conditional open failed but capsule is ready")
