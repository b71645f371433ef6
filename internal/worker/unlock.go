package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/openon-app/capsule-api/internal/repository"
	"github.com/openon-app/capsule-api/internal/service/notification"
	recipientsvc "github.com/openon-app/capsule-api/internal/service/recipient"
	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/metrics"
)

// UnlockSweep keeps the cached status column in step with the clock
// and emits the time-driven intents: unlocked when a sealed capsule's
// unlock time passes, and unlock_soon when it falls inside the
// upcoming window. The cached column is advisory; reads always
// recompute, so a late pass only delays notifications, never
// correctness.
type UnlockSweep struct {
	repo       repository.CapsuleRepository
	recipients *recipientsvc.Service
	notifier   *notification.Service
	logger     *logger.Logger
	metrics    *metrics.Metrics
	soonWindow time.Duration

	// lookback bounds the unlocked scan so a pass after downtime still
	// picks up capsules that crossed their unlock time while no sweep
	// was running.
	lookback time.Duration
}

func NewUnlockSweep(
	repo repository.CapsuleRepository,
	recipients *recipientsvc.Service,
	notifier *notification.Service,
	logger *logger.Logger,
	m *metrics.Metrics,
	soonWindow time.Duration,
) *UnlockSweep {
	return &UnlockSweep{
		repo:       repo,
		recipients: recipients,
		notifier:   notifier,
		logger:     logger,
		metrics:    m,
		soonWindow: soonWindow,
		lookback:   30 * 24 * time.Hour,
	}
}

func (s *UnlockSweep) Name() string { return "unlock_sweep" }

func (s *UnlockSweep) Run(ctx context.Context, now time.Time) error {
	if err := s.markUnlocked(ctx, now); err != nil {
		return err
	}
	if s.soonWindow > 0 {
		if err := s.warnUnlockSoon(ctx, now); err != nil {
			s.logger.Error(err, "unlock_soon pass failed")
		}
	}

	expired, err := s.repo.MarkExpiredDue(ctx, now)
	if err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}
	if expired > 0 {
		s.logger.ZL.Info().Int64("count", expired).Msg("capsules marked expired")
	}
	return nil
}

// markUnlocked flips sealed capsules past their unlock time to ready
// and notifies their recipients. MarkReady is conditional on the row
// still being sealed, which gates the notification to the pass that
// actually performed the transition.
func (s *UnlockSweep) markUnlocked(ctx context.Context, now time.Time) error {
	due, err := s.repo.ListSealedUnlockingBetween(ctx, now.Add(-s.lookback), now)
	if err != nil {
		return fmt.Errorf("list due capsules: %w", err)
	}

	var flipped int64
	for _, c := range due {
		won, err := s.repo.MarkReady(ctx, c.ID, now)
		if err != nil {
			s.logger.Error(err, "failed to mark capsule ready", "capsule_id", c.ID.String())
			continue
		}
		if !won {
			continue
		}
		flipped++

		userID, err := s.recipients.LinkedUserID(ctx, c.RecipientID)
		if err != nil {
			s.logger.Error(err, "failed to resolve recipient", "capsule_id", c.ID.String())
			continue
		}
		if userID == nil {
			continue
		}
		if _, err := s.notifier.EmitUnlockedForRecipient(ctx, *userID, c, now); err != nil {
			s.logger.Error(err, "failed to emit unlocked intent", "capsule_id", c.ID.String())
		}
	}

	if flipped > 0 {
		if s.metrics != nil {
			s.metrics.SweepRowsSwept.WithLabelValues(s.Name()).Add(float64(flipped))
		}
		s.logger.ZL.Info().Int64("count", flipped).Msg("capsules transitioned to ready")
	}
	return nil
}

// warnUnlockSoon notifies recipients of capsules unlocking within the
// window. The window overlaps across passes; the intent store's unique
// constraint collapses the repeats.
func (s *UnlockSweep) warnUnlockSoon(ctx context.Context, now time.Time) error {
	upcoming, err := s.repo.ListSealedUnlockingBetween(ctx, now, now.Add(s.soonWindow))
	if err != nil {
		return fmt.Errorf("list upcoming capsules: %w", err)
	}

	for _, c := range upcoming {
		userID, err := s.recipients.LinkedUserID(ctx, c.RecipientID)
		if err != nil {
			s.logger.Error(err, "failed to resolve recipient", "capsule_id", c.ID.String())
			continue
		}
		if userID == nil {
			continue
		}
		if _, err := s.notifier.EmitUnlockSoon(ctx, *userID, c, now); err != nil {
			s.logger.Error(err, "failed to emit unlock_soon intent", "capsule_id", c.ID.String())
		}
	}
	return nil
}
