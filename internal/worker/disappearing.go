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

// DisappearingSweep soft-deletes opened disappearing capsules whose
// deadline has passed, and warns recipients shortly before. The delete
// is one set-based conditional update, so re-running a pass is a no-op:
// rows already stamped fail the deleted_at IS NULL filter.
type DisappearingSweep struct {
	repo          repository.CapsuleRepository
	recipients    *recipientsvc.Service
	notifier      *notification.Service
	logger        *logger.Logger
	metrics       *metrics.Metrics
	warningWindow time.Duration
}

func NewDisappearingSweep(
	repo repository.CapsuleRepository,
	recipients *recipientsvc.Service,
	notifier *notification.Service,
	logger *logger.Logger,
	m *metrics.Metrics,
	warningWindow time.Duration,
) *DisappearingSweep {
	return &DisappearingSweep{
		repo:          repo,
		recipients:    recipients,
		notifier:      notifier,
		logger:        logger,
		metrics:       m,
		warningWindow: warningWindow,
	}
}

func (s *DisappearingSweep) Name() string { return "disappearing_cleanup" }

func (s *DisappearingSweep) Run(ctx context.Context, now time.Time) error {
	if s.warningWindow > 0 {
		if err := s.warn(ctx, now); err != nil {
			// Warnings are best-effort; deletion must still happen.
			s.logger.Error(err, "disappearing warnings failed")
		}
	}

	swept, err := s.repo.SoftDeleteDueDisappearing(ctx, now)
	if err != nil {
		return fmt.Errorf("disappearing cleanup: %w", err)
	}
	if swept > 0 {
		if s.metrics != nil {
			s.metrics.SweepRowsSwept.WithLabelValues(s.Name()).Add(float64(swept))
		}
		s.logger.ZL.Info().Int64("count", swept).Msg("disappearing capsules soft-deleted")
	}
	return nil
}

// warn emits a disappearing_warning for capsules whose deadline falls
// inside the upcoming window. Dedup is the notification store's unique
// constraint, so overlapping windows across passes are harmless.
func (s *DisappearingSweep) warn(ctx context.Context, now time.Time) error {
	expiring, err := s.repo.ListDisappearingExpiringBetween(ctx, now, now.Add(s.warningWindow))
	if err != nil {
		return err
	}

	for _, c := range expiring {
		userID, err := s.recipients.LinkedUserID(ctx, c.RecipientID)
		if err != nil {
			s.logger.Error(err, "failed to resolve recipient for warning", "capsule_id", c.ID.String())
			continue
		}
		if userID == nil {
			continue
		}
		deleteAt := c.OpenedAt.Add(c.DisappearingDuration())
		if _, err := s.notifier.EmitDisappearingWarning(ctx, *userID, c, deleteAt, now); err != nil {
			s.logger.Error(err, "failed to emit disappearing warning", "capsule_id", c.ID.String())
		}
	}
	return nil
}
