package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/openon-app/capsule-api/internal/repository"
	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/metrics"
)

// PremiumSweep reconciles the cached is_premium flag against each
// user's premium_until timestamp. Entitlement checks read the
// timestamp directly; the flag only exists for cheap filtering.
type PremiumSweep struct {
	users   repository.UserRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewPremiumSweep(users repository.UserRepository, logger *logger.Logger, m *metrics.Metrics) *PremiumSweep {
	return &PremiumSweep{users: users, logger: logger, metrics: m}
}

func (s *PremiumSweep) Name() string { return "premium_refresh" }

func (s *PremiumSweep) Run(ctx context.Context, now time.Time) error {
	updated, err := s.users.RefreshPremiumFlags(ctx, now)
	if err != nil {
		return fmt.Errorf("refresh premium flags: %w", err)
	}
	if updated > 0 {
		if s.metrics != nil {
			s.metrics.SweepRowsSwept.WithLabelValues(s.Name()).Add(float64(updated))
		}
		s.logger.ZL.Info().Int64("count", updated).Msg("premium flags refreshed")
	}
	return nil
}
