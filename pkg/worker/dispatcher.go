package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openon-app/capsule-api/internal/email"
	"github.com/openon-app/capsule-api/internal/model"
	"github.com/openon-app/capsule-api/internal/repository"
	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/messaging"
	"github.com/openon-app/capsule-api/pkg/metrics"
)

const notificationsChannel = "notifications"

type DispatcherConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Dispatcher drains pending notification intents and hands them to
// delivery: a broker publish for in-app consumers and an email when the
// user has an address. Intents that exhaust their retries are marked
// failed and never picked up again.
type Dispatcher struct {
	repo    repository.NotificationRepository
	users   repository.UserRepository
	broker  messaging.Broker
	email   email.Sender
	config  DispatcherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	broker messaging.Broker,
	sender email.Sender,
	config DispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Dispatcher {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &Dispatcher{
		repo:    repo,
		users:   users,
		broker:  broker,
		email:   sender,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("Starting notification dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Shutting down notification dispatcher")
			return
		case <-ticker.C:
			if err := d.dispatchBatch(ctx); err != nil {
				d.logger.Error(err, "Failed to dispatch notifications")
			}
		}
	}
}

func (d *Dispatcher) dispatchBatch(ctx context.Context) error {
	intents, err := d.repo.ListPending(ctx, d.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}

	for _, n := range intents {
		if err := d.dispatch(ctx, n); err != nil {
			d.logger.Error(err, "Failed to dispatch notification",
				"notification_id", n.ID.String(),
				"kind", string(n.Kind))
			continue
		}
	}

	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, n *model.Notification) error {
	err := retry(d.config.RetryAttempts, d.config.RetryDelay, func() error {
		return d.deliver(ctx, n)
	})

	if err != nil {
		if d.metrics != nil {
			d.metrics.IntentsDispatchFailed.Inc()
		}
		if updateErr := d.repo.MarkFailed(ctx, n.ID, err.Error()); updateErr != nil {
			d.logger.Error(updateErr, "Failed to mark notification failed")
		}
		return err
	}

	if d.metrics != nil {
		d.metrics.IntentsDispatched.Inc()
	}
	if err := d.repo.MarkSent(ctx, n.ID, time.Now()); err != nil {
		d.logger.Error(err, "Failed to mark notification sent", "notification_id", n.ID.String())
		return err
	}

	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification) error {
	if err := d.broker.Publish(ctx, notificationsChannel, messaging.Message{
		Type:    string(n.Kind),
		Payload: n,
	}); err != nil {
		return fmt.Errorf("broker publish: %w", err)
	}

	user, err := d.users.Get(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// The account is gone; the broker publish already happened
			// and there is no address left to mail.
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.Email == "" {
		return nil
	}
	if err := d.email.Send(user.Email, n.Title, n.Body); err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	return nil
}

// Helper retry function
func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
