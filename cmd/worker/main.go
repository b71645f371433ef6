package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openon-app/capsule-api/internal/config"
	"github.com/openon-app/capsule-api/internal/email"
	"github.com/openon-app/capsule-api/internal/repository/postgres"
	notificationService "github.com/openon-app/capsule-api/internal/service/notification"
	recipientService "github.com/openon-app/capsule-api/internal/service/recipient"
	internalworker "github.com/openon-app/capsule-api/internal/worker"
	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/messaging/redis"
	"github.com/openon-app/capsule-api/pkg/metrics"
	"github.com/openon-app/capsule-api/pkg/worker"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if err := postgres.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatal(err, "failed to run migrations")
	}

	m := metrics.New("openon_worker")
	m.Register(prometheus.DefaultRegisterer)

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.ZL)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	// Repositories and services
	capsuleRepo := postgres.NewCapsuleRepository(db)
	recipientRepo := postgres.NewRecipientRepository(db)
	userRepo := postgres.NewUserRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	recipientSvc := recipientService.NewService(recipientRepo)
	notificationSvc := notificationService.NewService(notificationRepo, log, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sweep jobs
	runner := internalworker.NewRunner(log, m)
	runner.Add(internalworker.NewDisappearingSweep(
		capsuleRepo, recipientSvc, notificationSvc, log, m, cfg.Sweep.WarningWindow,
	), cfg.Sweep.DisappearingInterval)
	runner.Add(internalworker.NewUnlockSweep(
		capsuleRepo, recipientSvc, notificationSvc, log, m, cfg.Sweep.UnlockSoonWindow,
	), cfg.Sweep.UnlockInterval)
	runner.Add(internalworker.NewPremiumSweep(userRepo, log, m), cfg.Sweep.PremiumInterval)
	go runner.Start(ctx)

	// Notification dispatcher
	dispatcher := worker.NewDispatcher(
		notificationRepo,
		userRepo,
		broker,
		email.NewSender(cfg.Email, log),
		worker.DispatcherConfig{
			BatchSize:     cfg.Dispatch.BatchSize,
			PollInterval:  cfg.Dispatch.PollInterval,
			RetryAttempts: cfg.Dispatch.RetryAttempts,
			RetryDelay:    cfg.Dispatch.RetryDelay,
		},
		log,
		m,
	)
	go dispatcher.Start(ctx)

	setupHealthCheck(log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down worker...")
	cancel()
}

func setupHealthCheck(log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			log.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}
