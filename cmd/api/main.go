package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openon-app/capsule-api/internal/config"
	capsuleHandler "github.com/openon-app/capsule-api/internal/handler/capsule"
	healthHandler "github.com/openon-app/capsule-api/internal/handler/health"
	notificationHandler "github.com/openon-app/capsule-api/internal/handler/notification"
	recipientHandler "github.com/openon-app/capsule-api/internal/handler/recipient"
	"github.com/openon-app/capsule-api/internal/middleware"
	"github.com/openon-app/capsule-api/internal/repository/postgres"
	"github.com/openon-app/capsule-api/internal/router"
	capsuleService "github.com/openon-app/capsule-api/internal/service/capsule"
	notificationService "github.com/openon-app/capsule-api/internal/service/notification"
	recipientService "github.com/openon-app/capsule-api/internal/service/recipient"
	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/metrics"
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

	m := metrics.New("openon")
	m.Register(prometheus.DefaultRegisterer)

	// Repositories
	capsuleRepo := postgres.NewCapsuleRepository(db)
	recipientRepo := postgres.NewRecipientRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Services
	recipientSvc := recipientService.NewService(recipientRepo)
	notificationSvc := notificationService.NewService(notificationRepo, log, m)
	capsuleSvc := capsuleService.NewService(capsuleRepo, recipientSvc, notificationSvc, log, m)

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	capsuleH := capsuleHandler.NewHandler(capsuleSvc)
	recipientH := recipientHandler.NewHandler(recipientSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc)
	healthH := healthHandler.NewHandler(db)

	r := router.NewRouter(
		authMiddleware,
		log.ZL,
		healthH,
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimitRPS:     cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst:   cfg.RateLimit.Burst,
			MetricsEnabled:   cfg.Server.MetricsEnabled,
			MetricsPrefix:    "openon_http",
		},
		capsuleH,
		recipientH,
		notificationH,
	)
	r.RegisterMetrics(prometheus.DefaultRegisterer)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
