package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/HonoraryIndians/axon-sub001/internal/config"
	"github.com/HonoraryIndians/axon-sub001/internal/handler"
	"github.com/HonoraryIndians/axon-sub001/internal/repository"
	"github.com/HonoraryIndians/axon-sub001/internal/service"
	"github.com/HonoraryIndians/axon-sub001/internal/validator"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DB.RunMigrations {
		if err := database.Migrate(cfg.DB.URL()); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Repositories
	activityRepo := repository.NewActivityRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	profileRepo := repository.NewUserProfileRepository(pool)
	activityLogRepo := repository.NewActivityLogRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	purchaseRepo := repository.NewPurchaseRepository(pool)
	retryQueue := repository.NewRetryQueueRepository(pool)
	failureRepo := repository.NewFailureLogRepository(pool)

	// Services
	activityLogger := service.NewActivityLogger(activityLogRepo, cfg.ActivityLog.Buffer)
	issuer := service.NewTokenIssuer(cfg.Token.Secret, cfg.Token.Validity)
	ledger := service.NewCapacityLedger(pool, activityRepo, participantRepo, profileRepo, activityLogger)
	admissionService := service.NewAdmissionService(ledger, issuer, tokenRepo)
	executor := service.NewPaymentExecutor(issuer, tokenRepo, purchaseRepo, activityRepo)
	failureLog := service.NewFailureLogService(failureRepo, retryQueue, cfg.Replay.Rate, cfg.Replay.Burst)
	coordinator := service.NewRetryCoordinator(retryQueue, executor, failureLog, service.RetryCoordinatorConfig{
		PollInterval:      cfg.Retry.PollInterval,
		BatchSize:         cfg.Retry.BatchSize,
		Workers:           cfg.Retry.Workers,
		VisibilityTimeout: cfg.Retry.VisibilityTimeout,
	})
	paymentService := service.NewPaymentService(executor, retryQueue, coordinator)
	activityService := service.NewActivityService(activityRepo, participantRepo)
	janitor := service.NewTokenJanitor(tokenRepo, cfg.Token.Retention, cfg.Token.SweepInterval)

	app := fiber.New(fiber.Config{
		AppName:               "Campaign Admission Service",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	validate := validator.New()
	handler.Register(app, handler.Handlers{
		Health:     handler.NewHealthHandler(pool),
		Admission:  handler.NewAdmissionHandler(admissionService, validate),
		Payment:    handler.NewPaymentHandler(paymentService, validate),
		Activity:   handler.NewActivityHandler(activityService, validate),
		FailureLog: handler.NewFailureLogHandler(failureLog, validate),
	})

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		return app.Listen(":" + cfg.Server.Port)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Waits for in-flight requests
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during server shutdown")
		}
		return nil
	})

	g.Go(func() error {
		return coordinator.Run(gctx)
	})

	g.Go(func() error {
		return janitor.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("service stopped with error")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := activityLogger.Close(drainCtx); err != nil {
		log.Warn().Err(err).Msg("activity log not fully drained")
	}

	// Close database pool last, after every writer has stopped
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
		return
	}

	// JSON output for production
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
