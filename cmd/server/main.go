package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/database"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/jobs"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/logging"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/pi"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/routes"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewJSONHandler(os.Stdout),
		pgLogHandler,
	)))

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	st := store.NewGormStore(db)
	piClient := pi.NewClient(pi.Config{
		BaseURL:        cfg.PiAPIURL,
		APIKey:         cfg.PiAPIKey,
		Timeout:        cfg.PiTimeout,
		MaxRetries:     cfg.PiMaxRetries,
		RetryBaseDelay: cfg.PiRetryBaseDelay,
		RateLimit:      cfg.PiRateLimit,
	}, slog.Default().With("component", "pi"))
	slog.Info("pi client configured", "base_url", cfg.PiAPIURL, "sandbox", cfg.PiSandbox)

	// Services
	economy := services.NewEconomyService(st, cfg.Game)
	authService := services.NewAuthService(st, cfg, piClient)
	userService := services.NewUserService(st, economy, cfg.Game)
	questService := services.NewQuestService(st, economy, cfg.Game)
	marketService := services.NewMarketplaceService(st, economy)
	txService := services.NewTransactionService(st)
	paymentService := services.NewPaymentService(st, economy, piClient)
	settingsService := services.NewSettingsService(st)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := settingsService.Seed(seedCtx, cfg.Game); err != nil {
		slog.Error("failed to seed game settings", "error", err)
	}
	cancelSeed()

	// Background jobs
	scheduler, err := jobs.NewScheduler(jobs.Options{
		ReconcileSchedule: cfg.ReconcileSchedule,
		ReconcileAfter:    cfg.ReconcileAfter,
		LogRetentionDays:  cfg.LogRetentionDays,
	}, paymentService, func(ctx context.Context, cutoff time.Time) (int64, error) {
		return logging.PurgeBefore(ctx, db, cutoff)
	})
	if err != nil {
		slog.Error("failed to configure jobs", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	// Routes
	routes.Setup(app, cfg, st, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, userService),
		Health:       handlers.NewHealthHandler(st),
		Users:        handlers.NewUserHandler(userService),
		Quests:       handlers.NewQuestHandler(questService),
		Marketplace:  handlers.NewMarketplaceHandler(marketService),
		Transactions: handlers.NewTransactionHandler(txService),
		Payments:     handlers.NewPaymentHandler(paymentService),
		Settings:     handlers.NewSettingsHandler(settingsService),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")
	shutdown(app, scheduler, pgLogHandler, db)
	slog.Info("server stopped")
}

func shutdown(app *fiber.App, scheduler *jobs.Scheduler, pgLogHandler *logging.PGHandler, db *gorm.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	scheduler.Stop(ctx)

	// Restore stdout-only logging before the PG sink goes away.
	slog.SetDefault(slog.New(logging.NewJSONHandler(os.Stdout)))
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{Error: message})
}
