package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/appointment-scheduler/internal/application"
	"github.com/example/appointment-scheduler/internal/config"
	httptransport "github.com/example/appointment-scheduler/internal/http"
	"github.com/example/appointment-scheduler/internal/jobs"
	"github.com/example/appointment-scheduler/internal/mail"
	"github.com/example/appointment-scheduler/internal/persistence/sqlite"
	"github.com/example/appointment-scheduler/internal/persistence/sqlite/migration"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	migrator := migration.NewManager(migration.NewScanner(), migration.NewExecutor(pool.DB()), cfg.MigrationDir, logger)
	if err := migrator.Run(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	userRepo := sqlite.NewUserRepository(pool)
	availabilityRepo := sqlite.NewAvailabilityRepository(pool)
	timeOffRepo := sqlite.NewTimeOffRepository(pool)
	topicRepo := sqlite.NewTopicRepository(pool)
	bookingRepo := sqlite.NewBookingRepository(pool)
	batchRepo := sqlite.NewBatchConfigRepository(pool)
	departmentRepo := sqlite.NewDepartmentRepository(pool)
	settingsRepo := sqlite.NewSettingsRepository(pool)

	idGenerator := uuid.NewString
	tokenGenerator := uuid.NewString
	now := time.Now

	var notifier application.BookingNotifier
	if cfg.MailEnabled() {
		notifier = mail.NewMailer(cfg.SMTPAddr, cfg.SMTPFrom, logger)
	} else {
		logger.Info("SMTP not configured, booking mail disabled")
		notifier = mail.NewNoopMailer(logger)
	}

	batchService := application.NewBatchServiceWithLogger(batchRepo, availabilityRepo, topicRepo, departmentRepo, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(userRepo, []byte(cfg.JWTSecret), cfg.TokenTTL, now, logger)
	userService := application.NewUserServiceWithLogger(userRepo, availabilityRepo, batchService, idGenerator, now, logger)
	availabilityService := application.NewAvailabilityServiceWithLogger(availabilityRepo, idGenerator, now, logger)
	timeOffService := application.NewTimeOffServiceWithLogger(timeOffRepo, idGenerator, now, logger)
	topicService := application.NewTopicServiceWithLogger(topicRepo, idGenerator, now, logger)
	slotService := application.NewSlotServiceWithLogger(topicRepo, availabilityRepo, timeOffRepo, bookingRepo, settingsRepo, now, logger)
	bookingService := application.NewBookingServiceWithLogger(bookingRepo, topicRepo, userRepo, settingsRepo, notifier, idGenerator, tokenGenerator, now, logger)
	departmentService := application.NewDepartmentServiceWithLogger(departmentRepo, batchService, idGenerator, now, logger)
	settingsService := application.NewSettingsServiceWithLogger(settingsRepo, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, logger),
		TimeOff:      httptransport.NewTimeOffHandler(timeOffService, logger),
		Topics:       httptransport.NewTopicHandler(topicService, logger),
		Bookings:     httptransport.NewBookingHandler(bookingService, logger),
		Departments:  httptransport.NewDepartmentHandler(departmentService, logger),
		Batches:      httptransport.NewBatchHandler(batchService, logger),
		Settings:     httptransport.NewSettingsHandler(settingsService, logger),
		Public: httptransport.NewPublicHandler(httptransport.PublicHandlerConfig{
			Slots:       slotService,
			Bookings:    bookingService,
			Directory:   userService,
			Topics:      topicService,
			Departments: departmentService,
			Settings:    settingsService,
			Logger:      logger,
		}),
		RequireAuth:  httptransport.RequireAuth(authService, logger),
		RequireAdmin: httptransport.RequireAdmin(logger),
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	sweeper := jobs.NewRunner(bookingService, cfg.ReminderInterval, cfg.ArchiveInterval, logger)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("appointment API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
