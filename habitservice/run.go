// Package habitservice boots the habit tracking HTTP service.
package habitservice

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainhabit/chainhabit/internal/api"
	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/config"
	"github.com/chainhabit/chainhabit/internal/health"
	"github.com/chainhabit/chainhabit/internal/logger"
	"github.com/chainhabit/chainhabit/internal/mailer"
	"github.com/chainhabit/chainhabit/internal/metrics"
	"github.com/chainhabit/chainhabit/internal/reminder"
	"github.com/chainhabit/chainhabit/internal/services"
	"github.com/chainhabit/chainhabit/internal/store"
	"github.com/chainhabit/chainhabit/internal/store/postgres"
	"github.com/chainhabit/chainhabit/internal/store/sqlite"
)

// Run starts the habit service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("habit-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Habit service starting")

	// Cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, db, err := newStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	met := metrics.New("habit_service")
	notifier := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.FromAddress,
	}, log)

	authorizer := auth.NewAuthorizer(st, time.Duration(cfg.TokenTTLHours)*time.Hour)
	userSvc := services.NewUserService(st, authorizer, notifier, log, cfg.BcryptCost, cfg.FrontendURL)
	habitSvc := services.NewHabitService(st, log)
	insightSvc := services.NewInsightService(st)

	svcHealth := startHealthCheckers(ctx, cfg, log, st)

	router := api.NewRouter(api.Deps{
		Users:      userSvc,
		Habits:     habitSvc,
		Insights:   insightSvc,
		Authorizer: authorizer,
		IsHealthy:  svcHealth.IsHealthy,
		Metrics:    met,
		Log:        log,
	})

	// Block startup until the store reports healthy; fail fast otherwise.
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Err(err).Msg("startup health check failed")
		return err
	}

	if cfg.ReminderEnabled {
		worker := reminder.NewWorker(st, notifier, met, reminder.Config{
			Hour:        cfg.ReminderHour,
			FrontendURL: cfg.FrontendURL,
		}, log)
		go func() { _ = worker.Run(ctx) }()
	} else {
		log.Warn().Msg("inactivity reminder worker disabled")
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// newStore opens the configured database driver and wraps it in the store
// adapter. The *sql.DB is returned so the caller can close it on shutdown.
func newStore(cfg *config.Config, log zerolog.Logger) (store.Store, *sql.DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("HABITS_POSTGRES_DSN is required for the postgres driver")
		}
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error().Err(err).Msg("postgres unavailable")
			return nil, nil, err
		}
		return postgres.NewWithDB(db), db, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite unavailable")
			return nil, nil, err
		}
		return sqlite.NewWithDB(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// startHealthCheckers starts the component checkers and the service-level
// aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in
// seconds, interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup
// window expires. Checkers start unhealthy and need one probe cycle.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
