// Package coachservice wires configuration, storage, the completion upstream
// and the HTTP API into a runnable service.
package coachservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/coachloop/coachloop/server/internal/api"
	"github.com/coachloop/coachloop/server/internal/auth"
	"github.com/coachloop/coachloop/server/internal/coach"
	"github.com/coachloop/coachloop/server/internal/completion"
	"github.com/coachloop/coachloop/server/internal/config"
	"github.com/coachloop/coachloop/server/internal/health"
	"github.com/coachloop/coachloop/server/internal/platform/logger"
	"github.com/coachloop/coachloop/server/internal/services"
	"github.com/coachloop/coachloop/server/internal/store"
	"github.com/coachloop/coachloop/server/internal/store/postgres"
	"github.com/coachloop/coachloop/server/internal/store/sqlite"
)

// Run starts the coach service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("coach-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("completion_model", cfg.CompletionModel).
		Msg("Coach service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Store adapter unavailable")
		return err
	}

	router := buildRouter(st, cfg)

	// Start health checkers and bind service health
	startHealthCheckers(ctx, cfg, log, st)

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

// newStore selects the configured persistence adapter. Exactly one adapter is
// active per deployment.
func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		if err := postgres.Bootstrap(ctx, cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("postgres bootstrap: %w", err)
		}
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("using postgres store")
		return postgres.NewWithDB(db), nil
	case "sqlite":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(st store.Store, cfg *config.Config) http.Handler {
	catalog := coach.NewCatalog()
	tokens := auth.NewTokenManager(
		cfg.JWTAccessSecret,
		cfg.JWTRefreshSecret,
		time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute,
		time.Duration(cfg.RefreshTokenTTLHours)*time.Hour,
	)
	completions := completion.NewOpenAIClient(completion.OpenAIOptions{
		BaseURL:     cfg.CompletionBaseURL,
		APIKey:      cfg.CompletionAPIKey,
		Model:       cfg.CompletionModel,
		MaxTokens:   cfg.CompletionMaxTokens,
		Temperature: cfg.CompletionTemperature,
		Timeout:     time.Duration(cfg.CompletionTimeoutSeconds) * time.Second,
	})

	accounts := services.NewAccountService(st, tokens)
	users := services.NewUserService(st)
	sessions := services.NewSessionService(st, catalog)
	chat := services.NewChatService(st, catalog, completions, cfg.FreeDailyLimit)
	entitlements := services.NewEntitlementService(st, logger.New("entitlements"))

	return api.NewRouter(api.RouterDeps{
		Auth:     api.NewAuthHandler(accounts),
		Coaches:  api.NewCoachHandler(catalog),
		Sessions: api.NewSessionHandler(sessions, chat),
		Me:       api.NewMeHandler(users),
		Webhooks: api.NewWebhookHandler(entitlements, cfg.RevenueCatWebhookSecret),
		Tokens:   tokens,
	})
}

// startHealthCheckers starts component checkers and the service-level
// aggregator; binds health into the API.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
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

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
