// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/auth"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/config"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/database"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/handler"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/logging"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/notify"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/ratelimit"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/repository"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/service"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// ── 1. Storage ───────────────────────────────────────────────────────
	var (
		events        repository.EventStore
		registrations repository.RegistrationStore
	)
	switch cfg.Store {
	case "memory":
		store := repository.NewMemoryStore()
		events, registrations = store, store
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		events = repository.NewEventRepository(pool)
		registrations = repository.NewRegistrationRepository(pool, cfg.Database.LockTimeout)
		logger.Info("connected to postgres", "host", cfg.Database.Host, "db", cfg.Database.Name)
	}

	// ── 2. Redis-backed rate limiter and notifications ───────────────────
	var (
		limiter handler.Limiter
		bus     message.Publisher
	)
	if cfg.Redis.Enabled() {
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limiter = ratelimit.New(client, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if bus, err = notify.NewRedisStream(client, logger); err != nil {
			return err
		}
		logger.Info("connected to redis", "rate_limit", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window)
	} else {
		ch := notify.NewInProcess(logger)
		if err := logChanges(ctx, ch, logger); err != nil {
			return err
		}
		bus = ch
		logger.Warn("redis not configured, rate limiting disabled")
	}
	publisher := notify.NewPublisher(bus)
	defer publisher.Close()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(events, registrations)
	regSvc := service.NewRegistrationService(registrations, ledger.New(logger), publisher, logger)

	router := handler.NewRouter(handler.Config{
		Events:        eventSvc,
		Registrations: regSvc,
		Auth:          auth.New(cfg.JWTSecret, cfg.UserHeader),
		Limiter:       limiter,
		Logger:        logger,
		CORSOrigin:    cfg.CORSAllowedOrigin,
		UserHeader:    cfg.UserHeader,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Environment, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newRedisClient(cfg config.Redis) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return redis.NewClient(opts), nil
}

// logChanges consumes the in-process bus so committed transitions are still
// visible in the log when no external stream is configured.
func logChanges(ctx context.Context, sub message.Subscriber, logger *slog.Logger) error {
	msgs, err := sub.Subscribe(ctx, notify.TopicRegistrationChanged)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", notify.TopicRegistrationChanged, err)
	}
	go func() {
		for msg := range msgs {
			c, err := notify.Decode(msg)
			if err != nil {
				logger.Warn("drop malformed change", "error", err)
			} else {
				logger.Debug("registration changed",
					"registration_id", c.RegistrationID,
					"event_id", c.EventID,
					"state", c.State,
					"available_seats", c.AvailableSeats,
				)
			}
			msg.Ack()
		}
	}()
	return nil
}
