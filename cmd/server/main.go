/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the agency booking server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, parse flags (see config/config.go)
  2. Set up JSON logging and tracing
  3. Open the store (SQLite or Postgres)
  4. Pick the slot locker (Redis, Postgres advisory locks, or in-process)
  5. Build the booking service, API handler and router
  6. Start server with graceful shutdown

SLOT LOCKING:
  - REDIS_ADDR set:       Redis locks, safe across any number of instances
  - driver=postgres:      pg_advisory_lock per (agency, day)
  - otherwise:            in-process keyed mutex (single instance only)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush traces, close Redis and the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/booking.db"

  # Run with in-memory database and demo data
  ./server -db=":memory:" -scenario=busy-week

  # Run against Postgres with Redis locks
  DATABASE_DRIVER=postgres DATABASE_URL=postgres://... REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - booking/service.go: Booking operations
*/
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

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/warp/agency-booking/api"
	"github.com/warp/agency-booking/booking"
	"github.com/warp/agency-booking/config"
	"github.com/warp/agency-booking/store/postgres"
	"github.com/warp/agency-booking/store/redislock"
	"github.com/warp/agency-booking/store/sqlite"
	"github.com/warp/agency-booking/telemetry"
)

const serviceName = "agency-booking"

// backend is what both storage drivers provide.
type backend interface {
	booking.Store
	booking.DirectoryWriter
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("service", serviceName)
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    true,
		SampleRatio: 1,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace flush failed", "err", err)
		}
	}()

	// Initialize store and locker
	var (
		store  backend
		locker booking.SlotLocker = booking.NewKeyedMutex()
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		pg, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return err
		}
		defer pg.Close()
		store = pg
		locker = postgres.NewAdvisoryLocker(pool)
	default:
		lite, err := sqlite.New(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		defer lite.Close()
		store = lite
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		locker = redislock.New(rdb)
	}
	logger.Info("storage ready", "driver", cfg.Driver, "locker", fmt.Sprintf("%T", locker))

	svc := booking.NewService(store,
		booking.WithLocker(locker),
		booking.WithLogger(logger),
		booking.WithTimeout(cfg.OperationTimeout),
	)

	if cfg.Scenario != "" {
		res, err := api.LoadScenario(ctx, svc, store, cfg.Scenario)
		if err != nil {
			return fmt.Errorf("loading scenario %q: %w", cfg.Scenario, err)
		}
		logger.Info("scenario loaded", "scenario", res.ScenarioID, "agencies", res.AgencyIDs, "appointments", res.Appointments)
	}

	opts := api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      []byte(cfg.JWTSecret),
	}
	if cfg.RateLimitRPS > 0 {
		opts.Limiter = api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		opts.Limiter.StartJanitor(ctx, 2*time.Minute)
	}
	router := api.NewRouter(api.NewHandler(svc, store, logger), opts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
