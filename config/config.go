/*
config.go - Server configuration

Every setting is a command-line flag whose default comes from the
environment, so `-port=3000` beats `PORT=3000` which beats the built-in
default. A `.env` file in the working directory is loaded first when present.

FLAGS (ENV):
  -port          (PORT)                         HTTP port, default 8080
  -driver        (DATABASE_DRIVER)              sqlite | postgres, default sqlite
  -db            (DATABASE_URL)                 SQLite path or Postgres URL, default booking.db
  -redis         (REDIS_ADDR)                   Redis address for cross-instance slot locks
  -rate-rps      (RATE_LIMIT_RPS)               Requests per second per client, 0 disables
  -rate-burst    (RATE_LIMIT_BURST)             Burst per client, default 20
  -timeout       (OPERATION_TIMEOUT)            Per-operation bound, default 10s
  -jwt-secret    (AUTH_JWT_SECRET)              HS256 secret; empty trusts X-Actor-ID
  -otlp          (OTEL_EXPORTER_OTLP_ENDPOINT)  Collector host:port; empty disables export
  -cors          (CORS_ALLOWED_ORIGINS)         Comma-separated origins
  -scenario      (SCENARIO)                     Demo data to load at startup
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port             int
	Driver           string
	DatabaseURL      string
	RedisAddr        string
	RateLimitRPS     float64
	RateLimitBurst   int
	OperationTimeout time.Duration
	JWTSecret        string
	OTLPEndpoint     string
	AllowedOrigins   []string
	Scenario         string
}

// LoadDotEnv reads .env files into the environment. Missing files are fine.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Parse builds a Config from args (without the program name) and the
// current environment.
func Parse(args []string) (Config, error) {
	var (
		cfg     Config
		origins string
	)
	flags := flag.NewFlagSet("server", flag.ContinueOnError)

	flags.IntVar(&cfg.Port, "port", envInt("PORT", 8080), "HTTP server port")
	flags.StringVar(&cfg.Driver, "driver", env("DATABASE_DRIVER", DriverSQLite), "storage driver: sqlite or postgres")
	flags.StringVar(&cfg.DatabaseURL, "db", env("DATABASE_URL", "booking.db"), "SQLite path (\":memory:\" allowed) or Postgres URL")
	flags.StringVar(&cfg.RedisAddr, "redis", env("REDIS_ADDR", ""), "Redis address for distributed slot locks")
	flags.Float64Var(&cfg.RateLimitRPS, "rate-rps", envFloat("RATE_LIMIT_RPS", 0), "requests per second per client (0 disables)")
	flags.IntVar(&cfg.RateLimitBurst, "rate-burst", envInt("RATE_LIMIT_BURST", 20), "burst per client")
	flags.DurationVar(&cfg.OperationTimeout, "timeout", envDuration("OPERATION_TIMEOUT", 10*time.Second), "per-operation timeout")
	flags.StringVar(&cfg.JWTSecret, "jwt-secret", env("AUTH_JWT_SECRET", ""), "HS256 secret for bearer tokens")
	flags.StringVar(&cfg.OTLPEndpoint, "otlp", env("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP/gRPC collector host:port")
	flags.StringVar(&origins, "cors", env("CORS_ALLOWED_ORIGINS", ""), "comma-separated allowed origins")
	flags.StringVar(&cfg.Scenario, "scenario", env("SCENARIO", ""), "demo scenario to load at startup")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitList(origins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be a valid TCP port (got %d)", c.Port)
	}
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q", c.Driver)
	}
	if c.DatabaseURL == "" {
		return errors.New("database location is required")
	}
	if c.RateLimitRPS < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return errors.New("rate limit burst must be at least 1")
	}
	if c.OperationTimeout <= 0 {
		return errors.New("operation timeout must be positive")
	}
	return nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(env(key, "")); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(env(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(env(key, "")); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
