// Package config loads runtime configuration from the environment, with an
// optional YAML overlay for deployments that prefer files over env vars.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Config is the top-level runtime configuration shared by the server, the
// worker, and the beat process.
type Config struct {
	Server     ServerConfig         `yaml:"server"`
	Database   DatabaseConfig       `yaml:"database"`
	Redis      RedisConfig          `yaml:"redis"`
	Auth       AuthConfig           `yaml:"auth"`
	Google     GoogleConfig         `yaml:"google"`
	Recognizer RecognizerConfig     `yaml:"recognizer"`
	CORS       CORSConfig           `yaml:"cors"`
	RateLimit  RateLimitConfig      `yaml:"rate_limit"`
	Worker     WorkerConfig         `yaml:"worker"`
	Superuser  SuperuserConfig      `yaml:"superuser"`
	Logging    logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST,default=0.0.0.0"`
	Port            int           `yaml:"port" env:"PORT,default=8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
}

// Addr returns the host:port the server binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"POSTGRES_HOST,default=postgres"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT,default=5432"`
	User            string        `yaml:"user" env:"POSTGRES_USER,default=postgres"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD"`
	Name            string        `yaml:"name" env:"POSTGRES_DB,default=sudoku_arena"`
	SSLMode         string        `yaml:"ssl_mode" env:"POSTGRES_SSLMODE,default=disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"POSTGRES_MAX_OPEN_CONNS,default=25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"POSTGRES_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME,default=5m"`
	ConnectAttempts int           `yaml:"connect_attempts" env:"POSTGRES_CONNECT_ATTEMPTS,default=10"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" env:"POSTGRES_CONNECT_BACKOFF,default=2s"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig describes the Redis connection used for the task queue, the
// status pub/sub channel, and the cache.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL,default=redis://redis:6379/0"`
}

// AuthConfig holds JWT signing parameters.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL,default=60m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL,default=24h"`
}

// GoogleConfig holds Google OAuth credentials. Both fields empty disables the
// /api/auth/google endpoint.
type GoogleConfig struct {
	ClientID    string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	Secret      string `yaml:"secret" env:"GOOGLE_SECRET"`
	RedirectURL string `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URL"`
}

// RecognizerConfig points at the external grid-recognition service. An empty
// URL leaves image detection tasks failing with an explanatory error.
type RecognizerConfig struct {
	URL     string        `yaml:"url" env:"RECOGNIZER_URL"`
	APIKey  string        `yaml:"api_key" env:"RECOGNIZER_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"RECOGNIZER_TIMEOUT,default=30s"`
}

// CORSConfig lists the allowed browser origins, comma separated in the env.
type CORSConfig struct {
	Origins []string `yaml:"origins" env:"CORS_ALLOWED_ORIGINS,default=*"`
}

// RateLimitConfig throttles requests per client (user ID or client IP).
type RateLimitConfig struct {
	PerSecond int `yaml:"per_second" env:"RATE_LIMIT_PER_SECOND,default=20"`
	Burst     int `yaml:"burst" env:"RATE_LIMIT_BURST,default=40"`
}

// WorkerConfig tunes the background task runner.
type WorkerConfig struct {
	DequeueTimeout   time.Duration `yaml:"dequeue_timeout" env:"WORKER_DEQUEUE_TIMEOUT,default=5s"`
	SolveTimeout     time.Duration `yaml:"solve_timeout" env:"WORKER_SOLVE_TIMEOUT,default=2m"`
	CleanupRetention time.Duration `yaml:"cleanup_retention" env:"CLEANUP_RETENTION,default=24h"`
}

// SuperuserConfig seeds an initial staff account on startup when set.
type SuperuserConfig struct {
	Email    string `yaml:"email" env:"SUPERUSER_EMAIL"`
	Password string `yaml:"password" env:"SUPERUSER_PASSWORD"`
}

// Load reads a .env file when present, decodes the environment, applies the
// optional CONFIG_FILE overlay, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the invariants the services depend on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Database.ConnectAttempts < 1 {
		return fmt.Errorf("database connect attempts must be positive")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Recognizer.URL != "" && !strings.HasPrefix(c.Recognizer.URL, "http") {
		return fmt.Errorf("recognizer URL %q is not an HTTP endpoint", c.Recognizer.URL)
	}
	return nil
}

// GoogleEnabled reports whether Google OAuth credentials are configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.Secret != ""
}
