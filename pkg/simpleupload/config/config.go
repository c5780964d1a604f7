package config

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-upload/pkg/simpleupload/sessions"
	pgsessions "github.com/tendant/simple-upload/pkg/simpleupload/sessions/postgres"
	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
	miniostore "github.com/tendant/simple-upload/pkg/simpleupload/storage/minio"
	s3store "github.com/tendant/simple-upload/pkg/simpleupload/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",
		Storage: StorageConfig{
			Provider: "custom",
		},
		MultipartBackend:      "s3",
		SessionsDatabaseURL:   "memory",
		SessionsMaxAge:        sessions.DefaultMaxAge,
		SessionsSweepInterval: time.Hour,
	}
}

// ServerConfig represents configuration for the upload server
type ServerConfig struct {
	Port        string `env:"PORT"`
	Environment string `env:"ENVIRONMENT"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL"`   // debug, info, warn, error

	Storage StorageConfig

	// MultipartBackend creates and aborts multipart sessions: "s3", "minio" or "none"
	MultipartBackend string `env:"MULTIPART_BACKEND"`

	// Session ledger: "memory" or a postgres:// URL
	SessionsDatabaseURL   string        `env:"SESSIONS_DATABASE_URL"`
	SessionsMaxAge        time.Duration `env:"SESSIONS_MAX_AGE"`
	SessionsSweepInterval time.Duration `env:"SESSIONS_SWEEP_INTERVAL"`

	CORSOrigins []string `env:"CORS_ORIGINS" env-separator:","`
}

// StorageConfig selects the object storage provider. Empty fields fall back
// to the provider's own environment variables.
type StorageConfig struct {
	Provider        string `env:"STORAGE_PROVIDER"`
	Bucket          string `env:"STORAGE_BUCKET"`
	Endpoint        string `env:"STORAGE_ENDPOINT"`
	Region          string `env:"STORAGE_REGION"`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"STORAGE_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"STORAGE_SESSION_TOKEN"`
	PathStyle       bool   `env:"STORAGE_PATH_STYLE"`
	AccountID       string `env:"STORAGE_ACCOUNT_ID"`
	Jurisdiction    string `env:"STORAGE_JURISDICTION"`
}

// WithEnv overrides fields from their environment variables. Unset
// variables keep the current value.
//
//	PORT, ENVIRONMENT, LOG_LEVEL
//	STORAGE_PROVIDER, STORAGE_BUCKET, STORAGE_ENDPOINT, STORAGE_REGION,
//	STORAGE_ACCESS_KEY_ID, STORAGE_SECRET_ACCESS_KEY, STORAGE_SESSION_TOKEN,
//	STORAGE_PATH_STYLE, STORAGE_ACCOUNT_ID, STORAGE_JURISDICTION
//	MULTIPART_BACKEND
//	SESSIONS_DATABASE_URL, SESSIONS_MAX_AGE, SESSIONS_SWEEP_INTERVAL
//	CORS_ORIGINS (comma separated)
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// Validate checks the configuration for consistency
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	validEnvs := map[string]bool{"development": true, "production": true, "testing": true}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, production, or testing)", c.Environment)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if !slices.Contains(storage.Providers(), c.Storage.Provider) {
		return fmt.Errorf("unknown storage provider: %s (must be one of %s)", c.Storage.Provider, strings.Join(storage.Providers(), ", "))
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket cannot be empty")
	}

	switch c.MultipartBackend {
	case "s3", "minio", "none":
	default:
		return fmt.Errorf("multipart backend must be 's3', 'minio' or 'none', got: %s", c.MultipartBackend)
	}

	if c.SessionsDatabaseURL != "memory" && !isPostgresURL(c.SessionsDatabaseURL) {
		return fmt.Errorf("unsupported SESSIONS_DATABASE_URL: %s (use 'memory' or 'postgres://...')", c.SessionsDatabaseURL)
	}
	if c.SessionsMaxAge <= 0 {
		return fmt.Errorf("sessions max age must be positive, got: %s", c.SessionsMaxAge)
	}
	if c.SessionsSweepInterval <= 0 {
		return fmt.Errorf("sessions sweep interval must be positive, got: %s", c.SessionsSweepInterval)
	}

	return nil
}

// SlogLevel returns the configured log level
func (c *ServerConfig) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// BuildClient creates the storage client for the configured provider
func (c *ServerConfig) BuildClient() (*storage.Client, error) {
	return storage.FromProvider(c.Storage.Provider, storage.ProviderParams{
		Region:          c.Storage.Region,
		AccessKeyID:     c.Storage.AccessKeyID,
		SecretAccessKey: c.Storage.SecretAccessKey,
		SessionToken:    c.Storage.SessionToken,
		Endpoint:        c.Storage.Endpoint,
		AccountID:       c.Storage.AccountID,
		Jurisdiction:    c.Storage.Jurisdiction,
		PathStyle:       c.Storage.PathStyle,
	})
}

// BuildMultipartBackend creates the multipart session backend. It returns
// nil when multipart uploads are disabled.
func (c *ServerConfig) BuildMultipartBackend(ctx context.Context, client *storage.Client) (storage.MultipartBackend, error) {
	switch c.MultipartBackend {
	case "s3":
		backend, err := s3store.New(ctx, client)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "minio":
		backend, err := miniostore.New(client)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported multipart backend: %s", c.MultipartBackend)
	}
}

// BuildSessionStore opens the multipart session ledger. The returned
// function releases its resources.
func (c *ServerConfig) BuildSessionStore(ctx context.Context) (sessions.Store, func(), error) {
	if c.SessionsDatabaseURL == "memory" {
		return sessions.NewMemoryStore(), func() {}, nil
	}

	store, pool, err := pgsessions.NewWithPool(ctx, c.SessionsDatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
	return level, nil
}
