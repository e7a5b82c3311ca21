package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	Log         LogConfig
	Token       TokenConfig
	Retry       RetryConfig
	Replay      ReplayConfig
	ActivityLog ActivityLogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, set DB_PASSWORD and DB_SSLMODE ("require" or "verify-full").
type DBConfig struct {
	Host          string `envconfig:"DB_HOST" default:"localhost"`
	Port          int    `envconfig:"DB_PORT" default:"5432"`
	User          string `envconfig:"DB_USER" default:"postgres"`
	Password      string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name          string `envconfig:"DB_NAME" default:"campaign_db"`
	SSLMode       string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns      int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns      int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxRetries    int    `envconfig:"DB_MAX_RETRIES" default:"5"`
	RunMigrations bool   `envconfig:"DB_RUN_MIGRATIONS" default:"true"`
}

// DSN returns the pgxpool connection string, including pool sizing.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s&pool_max_conns=%d&pool_min_conns=%d", c.URL(), c.MaxConns, c.MinConns)
}

// URL returns a plain postgres:// URL usable by drivers other than pgxpool.
func (c DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// TokenConfig holds reservation token settings.
// Expired tokens are kept for Retention so late confirmations still get ALREADY_REDEEMED.
type TokenConfig struct {
	Secret        string        `envconfig:"TOKEN_SECRET" default:"local-development-token-secret"` // CHANGE IN PRODUCTION
	Validity      time.Duration `envconfig:"TOKEN_VALIDITY" default:"5m"`
	Retention     time.Duration `envconfig:"TOKEN_RETENTION" default:"1h"`
	SweepInterval time.Duration `envconfig:"TOKEN_SWEEP_INTERVAL" default:"1m"`
}

// RetryConfig tunes the payment retry consumer.
type RetryConfig struct {
	PollInterval      time.Duration `envconfig:"RETRY_POLL_INTERVAL" default:"1s"`
	BatchSize         int           `envconfig:"RETRY_BATCH_SIZE" default:"32"`
	Workers           int           `envconfig:"RETRY_WORKERS" default:"4"`
	VisibilityTimeout time.Duration `envconfig:"RETRY_VISIBILITY_TIMEOUT" default:"30s"`
}

// ReplayConfig limits operator-triggered failure log replays.
type ReplayConfig struct {
	Rate  float64 `envconfig:"REPLAY_RATE" default:"20"` // messages per second
	Burst int     `envconfig:"REPLAY_BURST" default:"20"`
}

// ActivityLogConfig sizes the asynchronous activity log buffer.
type ActivityLogConfig struct {
	Buffer int `envconfig:"ACTIVITY_LOG_BUFFER" default:"1024"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Token.Secret) < 16 {
		errs = append(errs, errors.New("TOKEN_SECRET must be at least 16 bytes"))
	}
	if c.Token.Validity <= 0 {
		errs = append(errs, errors.New("TOKEN_VALIDITY must be positive"))
	}
	if c.Token.Retention < 0 || c.Token.SweepInterval <= 0 {
		errs = append(errs, errors.New("TOKEN_RETENTION must not be negative and TOKEN_SWEEP_INTERVAL must be positive"))
	}
	if c.Retry.PollInterval <= 0 {
		errs = append(errs, errors.New("RETRY_POLL_INTERVAL must be positive"))
	}
	if c.Retry.BatchSize < 1 {
		errs = append(errs, errors.New("RETRY_BATCH_SIZE must be at least 1"))
	}
	if c.Retry.Workers < 1 {
		errs = append(errs, errors.New("RETRY_WORKERS must be at least 1"))
	}
	if c.Retry.VisibilityTimeout <= 0 {
		errs = append(errs, errors.New("RETRY_VISIBILITY_TIMEOUT must be positive"))
	}
	if c.Replay.Rate <= 0 || c.Replay.Burst < 1 {
		errs = append(errs, errors.New("REPLAY_RATE and REPLAY_BURST must be positive"))
	}
	if c.ActivityLog.Buffer < 1 {
		errs = append(errs, errors.New("ACTIVITY_LOG_BUFFER must be at least 1"))
	}
	return errors.Join(errs...)
}
