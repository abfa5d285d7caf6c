// Package config defines the runtime configuration for the psicorisco
// services. Configuration is loaded from a YAML file and overridden by
// environment variables with the PSICORISCO_ prefix (see loader.go).
package config

import (
	"fmt"
	"time"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────
// Root configuration
// ─────────────────────────────────────────────

// Config is the root configuration shared by the API server, the worker
// and the CLI. Each binary reads the sections it needs.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	Slack    SlackConfig    `mapstructure:"slack" yaml:"slack"`
	Worker   WorkerConfig   `mapstructure:"worker" yaml:"worker"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Mode            string        `mapstructure:"mode" yaml:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig configures the PostgreSQL connection pool.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	DBName          string        `mapstructure:"dbname" yaml:"dbname"`
	SSLMode         string        `mapstructure:"sslmode" yaml:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path" yaml:"migrations_path"`
}

// DSN builds the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig configures the Redis client used for caching, idempotency
// keys and the dispatcher leader lock.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// KafkaConfig configures the event producer and the intake consumer.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	GroupID      string        `mapstructure:"group_id" yaml:"group_id"`
	IntakeTopic  string        `mapstructure:"intake_topic" yaml:"intake_topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
}

// SlackConfig configures the escalation webhook for critical findings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
}

// WorkerConfig configures the background job processor.
type WorkerConfig struct {
	Concurrency             int           `mapstructure:"concurrency" yaml:"concurrency"`
	PollInterval            time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxRetries              int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff            time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	JobTimeout              time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"`
	LeaseTTL                time.Duration `mapstructure:"lease_ttl" yaml:"lease_ttl"`
	EscalationCheckInterval time.Duration `mapstructure:"escalation_check_interval" yaml:"escalation_check_interval"`
}

// CatalogConfig locates the question category catalog.
type CatalogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level            string   `mapstructure:"level" yaml:"level"`
	Format           string   `mapstructure:"format" yaml:"format"` // json or console
	OutputPaths      []string `mapstructure:"output_paths" yaml:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths" yaml:"error_output_paths"`
}

// ToLogging converts the section into the logging package's config type.
func (c LogConfig) ToLogging() logging.LogConfig {
	return logging.LogConfig{
		Level:            c.Level,
		Format:           c.Format,
		OutputPaths:      c.OutputPaths,
		ErrorOutputPaths: c.ErrorOutputPaths,
	}
}

// MetricsConfig configures Prometheus metric exposure.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Path      string `mapstructure:"path" yaml:"path"`
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
}

// Addr returns the host:port address for the standalone metrics listener
// used by binaries that do not serve the HTTP API.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ─────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────

// Validate checks the configuration for values that would make a binary
// misbehave at runtime rather than fail fast at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required")
	}
	if c.Database.MaxOpenConns < c.Database.MaxIdleConns {
		return fmt.Errorf("database.max_open_conns (%d) must be >= max_idle_conns (%d)",
			c.Database.MaxOpenConns, c.Database.MaxIdleConns)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Slack.Enabled && c.Slack.WebhookURL == "" {
		return fmt.Errorf("slack.webhook_url is required when slack is enabled")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must be >= 0, got %d", c.Worker.MaxRetries)
	}
	if c.Worker.LeaseTTL <= c.Worker.PollInterval {
		return fmt.Errorf("worker.lease_ttl (%s) must exceed poll_interval (%s)",
			c.Worker.LeaseTTL, c.Worker.PollInterval)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	return nil
}
