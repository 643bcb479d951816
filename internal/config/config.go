package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/patient-intake/pkg/messaging/redis"
	"github.com/jwalitptl/patient-intake/pkg/worker"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Documents DocumentsConfig `mapstructure:"documents"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Client    ClientConfig    `mapstructure:"client"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MetricsPrefix namespaces the prometheus metrics.
	MetricsPrefix string `mapstructure:"metrics_prefix"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	Channel      string        `mapstructure:"channel"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
	Issuer      string `mapstructure:"issuer"`
}

type DocumentsConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	// EncryptionSecret is stretched into the AES key protecting stored documents.
	EncryptionSecret string `mapstructure:"encryption_secret"`
	URLPrefix        string `mapstructure:"url_prefix"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout"`

	// Retention is how long processed events are kept before cleanup.
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// HealthPort serves the worker's health and metrics endpoints.
	HealthPort int `mapstructure:"health_port"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type ClientConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	AppURL     string        `mapstructure:"app_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxFailure uint32        `mapstructure:"max_failures"`
}

// Secrets are read from the environment with the INTAKE_ prefix and override
// whatever the config file holds.
type Secrets struct {
	DatabaseHost     string `envconfig:"DB_HOST"`
	DatabasePort     int    `envconfig:"DB_PORT"`
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	DocumentSecret   string `envconfig:"DOCUMENT_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
}

const envPrefix = "INTAKE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.metrics_prefix", "patient_intake")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "patient_intake")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel", "patient-intake.events")
	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("jwt.issuer", "patient-intake")
	v.SetDefault("documents.max_size", 10<<20)
	v.SetDefault("documents.allowed_types", []string{"image/png", "image/jpeg", "image/webp", "application/pdf"})
	v.SetDefault("documents.url_prefix", "/api/v1/documents")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.claim_timeout", 5*time.Minute)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_interval", time.Hour)
	v.SetDefault("outbox.health_port", 8081)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.max_failures", 5)
}

// LoadConfig reads config.yml from path (or the default search paths when
// path is empty) and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(envPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.apply(secrets)

	return &cfg, nil
}

func (c *Config) apply(s Secrets) {
	if s.DatabaseHost != "" {
		c.Database.Host = s.DatabaseHost
	}
	if s.DatabasePort != 0 {
		c.Database.Port = s.DatabasePort
	}
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
	if s.RedisURL != "" {
		c.Redis.URL = s.RedisURL
	}
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.DocumentSecret != "" {
		c.Documents.EncryptionSecret = s.DocumentSecret
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
}

func (c *OutboxConfig) ToWorkerConfig(channel string) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		Channel:       channel,
		ClaimTimeout:  c.ClaimTimeout,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
