package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
)

const envPrefix = "MEDAPP"

type Config struct {
	Env          string             `mapstructure:"env"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Auth         AuthConfig         `mapstructure:"auth"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Notification NotificationConfig `mapstructure:"notification"`
	Broker       BrokerConfig       `mapstructure:"broker"`
	Analytics    AnalyticsConfig    `mapstructure:"analytics"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type AuthConfig struct {
	RoleOrder  []string      `mapstructure:"role_order"`
	OTPTTL     time.Duration `mapstructure:"otp_ttl"`
	OTPLength  int           `mapstructure:"otp_length"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type SMTPConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	From               string `mapstructure:"from"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

type NotificationConfig struct {
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type BrokerConfig struct {
	// Driver is "redis", "kafka" or "none".
	Driver       string        `mapstructure:"driver"`
	URL          string        `mapstructure:"url"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	GroupID      string        `mapstructure:"group_id"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type AnalyticsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type RateLimitConfig struct {
	RPS   float64       `mapstructure:"rps"`
	Burst int           `mapstructure:"burst"`
	TTL   time.Duration `mapstructure:"ttl"`
}

type WorkerConfig struct {
	OTPSweepInterval time.Duration `mapstructure:"otp_sweep_interval"`
	// OTPSweepGrace keeps expired slots this long so verification can still
	// tell an expired code from a missing one.
	OTPSweepGrace time.Duration `mapstructure:"otp_sweep_grace"`
	HealthAddr    string        `mapstructure:"health_addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// secrets are overlaid from MEDAPP_* env vars after the file is read so they
// never need to live in config.yaml.
type secrets struct {
	JWTSecret        string `envconfig:"JWT_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "medapp")
	v.SetDefault("database.name", "medapp")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("jwt.issuer", "medapp")

	v.SetDefault("auth.role_order", []string{"admin", "patient", "caregiver"})
	v.SetDefault("auth.otp_ttl", "10m")
	v.SetDefault("auth.otp_length", 6)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("notification.retry_attempts", 3)
	v.SetDefault("notification.retry_delay", "2s")
	v.SetDefault("notification.breaker_failures", 5)
	v.SetDefault("notification.breaker_timeout", "30s")

	v.SetDefault("broker.driver", "none")
	v.SetDefault("broker.topic", "appointment-events")
	v.SetDefault("broker.group_id", "medapp")
	v.SetDefault("broker.max_retries", 3)
	v.SetDefault("broker.retry_backoff", "100ms")
	v.SetDefault("broker.pool_size", 10)

	v.SetDefault("analytics.cache_ttl", "1m")

	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.ttl", "10m")

	v.SetDefault("worker.otp_sweep_interval", "1m")
	v.SetDefault("worker.otp_sweep_grace", "1h")
	v.SetDefault("worker.health_addr", ":8081")

	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.namespace", "medapp")
}

// LoadConfig reads .env (if present), then config.yaml from the given paths
// or the defaults, then environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	cfg.applySecrets(s)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s secrets) {
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required (set MEDAPP_JWT_SECRET)")
	}
	if _, err := c.RoleOrder(); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Broker.Driver {
	case "redis", "kafka", "none":
	default:
		return fmt.Errorf("unknown broker driver %q", c.Broker.Driver)
	}
	if c.Auth.OTPTTL <= 0 {
		return errors.New("auth.otp_ttl must be positive")
	}
	if c.SMTP.Host == "" && !c.IsDevelopment() {
		return fmt.Errorf("smtp.host is required when env is %q", c.Env)
	}
	return nil
}

// IsDevelopment reports whether mail may fall back to the log.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RoleOrder parses auth.role_order. Every role must appear exactly once.
func (c *Config) RoleOrder() ([]model.Role, error) {
	if len(c.Auth.RoleOrder) == 0 {
		return model.DefaultRoleOrder, nil
	}

	seen := make(map[model.Role]bool, len(c.Auth.RoleOrder))
	order := make([]model.Role, 0, len(c.Auth.RoleOrder))
	for _, s := range c.Auth.RoleOrder {
		r, err := model.ParseRole(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, fmt.Errorf("auth.role_order: %w", err)
		}
		if seen[r] {
			return nil, fmt.Errorf("auth.role_order: duplicate role %q", r)
		}
		seen[r] = true
		order = append(order, r)
	}
	if len(order) != len(model.DefaultRoleOrder) {
		return nil, fmt.Errorf("auth.role_order must list all of %v", model.DefaultRoleOrder)
	}
	return order, nil
}
