package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Sessions      SessionsConfig      `mapstructure:"sessions"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	AuthRateLimit   int           `mapstructure:"auth_rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type SessionsConfig struct {
	Driver    string `mapstructure:"driver"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type LedgerConfig struct {
	SignupBonus         string        `mapstructure:"signup_bonus"`
	MaxAttempts         uint          `mapstructure:"max_attempts"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay       time.Duration `mapstructure:"max_retry_delay"`
	AttemptTimeout      time.Duration `mapstructure:"attempt_timeout"`
	HistoryDefaultLimit int           `mapstructure:"history_default_limit"`
	HistoryMaxLimit     int           `mapstructure:"history_max_limit"`
}

type WorkerConfig struct {
	Stream                  string        `mapstructure:"stream"`
	StreamMaxLen            int64         `mapstructure:"stream_max_len"`
	BatchSize               int           `mapstructure:"batch_size"`
	OutboxPollInterval      time.Duration `mapstructure:"outbox_poll_interval"`
	LockTTL                 time.Duration `mapstructure:"lock_ttl"`
	CircuitBreakerThreshold uint32        `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

type ObservabilityConfig struct {
	LogLevel         string  `mapstructure:"log_level"`
	OTLPEndpoint     string  `mapstructure:"otlp_endpoint"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
	EnableMetrics    bool    `mapstructure:"enable_metrics"`
	EnableTracing    bool    `mapstructure:"enable_tracing"`
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Read merges defaults, the optional config file and WALLET_* environment
// variables without validating the result. Tools that only need a subset,
// such as cmd/migrate, use it directly.
func Read() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// WALLET_AUTH_JWT_SECRET -> auth.jwt_secret
	v.SetEnvPrefix("WALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/wallet")

	// Config file is optional
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

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver))
	}

	switch c.Sessions.Driver {
	case DriverRedis:
		if c.Redis.Port <= 0 {
			errs = append(errs, fmt.Errorf("redis.port must be positive"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("sessions.driver must be redis or memory, got %q", c.Sessions.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required"))
	} else if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.session_ttl must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if bonus, err := decimal.NewFromString(c.Ledger.SignupBonus); err != nil || bonus.IsNegative() {
		errs = append(errs, fmt.Errorf("ledger.signup_bonus must be a non-negative decimal, got %q", c.Ledger.SignupBonus))
	}
	if c.Ledger.MaxAttempts == 0 {
		errs = append(errs, fmt.Errorf("ledger.max_attempts must be positive"))
	}
	if c.Ledger.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ledger.attempt_timeout must be positive"))
	}
	if c.Ledger.HistoryDefaultLimit <= 0 || c.Ledger.HistoryMaxLimit < c.Ledger.HistoryDefaultLimit {
		errs = append(errs, fmt.Errorf("ledger history limits must satisfy 0 < default <= max"))
	}

	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Worker.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("worker.lock_ttl must be positive"))
	}

	if c.Observability.EnableTracing {
		if _, err := url.Parse(c.Observability.OTLPEndpoint); err != nil || c.Observability.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("observability.otlp_endpoint must be a URL when tracing is enabled"))
		}
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Storage.Driver == DriverPostgres && c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Storage.Driver == DriverMemory {
			errs = append(errs, fmt.Errorf("storage.driver memory is not allowed in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.auth_rate_limit", 20)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wallet")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "wallet")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.auto_migrate", false)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Backends
	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("sessions.driver", DriverRedis)
	v.SetDefault("sessions.key_prefix", "wallet:session:")

	// Auth defaults
	// keys without a default are invisible to AutomaticEnv during Unmarshal
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "wallet")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)

	// Ledger defaults
	v.SetDefault("ledger.signup_bonus", "10.00")
	v.SetDefault("ledger.max_attempts", 5)
	v.SetDefault("ledger.retry_delay", "20ms")
	v.SetDefault("ledger.max_retry_delay", "500ms")
	v.SetDefault("ledger.attempt_timeout", "5s")
	v.SetDefault("ledger.history_default_limit", 50)
	v.SetDefault("ledger.history_max_limit", 100)

	// Worker defaults
	v.SetDefault("worker.stream", "ledger:transfers")
	v.SetDefault("worker.stream_max_len", 100000)
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.outbox_poll_interval", "1s")
	v.SetDefault("worker.lock_ttl", "15s")
	v.SetDefault("worker.circuit_breaker_threshold", 5)
	v.SetDefault("worker.circuit_breaker_timeout", "30s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	v.SetDefault("instance_id", "wallet-1")
}

// SignupBonusAmount returns the validated signup bonus.
func (c *LedgerConfig) SignupBonusAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.SignupBonus)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL is the URL form golang-migrate expects.
func (c *DatabaseConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
