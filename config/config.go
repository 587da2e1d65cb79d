package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage engines selectable with database.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration shared by cmd/api and cmd/identity.
type Config struct {
	Server         ServerConfig    `mapstructure:"server"`
	IdentityServer ServerConfig    `mapstructure:"identity_server"`
	Database       DatabaseConfig  `mapstructure:"database"`
	Redis          RedisConfig     `mapstructure:"redis"`
	Identity       IdentityConfig  `mapstructure:"identity"`
	ServiceAuth    JWTConfig       `mapstructure:"service_auth"`
	Kafka          KafkaConfig     `mapstructure:"kafka"`
	Telemetry      TelemetryConfig `mapstructure:"telemetry"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Log            LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IdentityConfig configures the client side of the identity gate.
type IdentityConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"` // bounds one whole authentication, retries included
	MaxRetries      uint          `mapstructure:"max_retries"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// JWTConfig configures service-to-service tokens. An empty secret disables them.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// KafkaConfig configures committed-transaction events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"` // bounds one background publish
}

type TelemetryConfig struct {
	Endpoint    string  `mapstructure:"endpoint"` // OTLP/HTTP URL; empty disables export
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type RateLimitConfig struct {
	TransactionsPerMinute int64 `mapstructure:"transactions_per_minute"`
	AccountsPerMinute     int64 `mapstructure:"accounts_per_minute"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from a .env file, a config file and environment variables.
// Environment variables override file values. Prefix: BKS_ (Banking Services).
// Nested keys use underscore: BKS_DATABASE_DRIVER, BKS_IDENTITY_BASE_URL, etc.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: BKS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("BKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Identity.Timeout <= 0 {
		return fmt.Errorf("identity.timeout must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("identity_server.host", "0.0.0.0")
	v.SetDefault("identity_server.port", 8081)
	v.SetDefault("identity_server.mode", "debug")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "banking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.sqlite_path", "banking.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("identity.base_url", "http://localhost:8081")
	v.SetDefault("identity.timeout", "3s")
	v.SetDefault("identity.max_retries", 2)
	v.SetDefault("identity.breaker_failures", 5)
	v.SetDefault("identity.breaker_timeout", "30s")
	v.SetDefault("service_auth.secret", "")
	v.SetDefault("service_auth.expiry", "1m")
	v.SetDefault("service_auth.issuer", "transaction-service")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "transactions.committed")
	v.SetDefault("kafka.publish_timeout", "5s")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("rate_limit.transactions_per_minute", 120)
	v.SetDefault("rate_limit.accounts_per_minute", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
