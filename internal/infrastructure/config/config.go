package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Kafka     KafkaConfig
	Registry  RegistryConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Ledger    LedgerConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// KafkaConfig holds event bus settings. ReferenceTopic carries the
// reference-entity change events; FlightTopic carries the flight-domain
// events consumed only by the archiver.
type KafkaConfig struct {
	Brokers        []string `validate:"required,min=1"`
	ReferenceTopic string   `validate:"required"`
	FlightTopic    string   `validate:"required"`
	GroupID        string   `validate:"required"`
	StartOffset    string   // earliest (default) or latest
	MaxWait        time.Duration
}

// RegistryConfig holds the connection settings for the reference registry,
// the system of record the fetch-through path calls.
type RegistryConfig struct {
	BaseURL        string `validate:"required,url"`
	Username       string `validate:"required"`
	Password       string `validate:"required"`
	RequestTimeout time.Duration
	// SafetyMargin is subtracted from the credential expiry to defend
	// against clock skew and in-flight request latency.
	SafetyMargin time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LedgerConfig holds archival ingestion settings
type LedgerConfig struct {
	DedupTTL              time.Duration
	AllowInMemoryFallback bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	SamplingRatio     float64
	Insecure          bool
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the postgres URL form used by the migration runner.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Addr returns the host:port address of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FLIGHT_ prefix (e.g., FLIGHT_REGISTRY_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Kafka: KafkaConfig{
			Brokers:        v.GetStringSlice("kafka.brokers"),
			ReferenceTopic: v.GetString("kafka.reference_topic"),
			FlightTopic:    v.GetString("kafka.flight_topic"),
			GroupID:        v.GetString("kafka.group_id"),
			StartOffset:    v.GetString("kafka.start_offset"),
			MaxWait:        v.GetDuration("kafka.max_wait"),
		},
		Registry: RegistryConfig{
			BaseURL:        v.GetString("registry.base_url"),
			Username:       v.GetString("registry.username"),
			Password:       v.GetString("registry.password"),
			RequestTimeout: v.GetDuration("registry.request_timeout"),
			SafetyMargin:   v.GetDuration("registry.safety_margin"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Ledger: LedgerConfig{
			DedupTTL:              v.GetDuration("ledger.dedup_ttl"),
			AllowInMemoryFallback: v.GetBool("ledger.allow_in_memory_fallback"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers the built-in defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flightdeck")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.reference_topic", "reference-events")
	v.SetDefault("kafka.flight_topic", "flight-events")
	v.SetDefault("kafka.group_id", "refcache")
	v.SetDefault("kafka.start_offset", "earliest")
	v.SetDefault("kafka.max_wait", time.Second)

	v.SetDefault("registry.base_url", "http://localhost:8081")
	v.SetDefault("registry.username", "service")
	v.SetDefault("registry.password", "service")
	v.SetDefault("registry.request_timeout", 5*time.Second)
	v.SetDefault("registry.safety_margin", 30*time.Second)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flightdeck")
	v.SetDefault("database.password", "flightdeck")
	v.SetDefault("database.dbname", "flightdeck_archive")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.conn_max_idle_time", 10)

	v.SetDefault("ledger.dedup_ttl", 24*time.Hour)
	v.SetDefault("ledger.allow_in_memory_fallback", true)

	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "flightdeck")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)
}

// Validate checks the loaded configuration for values the services cannot
// start without.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c.App); err != nil {
		return fmt.Errorf("invalid app config: %w", err)
	}
	if err := validate.Struct(c.Kafka); err != nil {
		return fmt.Errorf("invalid kafka config: %w", err)
	}
	if err := validate.Struct(c.Registry); err != nil {
		return fmt.Errorf("invalid registry config: %w", err)
	}

	if c.Registry.RequestTimeout <= 0 {
		return fmt.Errorf("registry.request_timeout must be positive")
	}
	if c.Registry.SafetyMargin < 0 {
		return fmt.Errorf("registry.safety_margin must not be negative")
	}

	return nil
}
