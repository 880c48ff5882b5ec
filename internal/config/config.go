package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the guestwatch service
type Config struct {
	Environment string          `mapstructure:"environment"`
	Debug       bool            `mapstructure:"debug"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Dispatch    DispatchConfig  `mapstructure:"dispatch"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Security    SecurityConfig  `mapstructure:"security"`
	Logging     LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	HTTPPort     int           `mapstructure:"http_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig contains Redis configuration for cross-instance broadcast fan-out
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// KafkaConfig contains Kafka consumer configuration
type KafkaConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	Brokers          []string `mapstructure:"brokers"`
	GroupID          string   `mapstructure:"group_id"`
	GuestTopic       string   `mapstructure:"guest_topic"`
	MinBytes         int      `mapstructure:"min_bytes"`
	MaxBytes         int      `mapstructure:"max_bytes"`
	CommitIntervalMs int      `mapstructure:"commit_interval_ms"`
	WorkerCount      int      `mapstructure:"worker_count"`
}

// DispatchConfig contains watchlist dispatch pipeline configuration
type DispatchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	StationCacheTTL   time.Duration `mapstructure:"station_cache_ttl"`
	StationCacheSweep time.Duration `mapstructure:"station_cache_sweep"`
}

// SchedulerConfig contains retention cleanup configuration
type SchedulerConfig struct {
	Enabled                   bool   `mapstructure:"enabled"`
	CleanupSchedule           string `mapstructure:"cleanup_schedule"`
	AlertRetentionDays        int    `mapstructure:"alert_retention_days"`
	NotificationRetentionDays int    `mapstructure:"notification_retention_days"`
}

// SecurityConfig contains security configuration
type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"` // json, text
	IncludeSource bool   `mapstructure:"include_source"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/guestwatch")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GUESTWATCH")

	// Config file is optional
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// General
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", false)

	// Server
	viper.SetDefault("server.http_port", 8086)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "guestwatch")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Kafka
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "guestwatch")
	viper.SetDefault("kafka.guest_topic", "guest-registered")
	viper.SetDefault("kafka.min_bytes", 1)
	viper.SetDefault("kafka.max_bytes", 1048576)
	viper.SetDefault("kafka.commit_interval_ms", 1000)
	viper.SetDefault("kafka.worker_count", 2)

	// Dispatch
	viper.SetDefault("dispatch.timeout", "30s")
	viper.SetDefault("dispatch.station_cache_ttl", "10m")
	viper.SetDefault("dispatch.station_cache_sweep", "15m")

	// Scheduler
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.cleanup_schedule", "0 0 3 * * *")
	viper.SetDefault("scheduler.alert_retention_days", 90)
	viper.SetDefault("scheduler.notification_retention_days", 30)

	// Security
	viper.SetDefault("security.jwt_secret", "")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.include_source", false)
}
