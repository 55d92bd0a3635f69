// Package config provides configuration management for the address discovery pipeline.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultChannels are the subreddits polled when nothing else is configured.
var DefaultChannels = []string{"CryptoCurrency", "Bitcoin", "ethtrader", "Monero", "Scams", "cryptodevs"}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Reddit    RedditConfig
	Ingestion IngestionConfig
	Scheduler SchedulerConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration.
// The extraction event ledger is only enabled when Enabled is true.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// RedditConfig holds source connector configuration
type RedditConfig struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	RequestsPerSecond float64
	// RequestBudget caps requests per BudgetWindow across all processes sharing Redis. Zero disables it.
	RequestBudget int64
	BudgetWindow  time.Duration
}

// IngestionConfig holds orchestrator defaults
type IngestionConfig struct {
	Mode          string
	PageSize      int
	FetchComments bool
	CommentDelay  time.Duration
	PageDelay     time.Duration
	TargetPerFeed int
	MaxPages      int
}

// SchedulerConfig holds periodic scheduler configuration
type SchedulerConfig struct {
	Interval     time.Duration
	Channels     []string
	ChannelsFile string
	ChannelDelay time.Duration
	AutoStart    bool
}

// QueueConfig holds job queue configuration
type QueueConfig struct {
	Enabled     bool
	Name        string
	PollTimeout time.Duration
}

// RateLimitConfig holds inbound API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxAgeDays int
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "4000"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "address_discovery"),
				User:           getEnv("POSTGRES_USER", "discovery"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnv("CLICKHOUSE_HOST", "") != "",
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "address_discovery"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "127.0.0.1"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Reddit: RedditConfig{
			BaseURL:           getEnv("REDDIT_BASE_URL", "https://www.reddit.com"),
			UserAgent:         getEnv("REDDIT_USER_AGENT", "CryptoIntelX/0.1 (team@example.com)"),
			Timeout:           getEnvAsDuration("REDDIT_TIMEOUT", 15*time.Second),
			MaxAttempts:       getEnvAsInt("REDDIT_MAX_ATTEMPTS", 4),
			InitialBackoff:    getEnvAsDuration("REDDIT_INITIAL_BACKOFF", time.Second),
			RequestsPerSecond: getEnvAsFloat("REDDIT_REQUESTS_PER_SECOND", 0),
			RequestBudget:     int64(getEnvAsInt("REDDIT_REQUEST_BUDGET", 0)),
			BudgetWindow:      getEnvAsDuration("REDDIT_BUDGET_WINDOW", time.Minute),
		},
		Ingestion: IngestionConfig{
			Mode:          getEnv("INGEST_MODE", "new"),
			PageSize:      getEnvAsInt("INGEST_PAGE_SIZE", 25),
			FetchComments: getEnvAsBool("INGEST_FETCH_COMMENTS", true),
			CommentDelay:  getEnvAsDuration("INGEST_COMMENT_DELAY", 1100*time.Millisecond),
			PageDelay:     getEnvAsDuration("INGEST_PAGE_DELAY", 1200*time.Millisecond),
			TargetPerFeed: getEnvAsInt("INGEST_TARGET_PER_FEED", 200),
			MaxPages:      getEnvAsInt("INGEST_MAX_PAGES", 50),
		},
		Scheduler: SchedulerConfig{
			Interval:     getEnvAsDuration("SCHEDULER_INTERVAL", 5*time.Minute),
			Channels:     getEnvAsList("SCHEDULER_CHANNELS", DefaultChannels),
			ChannelsFile: getEnv("SCHEDULER_CHANNELS_FILE", ""),
			ChannelDelay: getEnvAsDuration("SCHEDULER_CHANNEL_DELAY", 2*time.Second),
			AutoStart:    getEnvAsBool("AUTO_START_SCHEDULER", false),
		},
		Queue: QueueConfig{
			Enabled:     getEnvAsBool("QUEUE_ENABLED", true),
			Name:        getEnv("QUEUE_NAME", "ingest"),
			PollTimeout: getEnvAsDuration("QUEUE_POLL_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 7),
		},
	}

	if config.Scheduler.ChannelsFile != "" {
		channels, err := LoadChannelsFile(config.Scheduler.ChannelsFile)
		if err != nil {
			return nil, err
		}
		if len(channels) > 0 {
			config.Scheduler.Channels = channels
		}
	}

	return config, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" || c.Database.Postgres.User == "" {
		return fmt.Errorf("postgres host, database and user are required")
	}
	if c.Reddit.BaseURL == "" {
		return fmt.Errorf("REDDIT_BASE_URL must not be empty")
	}
	if c.Reddit.MaxAttempts < 1 {
		return fmt.Errorf("REDDIT_MAX_ATTEMPTS must be at least 1, got %d", c.Reddit.MaxAttempts)
	}
	if c.Ingestion.PageSize < 1 || c.Ingestion.PageSize > 100 {
		return fmt.Errorf("INGEST_PAGE_SIZE must be between 1 and 100, got %d", c.Ingestion.PageSize)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if len(c.Scheduler.Channels) == 0 {
		return fmt.Errorf("at least one scheduler channel is required")
	}
	return nil
}

// PostgresURL returns a connection URL suitable for golang-migrate.
func (p PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

// channelsFile is the YAML layout of SCHEDULER_CHANNELS_FILE.
type channelsFile struct {
	Channels []string `yaml:"channels"`
}

// LoadChannelsFile reads a YAML file of the form:
//
//	channels:
//	  - Bitcoin
//	  - Monero
func LoadChannelsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channels file %s: %w", path, err)
	}

	var f channelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse channels file %s: %w", path, err)
	}

	return cleanList(f.Channels), nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool accepts anything strconv.ParseBool does
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}
	return cleanList(strings.Split(valueStr, ","))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
