package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Yahoo       YahooConfig
	Discovery   DiscoveryConfig
	Detector    DetectorConfig
	Scheduler   SchedulerConfig
	Environment string `validate:"oneof=development staging production"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            int `validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig represents PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
	SSLMode  string
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	SummaryTTL time.Duration
}

// YahooConfig represents the market data provider configuration
type YahooConfig struct {
	ChartBaseURL string
	QuoteBaseURL string
	AuthBaseURL  string
	Timeout      time.Duration
	RateLimit    int // requests per minute
}

// DiscoveryConfig represents universe discovery sources
type DiscoveryConfig struct {
	SP500URL   string
	RussellURL string
	Timeout    time.Duration
}

// DetectorConfig represents outlier detection defaults. The default
// threshold is a presentation-layer policy: the wider Russell universe is
// noisier, so it gets a higher bar.
type DetectorConfig struct {
	DefaultThreshold        float64 `validate:"gt=0,lte=10"`
	RussellDefaultThreshold float64 `validate:"gt=0,lte=10"`
}

// SchedulerConfig represents the periodic refresh schedule
type SchedulerConfig struct {
	Enabled  bool
	CronSpec string
}

// Load loads configuration from environment variables with defaults.
// A .env file is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8010),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", "30s"),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "sectorview"),
			Password: getEnv("DB_PASSWORD", "sectorview"),
			Name:     getEnv("DB_NAME", "sector_view"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			PoolSize:   getEnvAsInt("REDIS_POOL_SIZE", 10),
			SummaryTTL: getEnvAsDuration("SUMMARY_CACHE_TTL", "15m"),
		},
		Yahoo: YahooConfig{
			ChartBaseURL: getEnv("YAHOO_CHART_BASE_URL", "https://query1.finance.yahoo.com"),
			QuoteBaseURL: getEnv("YAHOO_QUOTE_BASE_URL", "https://query2.finance.yahoo.com"),
			AuthBaseURL:  getEnv("YAHOO_AUTH_BASE_URL", "https://fc.yahoo.com"),
			Timeout:      getEnvAsDuration("YAHOO_TIMEOUT", "10s"),
			RateLimit:    getEnvAsInt("YAHOO_RATE_LIMIT", 600),
		},
		Discovery: DiscoveryConfig{
			SP500URL:   getEnv("SP500_LIST_URL", ""),
			RussellURL: getEnv("RUSSELL_HOLDINGS_URL", ""),
			Timeout:    getEnvAsDuration("DISCOVERY_TIMEOUT", "60s"),
		},
		Detector: DetectorConfig{
			DefaultThreshold:        getEnvAsFloat("OUTLIER_THRESHOLD", 1.5),
			RussellDefaultThreshold: getEnvAsFloat("RUSSELL_OUTLIER_THRESHOLD", 2.0),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", false),
			CronSpec: getEnv("SCHEDULER_CRON", "30 16 * * 1-5"), // weekdays after close
		},
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Second * 30 // Fallback
}

// Validate checks the loaded configuration for values that would only
// fail later at runtime
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultThreshold returns the detection threshold for a universe
func (c *Config) DefaultThreshold(universe string) float64 {
	if universe == "russell2000" {
		return c.Detector.RussellDefaultThreshold
	}
	return c.Detector.DefaultThreshold
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
