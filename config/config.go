package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gauge    GaugeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings. The database must have
// the postgis extension available for the proximity search.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/covidjournal?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings (job queue and gauge feed pub/sub).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds organization token signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// GaugeConfig holds the gauge refresh schedule and the level policy.
// Thresholds are percentages of capacity and must be strictly increasing;
// the exact cutoffs are deployment policy, not code.
type GaugeConfig struct {
	RefreshIntervalSec int
	LowMaxPercent      int64 // percent <= this (and > 0) -> low
	MediumMaxPercent   int64 // percent <= this -> medium
	HighMaxPercent     int64 // percent <= this -> high; above -> full
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Validate rejects a gauge policy whose thresholds are not monotonic; a
// non-total policy would let two levels claim the same occupancy.
func (c GaugeConfig) Validate() error {
	if c.LowMaxPercent <= 0 || c.MediumMaxPercent <= c.LowMaxPercent || c.HighMaxPercent <= c.MediumMaxPercent || c.HighMaxPercent >= 100 {
		return fmt.Errorf("gauge thresholds must satisfy 0 < low < medium < high < 100 (got %d/%d/%d)",
			c.LowMaxPercent, c.MediumMaxPercent, c.HighMaxPercent)
	}
	if c.RefreshIntervalSec <= 0 {
		return fmt.Errorf("gauge refresh interval must be positive")
	}
	return nil
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "720"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "covidjournal"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Gauge: GaugeConfig{
			RefreshIntervalSec: getEnvInt("GAUGE_REFRESH_INTERVAL_SEC", 60),
			LowMaxPercent:      int64(getEnvInt("GAUGE_LOW_MAX_PERCENT", 25)),
			MediumMaxPercent:   int64(getEnvInt("GAUGE_MEDIUM_MAX_PERCENT", 50)),
			HighMaxPercent:     int64(getEnvInt("GAUGE_HIGH_MAX_PERCENT", 85)),
		},
	}
	if err := cfg.Gauge.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
