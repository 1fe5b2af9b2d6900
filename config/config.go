package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultHTTPAddr      = ":8080"
	defaultDBHost        = "localhost"
	defaultDBPort        = "5432"
	defaultRedisAddr     = "127.0.0.1:6379"
	defaultRedisDB       = 0
	defaultQuoteCacheTTL = 5 * time.Minute
)

// Config keeps the runtime configuration for the service.
type Config struct {
	HTTPAddr  string
	Database  DatabaseConfig
	Redis     RedisConfig
	Pricing   PricingConfig
	JWTSecret string
}

// DatabaseConfig stores PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN renders the gorm/postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

// RedisConfig stores Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PricingConfig stores quote-lookup settings.
type PricingConfig struct {
	APIKey   string
	CacheTTL time.Duration
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, err
	}

	cacheTTL := defaultQuoteCacheTTL
	if raw := os.Getenv("QUOTE_CACHE_TTL"); raw != "" {
		cacheTTL, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse QUOTE_CACHE_TTL: %w", err)
		}
	}

	return &Config{
		HTTPAddr: getString("HTTP_ADDR", defaultHTTPAddr),
		Database: DatabaseConfig{
			Host:     getString("DB_HOST", defaultDBHost),
			Port:     getString("DB_PORT", defaultDBPort),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Pricing: PricingConfig{
			APIKey:   os.Getenv("ALPHA_VANTAGE_API_KEY"),
			CacheTTL: cacheTTL,
		},
		JWTSecret: secret,
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}
