package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	Environment        string
	SeedAdminEmail     string
	SeedAdminName      string
	EmailFrom          string
	EmailEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPUseTLS         bool
	RunMigrations      bool
	RunSeed            bool
	MaxBodyBytes       int64
	RateLimitPerMinute int
	BatchConcurrency   int
	BatchMaxRows       int
	ConfigCacheTTL     time.Duration
	OutboxInterval     time.Duration
	OutboxMaxAttempts  int
	OutboxBatchSize    int
	MetricsEnabled     bool
	LetterCompanyName  string
}

func Load() Config {
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		Environment:        getEnv("APP_ENV", "development"),
		SeedAdminEmail:     getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminName:      getEnv("SEED_ADMIN_NAME", "KPI Administrator"),
		EmailFrom:          getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:       getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:         getEnvBool("SMTP_USE_TLS", true),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", true),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 8*1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		BatchConcurrency:   getEnvInt("KPI_BATCH_CONCURRENCY", 8),
		BatchMaxRows:       getEnvInt("KPI_BATCH_MAX_ROWS", 20000),
		ConfigCacheTTL:     getEnvDuration("KPI_CONFIG_CACHE_TTL", 5*time.Minute),
		OutboxInterval:     getEnvDuration("KPI_OUTBOX_INTERVAL", time.Minute),
		OutboxMaxAttempts:  getEnvInt("KPI_OUTBOX_MAX_ATTEMPTS", 5),
		OutboxBatchSize:    getEnvInt("KPI_OUTBOX_BATCH_SIZE", 200),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		LetterCompanyName:  getEnv("LETTER_COMPANY_NAME", "Human Resources"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("KPI_BATCH_CONCURRENCY must be positive")
	}
	if c.BatchMaxRows <= 0 {
		return fmt.Errorf("KPI_BATCH_MAX_ROWS must be positive")
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("KPI_OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
