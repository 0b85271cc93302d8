package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (optional; enables the distributed arena lock and log notifications)
	RedisURL string

	// Security
	JWTSecret string

	// Telegram (optional; enables match notifications)
	TelegramBotToken string

	// Application
	AppEnv         string
	AppPort        string
	LogLevel       string
	AllowedOrigins []string

	// Rate Limiting
	RateLimitPerOwner int

	// Matchmaking
	AcceptanceWindowSeconds int
	ArenaLockTTLSeconds     int
	ArenaLockWaitMs         int
	RequeueOnDecline        bool

	// Sweeper
	SweepIntervalSeconds     int
	ReconcileIntervalSeconds int
	ReconcileGraceSeconds    int

	// Log streaming
	StreamPollIntervalMs      int
	StreamPingIntervalSeconds int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "arena"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "ludus_arena"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET_KEY", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		AppEnv:         getEnv("APP_ENV", "development"),
		AppPort:        getEnv("APP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		RateLimitPerOwner: getEnvInt("RATE_LIMIT_PER_OWNER", 30),

		AcceptanceWindowSeconds: getEnvInt("ACCEPTANCE_WINDOW_SECONDS", 60),
		ArenaLockTTLSeconds:     getEnvInt("ARENA_LOCK_TTL_SECONDS", 10),
		ArenaLockWaitMs:         getEnvInt("ARENA_LOCK_WAIT_MS", 3000),
		RequeueOnDecline:        getEnvBool("REQUEUE_ON_DECLINE", false),

		SweepIntervalSeconds:     getEnvInt("SWEEP_INTERVAL_SECONDS", 5),
		ReconcileIntervalSeconds: getEnvInt("RECONCILE_INTERVAL_SECONDS", 60),
		ReconcileGraceSeconds:    getEnvInt("RECONCILE_GRACE_SECONDS", 30),

		StreamPollIntervalMs:      getEnvInt("STREAM_POLL_INTERVAL_MS", 1000),
		StreamPingIntervalSeconds: getEnvInt("STREAM_PING_INTERVAL_SECONDS", 30),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.AcceptanceWindowSeconds <= 0 {
		return fmt.Errorf("ACCEPTANCE_WINDOW_SECONDS must be positive")
	}
	if c.StreamPollIntervalMs <= 0 {
		return fmt.Errorf("STREAM_POLL_INTERVAL_MS must be positive")
	}
	if c.StreamPingIntervalSeconds <= 0 {
		return fmt.Errorf("STREAM_PING_INTERVAL_SECONDS must be positive")
	}
	if c.SweepIntervalSeconds <= 0 || c.ReconcileIntervalSeconds <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set in production so arena locks span instances")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetAcceptanceWindow() time.Duration {
	return time.Duration(c.AcceptanceWindowSeconds) * time.Second
}

func (c *Config) GetArenaLockTTL() time.Duration {
	return time.Duration(c.ArenaLockTTLSeconds) * time.Second
}

func (c *Config) GetArenaLockWait() time.Duration {
	return time.Duration(c.ArenaLockWaitMs) * time.Millisecond
}

func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) GetReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

func (c *Config) GetReconcileGrace() time.Duration {
	return time.Duration(c.ReconcileGraceSeconds) * time.Second
}

func (c *Config) GetStreamPollInterval() time.Duration {
	return time.Duration(c.StreamPollIntervalMs) * time.Millisecond
}

func (c *Config) GetStreamPingInterval() time.Duration {
	return time.Duration(c.StreamPingIntervalSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
