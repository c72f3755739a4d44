package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port                string
	AdminToken          string
	DBURL               string
	ReadTimeoutSecs     int
	WriteTimeoutSecs    int
	IdleTimeoutSecs     int
	DBMaxConns          int
	DBMinConns          int
	DBMaxIdleSecs       int
	DBMaxLifeSecs       int
	DBConnTimeoutSecs   int
	DBStatementCache    int
	MigrateOnStart      bool
	JWTSecret           string
	SessionTTLMinutes   int
	BcryptCost          int
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RabbitMQURL         string
	ReviewMaxAttempts   int
	ReviewLockTimeoutMS int
	LogLevel            string
	LogFile             string
}

var defaults = map[string]interface{}{
	"PORT":                        "8080",
	"SERVER_READ_TIMEOUT":         15,
	"SERVER_WRITE_TIMEOUT":        15,
	"SERVER_IDLE_TIMEOUT":         60,
	"DB_MAX_CONNS":                20,
	"DB_MIN_CONNS":                2,
	"DB_MAX_CONN_IDLE_SECS":       300,
	"DB_MAX_CONN_LIFETIME_SECS":   3600,
	"DB_CONN_TIMEOUT_SECS":        10,
	"DB_STATEMENT_CACHE_CAPACITY": 256,
	"MIGRATE_ON_START":            true,
	"SESSION_TTL_MINUTES":         60 * 24 * 7,
	"BCRYPT_COST":                 12,
	"REDIS_DB":                    0,
	"REVIEW_MAX_ATTEMPTS":         5,
	"REVIEW_LOCK_TIMEOUT_MS":      2000,
	"LOG_LEVEL":                   "info",
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := Config{
		Port:                v.GetString("PORT"),
		AdminToken:          v.GetString("ADMIN_TOKEN"),
		DBURL:               v.GetString("DB_URL"),
		ReadTimeoutSecs:     v.GetInt("SERVER_READ_TIMEOUT"),
		WriteTimeoutSecs:    v.GetInt("SERVER_WRITE_TIMEOUT"),
		IdleTimeoutSecs:     v.GetInt("SERVER_IDLE_TIMEOUT"),
		DBMaxConns:          v.GetInt("DB_MAX_CONNS"),
		DBMinConns:          v.GetInt("DB_MIN_CONNS"),
		DBMaxIdleSecs:       v.GetInt("DB_MAX_CONN_IDLE_SECS"),
		DBMaxLifeSecs:       v.GetInt("DB_MAX_CONN_LIFETIME_SECS"),
		DBConnTimeoutSecs:   v.GetInt("DB_CONN_TIMEOUT_SECS"),
		DBStatementCache:    v.GetInt("DB_STATEMENT_CACHE_CAPACITY"),
		MigrateOnStart:      v.GetBool("MIGRATE_ON_START"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		SessionTTLMinutes:   v.GetInt("SESSION_TTL_MINUTES"),
		BcryptCost:          v.GetInt("BCRYPT_COST"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		ReviewMaxAttempts:   v.GetInt("REVIEW_MAX_ATTEMPTS"),
		ReviewLockTimeoutMS: v.GetInt("REVIEW_LOCK_TIMEOUT_MS"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFile:             v.GetString("LOG_FILE"),
	}

	if cfg.AdminToken == "" {
		return Config{}, fmt.Errorf("ADMIN_TOKEN is required")
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if len(cfg.JWTSecret) < 16 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if cfg.SessionTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.ReviewMaxAttempts < 1 {
		return Config{}, fmt.Errorf("REVIEW_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.ReviewLockTimeoutMS < 0 {
		return Config{}, fmt.Errorf("REVIEW_LOCK_TIMEOUT_MS must be non-negative")
	}

	return cfg, nil
}
