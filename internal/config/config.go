package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// セッションの永続化先
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Backend
	BackendAPIURL  string
	BackendTimeout time.Duration

	// Session
	SessionMaxAge int
	SessionStore  string
	RedisURL      string

	// Plan
	PlanWaitTimeout time.Duration
	PlanIdleTTL     time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitAction  int

	// Submission / Cleanup
	SubmissionRetention time.Duration
	CleanupInterval     time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BackendAPIURL = os.Getenv("BACKEND_API_URL")
	if cfg.BackendAPIURL == "" {
		missing = append(missing, "BACKEND_API_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionStore = getEnvChoice("SESSION_STORE", SessionStorePostgres, SessionStorePostgres, SessionStoreRedis)
	cfg.RedisURL = getEnvString("REDIS_URL", "redis://localhost:6379/0")
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 10*time.Second)
	cfg.PlanWaitTimeout = getEnvDuration("PLAN_WAIT_TIMEOUT", 2*time.Second)
	cfg.PlanIdleTTL = getEnvDuration("PLAN_IDLE_TTL", 30*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAction = getEnvInt("RATE_LIMIT_ACTION", 30)
	cfg.SubmissionRetention = getEnvDuration("SUBMISSION_RETENTION", 24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvChoice は許可された値のいずれかであればそれを返し、それ以外はデフォルト値を返す。
func getEnvChoice(key, defaultVal string, allowed ...string) string {
	v := strings.ToLower(os.Getenv(key))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
