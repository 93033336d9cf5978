package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config aggregates runtime configuration for the console.
type Config struct {
	App        AppConfig
	API        APIConfig
	TokenStore TokenStoreConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Notify     NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// APIConfig describes the remote REST API the client talks to.
type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
	MaxRetries     int
	RetryBackoffMS int
	RateLimitRPS   float64
	RateLimitBurst int
}

// TokenStoreConfig selects where the credential record is persisted.
type TokenStoreConfig struct {
	Backend string
	Path    string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NotificationConfig sizes the operator toast feed.
type NotificationConfig struct {
	FeedSize int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("API_RATE_LIMIT_RPS", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT_RPS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "concerttix-console"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		API: APIConfig{
			BaseURL:        strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5001/api"), "/"),
			TimeoutSeconds: getEnvAsInt("API_TIMEOUT_SECONDS", 15),
			MaxRetries:     getEnvAsInt("API_MAX_RETRIES", 3),
			RetryBackoffMS: getEnvAsInt("API_RETRY_BACKOFF_MS", 1000),
			RateLimitRPS:   rps,
			RateLimitBurst: getEnvAsInt("API_RATE_LIMIT_BURST", 10),
		},
		TokenStore: TokenStoreConfig{
			Backend: strings.ToLower(getEnv("TOKEN_STORE", StoreFile)),
			Path:    getEnv("TOKEN_STORE_PATH", defaultStorePath()),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "concerttix:v1:session"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Notify: NotificationConfig{
			FeedSize: getEnvAsInt("NOTIFICATION_FEED_SIZE", 50),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the console cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL must not be empty")
	}
	switch c.TokenStore.Backend {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.TokenStore.Path == "" {
			return fmt.Errorf("TOKEN_STORE_PATH required for file token store")
		}
	default:
		return fmt.Errorf("unknown TOKEN_STORE %q", c.TokenStore.Backend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the fixed client-side timeout for API calls.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// RetryBackoff returns the base delay between GET retries.
func (a APIConfig) RetryBackoff() time.Duration {
	if a.RetryBackoffMS < 0 {
		return 0
	}
	return time.Duration(a.RetryBackoffMS) * time.Millisecond
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".concerttix-session.json"
	}
	return dir + string(os.PathSeparator) + "concerttix" + string(os.PathSeparator) + "session.json"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
