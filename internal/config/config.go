package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Mail      MailConfig
	Storage   StorageConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	PublicURL             string
	FrontendURL           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
	Service  string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	JWTAlgorithm           string
	AccessTokenTTLSeconds  int
	EmailTokenTTLHours     int
	ResetTokenTTLMinutes   int
	BcryptCost             int
	HashWorkers            int
	AllowAdminRegistration bool
	AvatarAdminOnly        bool
}

// CacheConfig selects and tunes the identity cache.
type CacheConfig struct {
	Backend         string
	UserTTLSeconds  int
	MemorySize      int
	OpTimeoutMillis int
	StoreTimeoutMs  int
}

// RateLimitConfig holds per-route request budgets.
type RateLimitConfig struct {
	MePerMinute int
}

// MailConfig holds outbound SMTP settings.
type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	FromName  string
	Workers   int
	QueueSize int
}

// StorageConfig describes the S3 bucket used for avatars.
type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PublicBaseURL string
	AvatarPrefix  string
}

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "contacts-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PublicURL:             strings.TrimRight(os.Getenv("APP_PUBLIC_URL"), "/"),
			FrontendURL:           strings.TrimRight(getEnv("APP_FRONTEND_URL", "http://localhost:3000"), "/"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
			Service:  getEnv("APP_NAME", "contacts-service"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			JWTAlgorithm:           strings.ToUpper(getEnv("AUTH_JWT_ALGORITHM", "HS256")),
			AccessTokenTTLSeconds:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_SECONDS", 3600),
			EmailTokenTTLHours:     getEnvAsInt("AUTH_EMAIL_TOKEN_TTL_HOURS", 7*24),
			ResetTokenTTLMinutes:   getEnvAsInt("AUTH_RESET_TOKEN_TTL_MINUTES", 60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			HashWorkers:            getEnvAsInt("AUTH_HASH_WORKERS", runtime.NumCPU()),
			AllowAdminRegistration: getEnvAsBool("AUTH_ALLOW_ADMIN_REGISTRATION", false),
			AvatarAdminOnly:        getEnvAsBool("AUTH_AVATAR_ADMIN_ONLY", true),
		},
		Cache: CacheConfig{
			Backend:         strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendRedis)),
			UserTTLSeconds:  getEnvAsInt("CACHE_USER_TTL_SECONDS", 3600),
			MemorySize:      getEnvAsInt("CACHE_MEMORY_SIZE", 10000),
			OpTimeoutMillis: getEnvAsInt("CACHE_OP_TIMEOUT_MS", 250),
			StoreTimeoutMs:  getEnvAsInt("STORE_OP_TIMEOUT_MS", 2000),
		},
		RateLimit: RateLimitConfig{
			MePerMinute: getEnvAsInt("RATE_LIMIT_ME_PER_MINUTE", 7),
		},
		Mail: MailConfig{
			Host:      os.Getenv("MAIL_SERVER"),
			Port:      getEnvAsInt("MAIL_PORT", 587),
			Username:  os.Getenv("MAIL_USERNAME"),
			Password:  os.Getenv("MAIL_PASSWORD"),
			From:      getEnv("MAIL_FROM", "noreply@example.com"),
			FromName:  getEnv("MAIL_FROM_NAME", "Rest API Service"),
			Workers:   getEnvAsInt("MAIL_WORKERS", 2),
			QueueSize: getEnvAsInt("MAIL_QUEUE_SIZE", 256),
		},
		Storage: StorageConfig{
			Bucket:        getEnv("S3_BUCKET", "avatars"),
			Region:        getEnv("S3_REGION", "us-east-1"),
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			UsePathStyle:  getEnvAsBool("S3_USE_PATH_STYLE", false),
			PublicBaseURL: strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
			AvatarPrefix:  getEnv("S3_AVATAR_PREFIX", "RestApp"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Auth.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported AUTH_JWT_ALGORITHM %q", c.Auth.JWTAlgorithm)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == "dev-secret" {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.Cache.Backend)
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

func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLSeconds) * time.Second
}

func (a AuthConfig) EmailTokenTTL() time.Duration {
	return time.Duration(a.EmailTokenTTLHours) * time.Hour
}

func (a AuthConfig) ResetTokenTTL() time.Duration {
	return time.Duration(a.ResetTokenTTLMinutes) * time.Minute
}

func (c CacheConfig) UserTTL() time.Duration {
	return time.Duration(c.UserTTLSeconds) * time.Second
}

func (c CacheConfig) OpTimeout() time.Duration {
	return time.Duration(c.OpTimeoutMillis) * time.Millisecond
}

func (c CacheConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
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

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
