package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Email    EmailConfig
	Events   EventsConfig
	Auth     AuthConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins []string // "*" allows all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string // if set, used as-is
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis-backed features.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the banner bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	BannerBucket         string
	PresignExpireMinutes int
}

// EmailConfig selects the mail provider. Provider is "ses" or "noop".
type EmailConfig struct {
	Provider    string
	FromAddress string
	FromName    string
}

// EventsConfig controls event status computation.
type EventsConfig struct {
	DefaultDuration time.Duration
	Timezone        string
	StatusWriteBack bool
}

// Location resolves Timezone, falling back to the server's local zone.
func (c EventsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// AuthConfig controls account flows.
type AuthConfig struct {
	RequireEmailOTP bool
	OTPTTL          time.Duration
	OTPVerifiedTTL  time.Duration
	ResetTTL        time.Duration
	FrontendURL     string
}

// WorkerConfig controls the email worker.
type WorkerConfig struct {
	InProcess bool // run the worker inside cmd/server
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

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: splitTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"), ","),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "occasio"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 0),
			MinConns:        getEnvInt("DB_MIN_CONNS", 0),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 0),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BannerBucket:         getEnv("AWS_S3_BANNER_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "noop")),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@occasio.app"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Occasio"),
		},
		Events: EventsConfig{
			DefaultDuration: getEnvDuration("EVENT_DEFAULT_DURATION", 2*time.Hour),
			Timezone:        getEnv("EVENT_TIMEZONE", ""),
			StatusWriteBack: getEnvBool("EVENT_STATUS_WRITEBACK", true),
		},
		Auth: AuthConfig{
			RequireEmailOTP: getEnvBool("AUTH_REQUIRE_EMAIL_OTP", false),
			OTPTTL:          getEnvDuration("AUTH_OTP_TTL", 10*time.Minute),
			OTPVerifiedTTL:  getEnvDuration("AUTH_OTP_VERIFIED_TTL", 30*time.Minute),
			ResetTTL:        getEnvDuration("AUTH_RESET_TTL", 30*time.Minute),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Worker: WorkerConfig{
			InProcess: getEnvBool("WORKER_IN_PROCESS", false),
		},
	}
	if cfg.Email.Provider != "ses" && cfg.Email.Provider != "noop" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be ses or noop, got %q", cfg.Email.Provider)
	}
	if cfg.Auth.RequireEmailOTP && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("AUTH_REQUIRE_EMAIL_OTP needs REDIS_ADDR")
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
