package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultPublicURL is used only when no public URL source is set.
const DefaultPublicURL = "http://localhost:3000"

// DefaultJWTSecret must be overridden outside development.
const DefaultJWTSecret = "change-me-in-production"

// Config holds application configuration loaded from environment.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Email    EmailConfig
	Log      LogConfig
}

// AppConfig holds deployment identity. PublicURL is resolved once at load time.
type AppConfig struct {
	Env             string // development, staging, production
	PublicURL       string
	PublicURLSource string // env var that supplied PublicURL, or "default"
}

// IsProduction reports whether APP_ENV is production.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds staff token signing settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds credentials and the bucket registration exports are written to.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ExportsBucket        string
	Endpoint             string // S3-compatible endpoint (MinIO, R2); empty uses AWS
	PresignExpireMinutes int
}

// EmailConfig for confirmation emails. An empty SMTPHost logs emails instead of sending them.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	NodeID      int64 // snowflake node for Message-IDs; unique per sending process
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
	Dev   bool
	File  string // optional path; rotated daily
}

// DSN returns the PostgreSQL connection string.
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

	publicURL, source := ResolvePublicURL(os.Getenv)
	env := strings.ToLower(getEnv("APP_ENV", "development"))

	cfg := &Config{
		App: AppConfig{
			Env:             env,
			PublicURL:       publicURL,
			PublicURLSource: source,
		},
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "blessbox"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 0)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", DefaultJWTSecret),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", ""),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@blessbox.org"),
			FromName:    getEnv("EMAIL_FROM_NAME", "BlessBox"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
			NodeID:      int64(getEnvInt("MAIL_NODE_ID", 1)),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", ""),
			Dev:   os.Getenv("LOG_DEV") == "1",
			File:  getEnv("LOG_FILE", ""),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// publicURLSources is the precedence order for the check-in link base; first non-empty wins.
var publicURLSources = []struct {
	key    string
	prefix string
}{
	{key: "NEXT_PUBLIC_APP_URL"},
	{key: "NEXTAUTH_URL"},
	{key: "PUBLIC_APP_URL"},
	{key: "VERCEL_URL", prefix: "https://"},
}

// ResolvePublicURL picks the public base URL from lookup in precedence order.
// It returns DefaultPublicURL with source "default" when nothing is set.
func ResolvePublicURL(lookup func(string) string) (value, source string) {
	for _, s := range publicURLSources {
		if v := strings.TrimSpace(lookup(s.key)); v != "" {
			return s.prefix + v, s.key
		}
	}
	return DefaultPublicURL, "default"
}

// Validate fails fast on settings that would silently misbehave at runtime.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.App.PublicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("public url %q from %s must be an absolute http(s) URL", c.App.PublicURL, c.App.PublicURLSource))
	}
	if c.App.IsProduction() {
		if c.App.PublicURLSource == "default" {
			errs = append(errs, errors.New("public url not configured: set NEXT_PUBLIC_APP_URL, NEXTAUTH_URL, PUBLIC_APP_URL or VERCEL_URL"))
		}
		if c.JWT.Secret == DefaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
	}
	if c.Email.NodeID < 0 || c.Email.NodeID > 1023 {
		errs = append(errs, errors.New("MAIL_NODE_ID must be between 0 and 1023"))
	}
	if c.JWT.ExpireHours <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRE_HOURS must be positive"))
	}
	return errors.Join(errs...)
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
