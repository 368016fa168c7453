package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Email       EmailConfig
	Storage     StorageConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Logging     LoggingConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	Issuer    string
}

// EmailConfig selects the mail provider. Provider is one of "smtp",
// "resend" or "disabled"; disabled mode logs instead of sending.
type EmailConfig struct {
	Provider     string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	ResendAPIKey string
}

// StorageConfig points at the object storage endpoint used for image
// uploads. PublicBaseURL is prepended to object paths to build the URLs
// returned to clients.
type StorageConfig struct {
	Endpoint      string
	APIKey        string
	PublicBaseURL string
}

type RateLimitConfig struct {
	PublicPerMinute int
	UserPerMinute   int
	LoginPerMinute  int
}

type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:    getEnv("JWT_ISSUER", "gatherly"),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "disabled"),
			From:         getEnv("EMAIL_FROM", ""),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Storage: StorageConfig{
			Endpoint:      getEnv("STORAGE_ENDPOINT", ""),
			APIKey:        getEnv("STORAGE_API_KEY", ""),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvInt("RATE_LIMIT_PUBLIC", 120),
			UserPerMinute:   getEnvInt("RATE_LIMIT_USER", 300),
			LoginPerMinute:  getEnvInt("RATE_LIMIT_LOGIN", 10),
		},
		CORS: CORSConfig{
			AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
			AllowAllOrigins: getEnv("CORS_ALLOW_ALL", "") == "true",
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Environment == "development" && len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowAllOrigins = true
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.Email.Provider {
	case "disabled":
	case "smtp":
		if cfg.Email.SMTPHost == "" || cfg.Email.From == "" {
			return Config{}, fmt.Errorf("SMTP_HOST and EMAIL_FROM are required when EMAIL_PROVIDER=smtp")
		}
	case "resend":
		if cfg.Email.ResendAPIKey == "" || cfg.Email.From == "" {
			return Config{}, fmt.Errorf("RESEND_API_KEY and EMAIL_FROM are required when EMAIL_PROVIDER=resend")
		}
	default:
		return Config{}, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.Email.Provider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
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

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
