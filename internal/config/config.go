package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	Gateway   GatewayConfig
	RateLimit RateLimitConfig

	// AdminTokenHash is the bcrypt hash of the operator override token.
	// Empty disables the admin surface entirely.
	AdminTokenHash string

	IssuanceEmailEnabled bool
	SMTP                 SMTPConfig
}

// GatewayConfig carries the payment gateway connection surface.
type GatewayConfig struct {
	BaseURL         string
	SecretKey       string
	WebhookSecret   string
	CallbackBaseURL string
}

// RateLimitConfig tunes the per-client token buckets on the public
// payment endpoints. Rates are tokens per second.
type RateLimitConfig struct {
	InitiateRate  float64
	InitiateBurst int
	WebhookRate   float64
	WebhookBurst  int
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "memberpay"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "memberpay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Gateway: GatewayConfig{
			BaseURL:         strings.TrimRight(getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
			SecretKey:       strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
			WebhookSecret:   strings.TrimSpace(getenv("PAYSTACK_WEBHOOK_SECRET", "")),
			CallbackBaseURL: strings.TrimRight(getenv("PAYMENT_CALLBACK_BASE_URL", ""), "/"),
		},

		RateLimit: RateLimitConfig{
			InitiateRate:  getenvFloat64("RATE_LIMIT_INITIATE_RATE", 1),
			InitiateBurst: int(getenvInt64("RATE_LIMIT_INITIATE_BURST", 5)),
			WebhookRate:   getenvFloat64("RATE_LIMIT_WEBHOOK_RATE", 20),
			WebhookBurst:  int(getenvInt64("RATE_LIMIT_WEBHOOK_BURST", 50)),
		},

		AdminTokenHash: strings.TrimSpace(getenv("ADMIN_TOKEN_HASH", "")),

		IssuanceEmailEnabled: getenvBool("ISSUANCE_EMAIL_ENABLED", false),
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenv("SMTP_PORT", "587"),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "no-reply@memberpay.local"),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat64(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
