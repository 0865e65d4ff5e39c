package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL time.Duration
	IdempotencyTTL time.Duration

	// Checkout intents are held in Redis for this long before they are
	// unusable for finalisation.
	CheckoutIntentTTL time.Duration

	// Shipping fee parameters. Defaults: 7 per gram, 70000 base fee.
	ShippingPerGramRate int64
	ShippingBaseFee     int64
	// City the courier submission method is restricted to.
	ShippingCourierCity string

	PaymentProvider    string
	GatewayMerchantID  string
	GatewayBaseURL     string
	GatewayCallbackURL string
	GatewayTimeout     time.Duration
	GatewayMaxAttempts int
	GatewayBackoffBase time.Duration

	RateLimitCheckoutMax    int64
	RateLimitCheckoutWindow time.Duration

	// Worker settings for the abandoned-order sweep.
	SweepInterval time.Duration
	SweepAfter    time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "72h"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		CheckoutIntentTTL: parseDuration(k.String("CHECKOUT_INTENT_TTL"), "1h"),

		ShippingPerGramRate: parseInt64(k.String("SHIPPING_PER_GRAM_RATE"), 7),
		ShippingBaseFee:     parseInt64(k.String("SHIPPING_BASE_FEE"), 70000),
		ShippingCourierCity: valueOrDefault(k.String("SHIPPING_COURIER_CITY"), "tehran"),

		PaymentProvider:    valueOrDefault(k.String("PAYMENT_PROVIDER"), "zarinpal"),
		GatewayMerchantID:  k.String("GATEWAY_MERCHANT_ID"),
		GatewayBaseURL:     k.String("GATEWAY_BASE_URL"),
		GatewayCallbackURL: k.String("GATEWAY_CALLBACK_URL"),
		GatewayTimeout:     parseDuration(k.String("GATEWAY_TIMEOUT"), "20s"),
		GatewayMaxAttempts: int(parseInt64(k.String("GATEWAY_MAX_ATTEMPTS"), 3)),
		GatewayBackoffBase: parseDuration(k.String("GATEWAY_BACKOFF_BASE"), "200ms"),

		RateLimitCheckoutMax:    parseInt64(k.String("RATELIMIT_CHECKOUT_MAX"), 10),
		RateLimitCheckoutWindow: parseDuration(k.String("RATELIMIT_CHECKOUT_WINDOW"), "1m"),

		SweepInterval: parseDuration(k.String("SWEEP_INTERVAL"), "5m"),
		SweepAfter:    parseDuration(k.String("SWEEP_AFTER"), "1h"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
