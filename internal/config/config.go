package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

type Config struct {
	DatabaseURL        string
	RedisURL           string
	PaymentProviderURL string
	Port               int
	DBTimeout          time.Duration
	HTTPTimeout        time.Duration
	CircuitThreshold   int

	AdminSecret          string
	PaymentWebhookSecret string

	RateLimitOrdersPerMinute int

	OutboxWorkerInterval   time.Duration
	OutboxBatchLimit       int
	OutboxMaxAttempts      int
	OutboxRetryBaseDelay   time.Duration
	FakePaymentEnabled     bool
	FakePaymentSuccessRate float64
}

var (
	config *Config
	once   sync.Once
)

func Load() (*Config, error) {
	var err error
	once.Do(func() {
		config, err = load()
	})
	return config, err
}

func load() (*Config, error) {
	cfg := &Config{
		DBTimeout:                3 * time.Second,
		HTTPTimeout:              30 * time.Second,
		CircuitThreshold:         5,
		RateLimitOrdersPerMinute: 5,
		OutboxWorkerInterval:     5 * time.Second,
		OutboxBatchLimit:         10,
		OutboxMaxAttempts:        5,
		OutboxRetryBaseDelay:     time.Second,
		FakePaymentEnabled:       true,
		FakePaymentSuccessRate:   0.8,
	}

	var err error

	// Required environment variables
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.PaymentWebhookSecret = os.Getenv("PAYMENT_WEBHOOK_SECRET")
	if cfg.PaymentWebhookSecret == "" {
		return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET environment variable is required")
	}

	cfg.AdminSecret = os.Getenv("ADMIN_SECRET")
	if cfg.AdminSecret == "" {
		return nil, fmt.Errorf("ADMIN_SECRET environment variable is required")
	}

	// Optional environment variables with defaults
	cfg.RedisURL = os.Getenv("REDIS_URL")

	portStr := os.Getenv("PORT")
	if portStr == "" {
		cfg.Port = 8082
	} else {
		cfg.Port, err = strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT value: %v", err)
		}
	}

	// The service calls its own callback endpoint when simulating payments, so
	// the provider URL defaults to localhost on the configured port.
	cfg.PaymentProviderURL = os.Getenv("PAYMENT_PROVIDER_URL")
	if cfg.PaymentProviderURL == "" {
		cfg.PaymentProviderURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	if err := overrideInt(&cfg.RateLimitOrdersPerMinute, "RATE_LIMIT_ORDERS_PER_MINUTE"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.OutboxBatchLimit, "OUTBOX_BATCH_LIMIT"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.OutboxMaxAttempts, "OUTBOX_MAX_ATTEMPTS"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.OutboxWorkerInterval, "OUTBOX_WORKER_INTERVAL"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.OutboxRetryBaseDelay, "OUTBOX_RETRY_BASE_DELAY"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.HTTPTimeout, "HTTP_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := overrideBool(&cfg.FakePaymentEnabled, "FAKE_PAYMENT_ENABLED"); err != nil {
		return nil, err
	}
	if err := overrideFloat(&cfg.FakePaymentSuccessRate, "FAKE_PAYMENT_SUCCESS_RATE"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideInt(dst *int, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value: %v", key, err)
	}
	*dst = v
	return nil
}

func overrideDuration(dst *time.Duration, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value: %v", key, err)
	}
	*dst = v
	return nil
}

func overrideBool(dst *bool, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value: %v", key, err)
	}
	*dst = v
	return nil
}

func overrideFloat(dst *float64, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value: %v", key, err)
	}
	*dst = v
	return nil
}
