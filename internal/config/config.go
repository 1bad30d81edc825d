// Package config loads the gateway configuration from the environment into
// one immutable object. Nothing outside this package reads env vars;
// request handling sees only the loaded Config.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port           int
	LogLevel       string
	FrontendOrigin string
	MaxBodyBytes   int64

	// Rate limiting (per client, fixed window)
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Document store
	ElasticURL      string
	ElasticIndex    string
	ElasticPipeline string
	ElasticAPIKey   string
	ElasticUsername string
	ElasticPassword string

	// Accounts backend
	AccountsTokenURL     string
	AccountsClientID     string
	AccountsClientSecret string
	AccountsScope        string
	AccountsDetailsURL   string

	// Power Automate flow (optional notifier)
	FlowURL          string
	FlowAPIKeyHeader string
	FlowAPIKey       string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffMultiplier int
	MaxBackoff        time.Duration
	MaxConcurrency    int

	// Caches
	TokenTTLFallback time.Duration
	TrackingTTL      time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:           getEnvInt("PORT", 4000),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "http://localhost:5173"),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 100*1024)),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),

		ElasticURL:      getEnv("ELASTIC_URL", ""),
		ElasticIndex:    getEnv("ELASTIC_INDEX", "complaints"),
		ElasticPipeline: getEnv("ELASTIC_PIPELINE", "complaints_ingest_pipeline"),
		ElasticAPIKey:   getEnv("ELASTIC_API_KEY", ""),
		ElasticUsername: getEnv("ELASTIC_USERNAME", ""),
		ElasticPassword: getEnv("ELASTIC_PASSWORD", ""),

		AccountsTokenURL:     getEnv("ACCOUNTS_TOKEN_URL", ""),
		AccountsClientID:     getEnv("ACCOUNTS_CLIENT_ID", ""),
		AccountsClientSecret: getEnv("ACCOUNTS_CLIENT_SECRET", ""),
		AccountsScope:        getEnv("ACCOUNTS_SCOPE", ""),
		AccountsDetailsURL:   getEnv("ACCOUNTS_DETAILS_URL", ""),

		FlowURL:          getEnv("FLOW_URL", ""),
		FlowAPIKeyHeader: getEnv("FLOW_API_KEY_HEADER", ""),
		FlowAPIKey:       getEnv("FLOW_API_KEY", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 5*time.Second),

		MaxRetries:        getEnvInt("MAX_RETRIES", 2),
		InitialBackoff:    getEnvDuration("INITIAL_BACKOFF", 500*time.Millisecond),
		BackoffMultiplier: getEnvInt("BACKOFF_MULTIPLIER", 3),
		MaxBackoff:        getEnvDuration("MAX_BACKOFF", 3*time.Second),
		MaxConcurrency:    getEnvInt("MAX_CONCURRENCY", 20),

		TokenTTLFallback: getEnvDuration("TOKEN_TTL_FALLBACK", 5*time.Minute),
		TrackingTTL:      getEnvDuration("TRACKING_TTL", 24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

// ValidateForSetup checks the settings the provisioning tool cannot run
// without. The live gateway degrades instead (missing auth is a logged
// warning); the setup tool treats these as fatal.
func (c *Config) ValidateForSetup() error {
	if c.ElasticURL == "" {
		return &domain.ErrConfiguration{Setting: "ELASTIC_URL", Reason: "document store URL is required"}
	}
	if c.ElasticAPIKey == "" && (c.ElasticUsername == "" || c.ElasticPassword == "") {
		return &domain.ErrConfiguration{
			Setting: "ELASTIC_API_KEY",
			Reason:  "either an API key or username+password must be configured",
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
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
