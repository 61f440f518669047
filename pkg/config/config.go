package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// Default GoHighLevel endpoints. Overridable via env for testing against fakes.
const (
	DefaultAuthBaseURL = "https://marketplace.gohighlevel.com/oauth/chooselocation"
	DefaultTokenURL    = "https://services.leadconnectorhq.com/oauth/token"
	DefaultAPIBaseURL  = "https://services.leadconnectorhq.com"
)

// Config holds the core runtime configuration for a service instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // e.g. "ghl-adapter"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int    // service HTTP port

	// GoHighLevel app registration. All three are required at startup.
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthBaseURL string // hosted consent page
	TokenURL    string // OAuth2 token endpoint
	APIBaseURL  string // upstream API base

	// Session-keyed credential store.
	SessionStore string        // "memory" or "redis"
	SessionTTL   time.Duration // store entry lifetime (refresh tokens outlive access tokens)
	CleanupFreq  time.Duration // memory store cleanup goroutine frequency
	RedisAddr    string        // e.g. localhost:6379
	RedisDB      int
	RedisPass    string

	DatabaseURL string // optional: Postgres grant audit log
	NATSURL     string // optional: auth lifecycle event publishing
	EventPrefix string // NATS subject prefix for auth events

	AWSRegion  string // for AWS SDK client
	SecretName string // optional: AWS Secrets Manager secret holding the app credentials

	// Upstream HTTP behaviour.
	UpstreamTimeout time.Duration
	RateRPS         int
	RateBurst       int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "ghl-adapter"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("GHL_PORT", 9030),

		ClientID:     GetEnv("GHL_CLIENT_ID", ""),
		ClientSecret: GetEnv("GHL_CLIENT_SECRET", ""),
		RedirectURI:  GetEnv("GHL_REDIRECT_URI", ""),

		AuthBaseURL: GetEnv("GHL_AUTH_BASE_URL", DefaultAuthBaseURL),
		TokenURL:    GetEnv("GHL_TOKEN_URL", DefaultTokenURL),
		APIBaseURL:  GetEnv("GHL_API_BASE_URL", DefaultAPIBaseURL),

		SessionStore: GetEnv("SESSION_STORE", "memory"),
		SessionTTL:   GetEnvDuration("SESSION_TTL", 30*24*time.Hour),
		CleanupFreq:  GetEnvDuration("SESSION_CLEANUP_FREQ", 10*time.Minute),
		RedisAddr:    GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      GetEnvInt("REDIS_DB", 0),
		RedisPass:    GetEnv("REDIS_PASS", ""),

		DatabaseURL: GetEnv("DATABASE_URL", ""),
		NATSURL:     GetEnv("NATS_URL", ""),
		EventPrefix: GetEnv("EVENT_SUBJECT_PREFIX", "evt.ghl.auth"),

		AWSRegion:  GetEnv("AWS_REGION", "us-east-2"),
		SecretName: GetEnv("GHL_SECRET_NAME", ""),

		UpstreamTimeout: GetEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		RateRPS:         GetEnvInt("RATE_RPS", 10),
		RateBurst:       GetEnvInt("RATE_BURST", 20),

		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
	}
}

// Validate checks the settings the service cannot start without.
// The app credentials may arrive from the environment or from AWS Secrets
// Manager; call Validate after secret resolution.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("GHL_CLIENT_ID must be set")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("GHL_CLIENT_SECRET must be set")
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("GHL_REDIRECT_URI must be set")
	}
	return nil
}
