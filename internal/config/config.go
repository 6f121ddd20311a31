package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quhie/Coding-Challenge-Skipli/internal/utils"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreRedis    = "redis"
)

// Config holds application configuration derived from an optional YAML file
// and environment variables. Environment variables take precedence.
type Config struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Admin API token for gating admin endpoints (Bearer token)
	AdminAPIToken string `yaml:"admin_api_token"`

	// GitHub upstream
	GitHubAPIBaseURL          string        `yaml:"github_api_base_url"`
	GitHubUserAgent           string        `yaml:"github_user_agent"`
	GitHubAccessToken         string        `yaml:"github_access_token"`
	GitHubProfilePath         string        `yaml:"github_profile_path"`
	GitHubProfileFallbackPath string        `yaml:"github_profile_fallback_path"`
	GitHubSearchPath          string        `yaml:"github_search_path"`
	HTTPTimeout               time.Duration `yaml:"http_timeout"`
	LogHTTPAttempts           bool          `yaml:"log_http_attempts"`
	UpstreamRPS               float64       `yaml:"upstream_rps"` // 0 disables pacing
	UpstreamBurst             int           `yaml:"upstream_burst"`
	BreakerThreshold          int           `yaml:"upstream_breaker_threshold"`
	BreakerTimeout            time.Duration `yaml:"upstream_breaker_timeout"`

	// Cache
	ProfileCacheTTL time.Duration `yaml:"profile_cache_ttl"`
	SearchCacheTTL  time.Duration `yaml:"search_cache_ttl"`
	CacheMaxEntries int64         `yaml:"cache_max_entries"` // 0 = TTL-only eviction

	// Retry and fan-out
	RetryMaxAttempts  int           `yaml:"retry_max_attempts"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
	FanoutConcurrency int           `yaml:"fanout_concurrency"` // 0 = one task per ID

	// Store
	StoreBackend  string `yaml:"store_backend"`
	DatabaseURL   string `yaml:"database_url"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// SMS
	TwilioAccountSID  string `yaml:"twilio_account_sid"`
	TwilioAuthToken   string `yaml:"twilio_auth_token"`
	TwilioPhoneNumber string `yaml:"twilio_phone_number"`
	TwilioAPIBaseURL  string `yaml:"twilio_api_base_url"`

	// Security settings
	EnableRateLimit      bool     `yaml:"enable_rate_limit"`
	RateLimitGlobal      float64  `yaml:"rate_limit_global"`       // requests per second globally
	RateLimitGlobalBurst int      `yaml:"rate_limit_global_burst"` // burst size for global rate limit
	RateLimitPerIP       float64  `yaml:"rate_limit_per_ip"`       // requests per second per IP
	RateLimitPerIPBurst  int      `yaml:"rate_limit_per_ip_burst"` // burst size for per-IP rate limit
	CORSAllowedOrigins   []string `yaml:"cors_allowed_origins"`

	// Observability settings
	OTELEnabled       bool    `yaml:"otel_enabled"`
	OTELEndpoint      string  `yaml:"otel_endpoint"`
	OTELSampleRate    float64 `yaml:"otel_sample_rate"`
	SentryDSN         string  `yaml:"sentry_dsn"`
	SentryEnvironment string  `yaml:"sentry_environment"`
	SentryRelease     string  `yaml:"sentry_release"`
	ServiceVersion    string  `yaml:"service_version"`
}

var cached *Config

// Defaults returns the configuration used when neither a file nor the
// environment provide a value.
func Defaults() *Config {
	return &Config{
		Port:            "3000",
		Env:             "development",
		LogLevel:        "info",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		GitHubAPIBaseURL:          "https://api.github.com",
		GitHubUserAgent:           "GitHub-Auth-App/1.0",
		GitHubProfilePath:         "/user/%s",
		GitHubProfileFallbackPath: "/users/%s",
		GitHubSearchPath:          "/search/users",
		HTTPTimeout:               15 * time.Second,
		UpstreamBurst:             1,
		BreakerThreshold:          5,
		BreakerTimeout:            30 * time.Second,

		ProfileCacheTTL: 2 * time.Hour,
		SearchCacheTTL:  10 * time.Minute,

		RetryMaxAttempts: 3,
		RetryBaseDelay:   2 * time.Second,
		RetryMaxDelay:    10 * time.Second,

		StoreBackend:  StoreMemory,
		MongoDatabase: "github_auth_app",

		TwilioAPIBaseURL: "https://api.twilio.com",

		EnableRateLimit:      true,
		RateLimitGlobal:      100.0,
		RateLimitGlobalBurst: 200,
		RateLimitPerIP:       10.0,
		RateLimitPerIPBurst:  20,
		CORSAllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},

		OTELSampleRate: 0.1,
		ServiceVersion: "dev",
	}
}

// Load reads the optional CONFIG_FILE and env vars once and caches the result.
// A malformed config file is reported on stderr and ignored.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	applyEnv(cfg)
	cfg.normalize()
	cached = cfg
	return cached
}

// LoadFile decodes a YAML file onto cfg. A missing file is not an error.
func LoadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Port = utils.GetEnvAsString("PORT", c.Port)
	c.Env = utils.GetEnvAsString("ENV", c.Env)
	c.LogLevel = strings.ToLower(utils.GetEnvAsString("LOG_LEVEL", c.LogLevel))
	c.RequestTimeout = utils.GetEnvAsMillis("REQUEST_TIMEOUT_MS", c.RequestTimeout)
	c.ShutdownTimeout = utils.GetEnvAsMillis("SHUTDOWN_TIMEOUT_MS", c.ShutdownTimeout)
	c.AdminAPIToken = utils.GetEnvAsString("ADMIN_API_TOKEN", c.AdminAPIToken)

	c.GitHubAPIBaseURL = utils.GetEnvAsString("GITHUB_API_BASE_URL", c.GitHubAPIBaseURL)
	c.GitHubUserAgent = utils.GetEnvAsString("GITHUB_USER_AGENT", c.GitHubUserAgent)
	c.GitHubAccessToken = utils.GetEnvAsString("GITHUB_ACCESS_TOKEN", c.GitHubAccessToken)
	c.GitHubProfilePath = utils.GetEnvAsString("GITHUB_PROFILE_PATH", c.GitHubProfilePath)
	c.GitHubProfileFallbackPath = utils.GetEnvAsString("GITHUB_PROFILE_FALLBACK_PATH", c.GitHubProfileFallbackPath)
	c.GitHubSearchPath = utils.GetEnvAsString("GITHUB_SEARCH_PATH", c.GitHubSearchPath)
	c.HTTPTimeout = utils.GetEnvAsMillis("HTTP_TIMEOUT_MS", c.HTTPTimeout)
	c.LogHTTPAttempts = utils.GetEnvAsBool("LOG_HTTP_ATTEMPTS", c.LogHTTPAttempts)
	c.UpstreamRPS = utils.GetEnvAsFloat("UPSTREAM_RPS", c.UpstreamRPS)
	c.UpstreamBurst = utils.GetEnvAsInt("UPSTREAM_BURST", c.UpstreamBurst)
	c.BreakerThreshold = utils.GetEnvAsInt("UPSTREAM_BREAKER_THRESHOLD", c.BreakerThreshold)
	c.BreakerTimeout = utils.GetEnvAsMillis("UPSTREAM_BREAKER_TIMEOUT_MS", c.BreakerTimeout)

	c.ProfileCacheTTL = utils.GetEnvAsMillis("PROFILE_CACHE_TTL_MS", c.ProfileCacheTTL)
	c.SearchCacheTTL = utils.GetEnvAsMillis("SEARCH_CACHE_TTL_MS", c.SearchCacheTTL)
	c.CacheMaxEntries = int64(utils.GetEnvAsInt("CACHE_MAX_ENTRIES", int(c.CacheMaxEntries)))

	c.RetryMaxAttempts = utils.GetEnvAsInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryBaseDelay = utils.GetEnvAsMillis("RETRY_BASE_DELAY_MS", c.RetryBaseDelay)
	c.RetryMaxDelay = utils.GetEnvAsMillis("RETRY_MAX_DELAY_MS", c.RetryMaxDelay)
	c.FanoutConcurrency = utils.GetEnvAsInt("FANOUT_CONCURRENCY", c.FanoutConcurrency)

	c.StoreBackend = strings.ToLower(utils.GetEnvAsString("STORE_BACKEND", c.StoreBackend))
	c.DatabaseURL = utils.GetEnvAsString("DATABASE_URL", c.DatabaseURL)
	c.MongoURI = utils.GetEnvAsString("MONGO_URI", c.MongoURI)
	c.MongoDatabase = utils.GetEnvAsString("MONGO_DATABASE", c.MongoDatabase)
	c.RedisAddr = utils.GetEnvAsString("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = utils.GetEnvAsString("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = utils.GetEnvAsInt("REDIS_DB", c.RedisDB)

	c.TwilioAccountSID = utils.GetEnvAsString("TWILIO_ACCOUNT_SID", c.TwilioAccountSID)
	c.TwilioAuthToken = utils.GetEnvAsString("TWILIO_AUTH_TOKEN", c.TwilioAuthToken)
	c.TwilioPhoneNumber = utils.GetEnvAsString("TWILIO_PHONE_NUMBER", c.TwilioPhoneNumber)
	c.TwilioAPIBaseURL = utils.GetEnvAsString("TWILIO_API_BASE_URL", c.TwilioAPIBaseURL)

	c.EnableRateLimit = utils.GetEnvAsBool("ENABLE_RATE_LIMIT", c.EnableRateLimit)
	c.RateLimitGlobal = utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", c.RateLimitGlobal)
	c.RateLimitGlobalBurst = utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", c.RateLimitGlobalBurst)
	c.RateLimitPerIP = utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", c.RateLimitPerIP)
	c.RateLimitPerIPBurst = utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", c.RateLimitPerIPBurst)
	c.CORSAllowedOrigins = utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins, ",")

	c.OTELEnabled = utils.GetEnvAsBool("OTEL_ENABLED", c.OTELEnabled)
	c.OTELEndpoint = utils.GetEnvAsString("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTELEndpoint)
	c.OTELSampleRate = utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", c.OTELSampleRate)
	c.SentryDSN = utils.GetEnvAsString("SENTRY_DSN", c.SentryDSN)
	c.SentryEnvironment = utils.GetEnvAsString("SENTRY_ENVIRONMENT", c.SentryEnvironment)
	c.SentryRelease = utils.GetEnvAsString("SENTRY_RELEASE", c.SentryRelease)
	c.ServiceVersion = utils.GetEnvAsString("SERVICE_VERSION", c.ServiceVersion)
}

func (c *Config) normalize() {
	c.GitHubAPIBaseURL = strings.TrimRight(c.GitHubAPIBaseURL, "/")
	c.TwilioAPIBaseURL = strings.TrimRight(c.TwilioAPIBaseURL, "/")
	c.CORSAllowedOrigins = utils.UniqueStrings(c.CORSAllowedOrigins)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SentryEnvironment == "" {
		c.SentryEnvironment = c.Env
	}
	if c.SentryRelease == "" {
		c.SentryRelease = c.ServiceVersion
	}
	if c.RetryMaxAttempts < 1 {
		c.RetryMaxAttempts = 1
	}
	if c.UpstreamBurst < 1 {
		c.UpstreamBurst = 1
	}
	switch c.StoreBackend {
	case StoreMemory, StorePostgres, StoreMongo, StoreRedis:
	default:
		fmt.Fprintf(os.Stderr, "config: unknown STORE_BACKEND %q, using %s\n", c.StoreBackend, StoreMemory)
		c.StoreBackend = StoreMemory
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
