// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server, logging,
// storage, context-window, token-ledger, LM provider and worker settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the storage backend.
type DBConfig struct {
	Driver       string // sqlite|postgres
	Path         string // SQLite path
	DSN          string // DATABASE_URL for postgres
	MaxOpenConns int
}

// ContextConfig holds the context-window and summarization thresholds.
// None of the values is load-bearing beyond "some threshold exists".
type ContextConfig struct {
	MaxMessages  int           // CONTEXT_MAX_MESSAGES, selector limit
	MinCorpus    int           // SUMMARY_MIN_CORPUS
	Trigger      int           // SUMMARY_TRIGGER
	RetainTail   int           // SUMMARY_RETAIN_TAIL
	KeepVersions int           // SUMMARY_KEEP_VERSIONS
	StaleAfter   time.Duration // SUMMARY_STALE_AFTER
}

// LedgerConfig holds token quota settings.
type LedgerConfig struct {
	DefaultQuota   int64         // TOKEN_DEFAULT_QUOTA per user per month
	LowWaterMark   int64         // TOKEN_LOW_WATERMARK
	ReservationTTL time.Duration // TOKEN_RESERVATION_TTL
	CharsPerToken  int           // TOKEN_CHARS_PER_TOKEN
}

// LLMConfig selects the OpenAI-compatible model endpoint.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// WorkerConfig tunes background summarization and the watchdog.
type WorkerConfig struct {
	Concurrency      int
	PollInterval     time.Duration
	WatchdogInterval time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s, assistant calls are slow
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB DBConfig

	// MaxMessageRunes caps a posted message.
	MaxMessageRunes int

	// Well-known identities, resolved once at startup.
	AssistantUserID string // authors assistant and system messages
	SystemUserID    string // account charged for summarization

	Context ContextConfig
	Ledger  LedgerConfig
	LLM     LLMConfig
	Worker  WorkerConfig

	// Events
	RedisAddr    string // empty disables Redis publishing
	RedisChannel string

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:         getenv("DB_PATH", "app.db"),
			DSN:          getenv("DATABASE_URL", ""),
			MaxOpenConns: getint("DB_MAX_OPEN_CONNS", 10),
		},

		MaxMessageRunes: getint("MESSAGE_MAX_RUNES", 4000),

		AssistantUserID: getenv("ASSISTANT_USER_ID", "assistant"),
		SystemUserID:    getenv("SYSTEM_USER_ID", "system"),

		Context: ContextConfig{
			MaxMessages:  getint("CONTEXT_MAX_MESSAGES", 50),
			MinCorpus:    getint("SUMMARY_MIN_CORPUS", 20),
			Trigger:      getint("SUMMARY_TRIGGER", 10),
			RetainTail:   getint("SUMMARY_RETAIN_TAIL", 10),
			KeepVersions: getint("SUMMARY_KEEP_VERSIONS", 5),
			StaleAfter:   getdur("SUMMARY_STALE_AFTER", 10*time.Minute),
		},
		Ledger: LedgerConfig{
			DefaultQuota:   int64(getint("TOKEN_DEFAULT_QUOTA", 100000)),
			LowWaterMark:   int64(getint("TOKEN_LOW_WATERMARK", 1000)),
			ReservationTTL: getdur("TOKEN_RESERVATION_TTL", 5*time.Minute),
			CharsPerToken:  getint("TOKEN_CHARS_PER_TOKEN", 4),
		},
		LLM: LLMConfig{
			BaseURL:     getenv("LLM_BASE_URL", ""),
			APIKey:      getenv("LLM_API_KEY", ""),
			Model:       getenv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:     getdur("LLM_TIMEOUT", 60*time.Second),
			MaxTokens:   getint("LLM_MAX_TOKENS", 1024),
			Temperature: getfloat("LLM_TEMPERATURE", 0.7),
		},
		Worker: WorkerConfig{
			Concurrency:      getint("WORKER_CONCURRENCY", 2),
			PollInterval:     getdur("WORKER_POLL_INTERVAL", 5*time.Second),
			WatchdogInterval: getdur("WATCHDOG_INTERVAL", 30*time.Second),
		},

		RedisAddr:    getenv("REDIS_ADDR", ""),
		RedisChannel: getenv("REDIS_CHANNEL", "groupchat.events"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-groupchat-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 || cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES and MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxMessageRunes < 1 {
		return cfg, errors.New("MESSAGE_MAX_RUNES must be >= 1")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be sqlite or postgres")
	}
	if strings.TrimSpace(cfg.AssistantUserID) == "" || strings.TrimSpace(cfg.SystemUserID) == "" {
		return cfg, errors.New("ASSISTANT_USER_ID and SYSTEM_USER_ID must not be empty")
	}
	c := cfg.Context
	if c.MaxMessages < 1 || c.MinCorpus < 0 || c.Trigger < 1 || c.RetainTail < 0 || c.KeepVersions < 1 {
		return cfg, errors.New("CONTEXT_MAX_MESSAGES, SUMMARY_TRIGGER and SUMMARY_KEEP_VERSIONS must be >= 1; SUMMARY_MIN_CORPUS and SUMMARY_RETAIN_TAIL >= 0")
	}
	if c.StaleAfter <= 0 {
		return cfg, errors.New("SUMMARY_STALE_AFTER must be > 0")
	}
	if cfg.Ledger.DefaultQuota < 0 || cfg.Ledger.LowWaterMark < 0 {
		return cfg, errors.New("TOKEN_DEFAULT_QUOTA and TOKEN_LOW_WATERMARK must be >= 0")
	}
	if cfg.Ledger.ReservationTTL <= 0 {
		return cfg, errors.New("TOKEN_RESERVATION_TTL must be > 0")
	}
	if cfg.Ledger.CharsPerToken < 1 {
		return cfg, errors.New("TOKEN_CHARS_PER_TOKEN must be >= 1")
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be > 0")
	}
	// The watchdog must not reclaim a reservation or reset a job while its
	// model call can still be running.
	if cfg.Ledger.ReservationTTL <= cfg.LLM.Timeout || c.StaleAfter <= cfg.LLM.Timeout {
		return cfg, errors.New("TOKEN_RESERVATION_TTL and SUMMARY_STALE_AFTER must exceed LLM_TIMEOUT")
	}
	if cfg.Worker.Concurrency < 0 || cfg.Worker.PollInterval <= 0 || cfg.Worker.WatchdogInterval <= 0 {
		return cfg, errors.New("worker intervals must be > 0 and WORKER_CONCURRENCY >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
