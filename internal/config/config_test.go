package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.DB.Driver != "sqlite" || cfg.DB.Path != "app.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	c := cfg.Context
	if c.MaxMessages != 50 || c.MinCorpus != 20 || c.Trigger != 10 || c.RetainTail != 10 || c.KeepVersions != 5 {
		t.Fatalf("unexpected context defaults: %+v", c)
	}
	if cfg.Ledger.DefaultQuota != 100000 || cfg.Ledger.LowWaterMark != 1000 || cfg.Ledger.CharsPerToken != 4 {
		t.Fatalf("unexpected ledger defaults: %+v", cfg.Ledger)
	}
	if cfg.MaxBodyBytes != 1<<20 || cfg.MaxMessageRunes != 4000 {
		t.Fatalf("unexpected limits: body=%d runes=%d", cfg.MaxBodyBytes, cfg.MaxMessageRunes)
	}
	if cfg.AssistantUserID != "assistant" || cfg.SystemUserID != "system" {
		t.Fatalf("unexpected identities: %q %q", cfg.AssistantUserID, cfg.SystemUserID)
	}
}

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird")    // will normalize to "release"
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v2/")

	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/chat")

	t.Setenv("SUMMARY_MIN_CORPUS", "30")
	t.Setenv("SUMMARY_TRIGGER", "15")
	t.Setenv("SUMMARY_RETAIN_TAIL", "12")
	t.Setenv("TOKEN_DEFAULT_QUOTA", "5000")
	t.Setenv("TOKEN_RESERVATION_TTL", "2m")
	t.Setenv("ASSISTANT_USER_ID", "bot-1")
	t.Setenv("LLM_MODEL", "deepseek-chat")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("REDIS_ADDR", "redis:6379")

	t.Setenv("RATE_RPS", "x") // -> default 5.0
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.DSN == "" {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}
	if cfg.Context.MinCorpus != 30 || cfg.Context.Trigger != 15 || cfg.Context.RetainTail != 12 {
		t.Fatalf("context unexpected: %+v", cfg.Context)
	}
	if cfg.Ledger.DefaultQuota != 5000 || cfg.Ledger.ReservationTTL != 2*time.Minute {
		t.Fatalf("ledger unexpected: %+v", cfg.Ledger)
	}
	if cfg.AssistantUserID != "bot-1" || cfg.LLM.Model != "deepseek-chat" || cfg.LLM.Timeout != 5*time.Second {
		t.Fatalf("llm/identity unexpected: %+v", cfg)
	}
	if cfg.Worker.Concurrency != 0 || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("worker/events unexpected: %+v", cfg)
	}
	if cfg.RateRPS != 5.0 {
		t.Fatalf("rate fallback unexpected: %v", cfg.RateRPS)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"max body bytes", map[string]string{"MAX_BODY_BYTES": "-1"}, "MAX_BODY_BYTES"},
		{"message max runes", map[string]string{"MESSAGE_MAX_RUNES": "0"}, "MESSAGE_MAX_RUNES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"postgres without DSN", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"blank identity", map[string]string{"SYSTEM_USER_ID": " "}, "SYSTEM_USER_ID"},
		{"zero trigger", map[string]string{"SUMMARY_TRIGGER": "0"}, "SUMMARY_TRIGGER"},
		{"negative tail", map[string]string{"SUMMARY_RETAIN_TAIL": "-1"}, "SUMMARY_RETAIN_TAIL"},
		{"stale after", map[string]string{"SUMMARY_STALE_AFTER": "0s"}, "SUMMARY_STALE_AFTER"},
		{"negative quota", map[string]string{"TOKEN_DEFAULT_QUOTA": "-5"}, "TOKEN_DEFAULT_QUOTA"},
		{"reservation ttl", map[string]string{"TOKEN_RESERVATION_TTL": "0s"}, "TOKEN_RESERVATION_TTL"},
		{"chars per token", map[string]string{"TOKEN_CHARS_PER_TOKEN": "0"}, "TOKEN_CHARS_PER_TOKEN"},
		{"llm timeout", map[string]string{"LLM_TIMEOUT": "0s"}, "LLM_TIMEOUT"},
		{"reservation ttl within llm timeout", map[string]string{"TOKEN_RESERVATION_TTL": "30s", "LLM_TIMEOUT": "1m"}, "must exceed LLM_TIMEOUT"},
		{"stale after equals llm timeout", map[string]string{"SUMMARY_STALE_AFTER": "1m", "LLM_TIMEOUT": "1m"}, "must exceed LLM_TIMEOUT"},
		{"worker poll", map[string]string{"WORKER_POLL_INTERVAL": "0s"}, "worker intervals"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"otel sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestHelpers_getfloat_getint_getdur_getbool(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	t.Setenv("F_BAD", "nope")
	if getfloat("F_VALID", 0) != 3.14 || getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat mismatch")
	}
	t.Setenv("I_VALID", "42")
	t.Setenv("I_BAD", "x")
	if getint("I_VALID", 0) != 42 || getint("I_BAD", 7) != 7 {
		t.Fatalf("getint mismatch")
	}
	t.Setenv("D_VALID", "150ms")
	t.Setenv("D_BAD", "zzz")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond || getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur mismatch")
	}
	for _, v := range []string{"1", "TRUE", " yes ", "on"} {
		t.Setenv("B", v)
		if !getbool("B", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "false", " no ", "Off"} {
		t.Setenv("B", v)
		if getbool("B", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B", "")
	if !getbool("B", true) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: %#v", got)
	}
	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}
