package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

var knownVars = []string{
	"CONFIG", "TIER", "HOST", "PORT", "MAX_UPLOAD_MB",
	"DB_DRIVER", "DB_PATH", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER",
	"POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_SSLMODE",
	"CACHE_TYPE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"BUS_TYPE", "NATS_URL", "NATS_TOKEN",
	"MATCH_WORKERS", "MATCH_DATE_TOLERANCE_DAYS", "MATCH_QUANTITY_TOLERANCE_PCT",
	"MATCH_AMOUNT_TOLERANCE_PCT", "MATCH_THRESHOLD", "MATCH_RESOLUTION_TTL",
	"MATCH_PROCESS_TIMEOUT", "ASYNC_WORKER", "TENANTS", "WORKER_CONCURRENCY",
	"LOG_LEVEL", "LOG_FORMAT", "DEBUG", "TRACING",
}

// clearEnv unsets every FUELRECON_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range knownVars {
		t.Setenv(EnvPrefix+name, "")
		os.Unsetenv(EnvPrefix + name)
	}
}

// load runs Load with a .env path that does not exist.
func load(t *testing.T) (*domain.Config, error) {
	t.Helper()
	return Load(filepath.Join(t.TempDir(), "missing.env"))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierCommunity {
		t.Errorf("expected community tier, got %s", cfg.Tier)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Repository.Driver)
	}
	if cfg.EventBus.Type != "channel" {
		t.Errorf("expected channel bus, got %s", cfg.EventBus.Type)
	}
	if cfg.Matching.Defaults != domain.DefaultTolerances() {
		t.Errorf("expected default tolerances, got %+v", cfg.Matching.Defaults)
	}
	if cfg.Worker.Enabled {
		t.Error("expected worker disabled on community tier")
	}
}

func TestLoadProTier(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"TIER", "PRO")

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierPro {
		t.Errorf("expected pro tier, got %s", cfg.Tier)
	}
	if cfg.Repository.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "redis" {
		t.Errorf("expected redis cache, got %s", cfg.Cache.Type)
	}
	if cfg.EventBus.Type != "nats" {
		t.Errorf("expected nats bus, got %s", cfg.EventBus.Type)
	}
	if !cfg.Worker.Enabled || cfg.Worker.Concurrency != 4 {
		t.Errorf("expected enabled worker with concurrency 4, got %+v", cfg.Worker)
	}
}

func TestLoadUnknownTier(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"TIER", "enterprise")

	if _, err := load(t); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "fuelrecon.yaml", `
server:
  port: 9090
matching:
  resolutionTtl: 30m
  defaults:
    dateToleranceDays: 5
worker:
  enabled: true
  tenants: [acme, globex]
logging:
  level: warn
`)
	t.Setenv(EnvPrefix+"CONFIG", path)

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host kept, got %s", cfg.Server.Host)
	}
	if cfg.Matching.ResolutionTTL != 30*time.Minute {
		t.Errorf("expected 30m resolution ttl, got %s", cfg.Matching.ResolutionTTL)
	}
	if cfg.Matching.Defaults.DateToleranceDays != 5 {
		t.Errorf("expected date tolerance 5, got %d", cfg.Matching.Defaults.DateToleranceDays)
	}
	if cfg.Matching.Defaults.AutoMatchThreshold != 0.85 {
		t.Errorf("expected default threshold kept, got %v", cfg.Matching.Defaults.AutoMatchThreshold)
	}
	if !cfg.Worker.Enabled || len(cfg.Worker.Tenants) != 2 || cfg.Worker.Tenants[1] != "globex" {
		t.Errorf("unexpected worker config %+v", cfg.Worker)
	}
	if LogLevel(cfg) != slog.LevelWarn {
		t.Errorf("expected warn level, got %s", LogLevel(cfg))
	}
}

func TestLoadYAMLTier(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "fuelrecon.yaml", `
tier: pro
repository:
  postgresHost: db.internal
`)
	t.Setenv(EnvPrefix+"CONFIG", path)

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tier != domain.TierPro {
		t.Errorf("expected pro tier, got %s", cfg.Tier)
	}
	if cfg.Repository.Driver != "postgres" || cfg.Repository.PostgresHost != "db.internal" {
		t.Errorf("unexpected repository config %+v", cfg.Repository)
	}
	if cfg.Repository.PostgresPort != 5432 {
		t.Errorf("expected pro default port kept, got %d", cfg.Repository.PostgresPort)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "fuelrecon.yaml", "server:\n  port: 9090\n")
	t.Setenv(EnvPrefix+"CONFIG", path)
	t.Setenv(EnvPrefix+"PORT", "7070")
	t.Setenv(EnvPrefix+"MATCH_THRESHOLD", "0.9")
	t.Setenv(EnvPrefix+"MATCH_PROCESS_TIMEOUT", "45s")
	t.Setenv(EnvPrefix+"TENANTS", " acme , ,globex,")
	t.Setenv(EnvPrefix+"ASYNC_WORKER", "true")

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Matching.Defaults.AutoMatchThreshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", cfg.Matching.Defaults.AutoMatchThreshold)
	}
	if cfg.Matching.ProcessTimeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %s", cfg.Matching.ProcessTimeout)
	}
	if got := strings.Join(cfg.Worker.Tenants, "|"); got != "acme|globex" {
		t.Errorf("expected tenants acme|globex, got %q", got)
	}
	if !cfg.Worker.Enabled {
		t.Error("expected worker enabled")
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, ".env", "FUELRECON_PORT=6060\nFUELRECON_LOG_FORMAT=text\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 6060 {
		t.Errorf("expected port 6060 from .env, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected text format from .env, got %s", cfg.Logging.Format)
	}
}

func TestLoadEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"BadInt", "PORT", "eighty"},
		{"BadFloat", "MATCH_THRESHOLD", "high"},
		{"BadBool", "ASYNC_WORKER", "maybe"},
		{"BadDuration", "MATCH_RESOLUTION_TTL", "10 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvPrefix+tt.key, tt.value)

			_, err := load(t)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), EnvPrefix+tt.key) {
				t.Errorf("expected error to name %s, got %v", tt.key, err)
			}
		})
	}
}

func TestDebugFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"LOG_LEVEL", "error")
	t.Setenv(EnvPrefix+"DEBUG", "1")

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if LogLevel(cfg) != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", LogLevel(cfg))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"Port", func(c *domain.Config) { c.Server.Port = 70000 }},
		{"Driver", func(c *domain.Config) { c.Repository.Driver = "mysql" }},
		{"Cache", func(c *domain.Config) { c.Cache.Type = "memcached" }},
		{"Bus", func(c *domain.Config) { c.EventBus.Type = "kafka" }},
		{"Workers", func(c *domain.Config) { c.Matching.Workers = 0 }},
		{"Threshold", func(c *domain.Config) { c.Matching.Defaults.AutoMatchThreshold = 1.2 }},
	}

	if err := Validate(domain.DefaultConfig()); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if err := Validate(domain.ProConfig()); err != nil {
		t.Fatalf("pro config should be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for name, want := range tests {
		cfg := domain.DefaultConfig()
		cfg.Logging.Level = name
		if got := LogLevel(cfg); got != want {
			t.Errorf("LogLevel(%q) = %s, want %s", name, got, want)
		}
	}
}
