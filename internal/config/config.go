// Package config loads the fuelrecon configuration from .env files, an
// optional YAML file and FUELRECON_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FUELRECON_"

// Load builds the configuration:
//  1. variables from the given .env files (default ".env"), never
//     overriding variables already set;
//  2. the tier defaults (FUELRECON_TIER, else the YAML tier, else community);
//  3. the YAML file named by FUELRECON_CONFIG;
//  4. FUELRECON_* environment overrides.
func Load(envFiles ...string) (*domain.Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	var data []byte
	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	tier, err := resolveTier(data)
	if err != nil {
		return nil, err
	}
	cfg := domain.DefaultConfig()
	if tier == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.Tier = tier

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func resolveTier(data []byte) (domain.Tier, error) {
	if v := os.Getenv(EnvPrefix + "TIER"); v != "" {
		return parseTier(v)
	}
	if len(data) > 0 {
		var peek struct {
			Tier string `yaml:"tier"`
		}
		if err := yaml.Unmarshal(data, &peek); err != nil {
			return "", fmt.Errorf("parse config file: %w", err)
		}
		if peek.Tier != "" {
			return parseTier(peek.Tier)
		}
	}
	return domain.TierCommunity, nil
}

func parseTier(v string) (domain.Tier, error) {
	switch t := domain.Tier(strings.ToLower(strings.TrimSpace(v))); t {
	case domain.TierCommunity, domain.TierPro:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", v)
	}
}

// env collects the first parse error so applyEnv can stay linear.
type env struct {
	err error
}

func (e *env) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *env) setString(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *env) setInt(name string, dst *int) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = n
}

func (e *env) setFloat(name string, dst *float64) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = f
}

func (e *env) setBool(name string, dst *bool) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = b
}

func (e *env) setDuration(name string, dst *time.Duration) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = d
}

func (e *env) setList(name string, dst *[]string) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *env) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
}

func applyEnv(cfg *domain.Config) error {
	e := &env{}

	e.setString("HOST", &cfg.Server.Host)
	e.setInt("PORT", &cfg.Server.Port)
	e.setInt("MAX_UPLOAD_MB", &cfg.Server.MaxUploadMB)

	e.setString("DB_DRIVER", &cfg.Repository.Driver)
	e.setString("DB_PATH", &cfg.Repository.SQLitePath)
	e.setString("POSTGRES_HOST", &cfg.Repository.PostgresHost)
	e.setInt("POSTGRES_PORT", &cfg.Repository.PostgresPort)
	e.setString("POSTGRES_USER", &cfg.Repository.PostgresUser)
	e.setString("POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	e.setString("POSTGRES_DB", &cfg.Repository.PostgresDB)
	e.setString("POSTGRES_SSLMODE", &cfg.Repository.PostgresSSLMode)

	e.setString("CACHE_TYPE", &cfg.Cache.Type)
	e.setString("REDIS_ADDR", &cfg.Cache.RedisAddr)
	e.setString("REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	e.setInt("REDIS_DB", &cfg.Cache.RedisDB)

	e.setString("BUS_TYPE", &cfg.EventBus.Type)
	e.setString("NATS_URL", &cfg.EventBus.NATSUrl)
	e.setString("NATS_TOKEN", &cfg.EventBus.NATSToken)

	m := &cfg.Matching
	e.setInt("MATCH_WORKERS", &m.Workers)
	e.setInt("MATCH_DATE_TOLERANCE_DAYS", &m.Defaults.DateToleranceDays)
	e.setFloat("MATCH_QUANTITY_TOLERANCE_PCT", &m.Defaults.QuantityTolerancePct)
	e.setFloat("MATCH_AMOUNT_TOLERANCE_PCT", &m.Defaults.AmountTolerancePct)
	e.setFloat("MATCH_THRESHOLD", &m.Defaults.AutoMatchThreshold)
	e.setDuration("MATCH_RESOLUTION_TTL", &m.ResolutionTTL)
	e.setDuration("MATCH_PROCESS_TIMEOUT", &m.ProcessTimeout)

	e.setBool("ASYNC_WORKER", &cfg.Worker.Enabled)
	e.setList("TENANTS", &cfg.Worker.Tenants)
	e.setInt("WORKER_CONCURRENCY", &cfg.Worker.Concurrency)

	e.setString("LOG_LEVEL", &cfg.Logging.Level)
	e.setString("LOG_FORMAT", &cfg.Logging.Format)
	debug := false
	e.setBool("DEBUG", &debug)
	if debug {
		cfg.Logging.Level = "debug"
	}
	e.setBool("TRACING", &cfg.Tracing.Enabled)

	return e.err
}

// Validate checks the configuration for errors.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Repository.Driver != "sqlite" && cfg.Repository.Driver != "postgres" {
		return fmt.Errorf("invalid repository driver: %s", cfg.Repository.Driver)
	}
	if cfg.Cache.Type != "memory" && cfg.Cache.Type != "redis" {
		return fmt.Errorf("invalid cache type: %s", cfg.Cache.Type)
	}
	if cfg.EventBus.Type != "channel" && cfg.EventBus.Type != "nats" {
		return fmt.Errorf("invalid event bus type: %s", cfg.EventBus.Type)
	}
	if cfg.Matching.Workers < 1 {
		return fmt.Errorf("matching workers must be at least 1")
	}
	if err := cfg.Matching.Defaults.Validate(); err != nil {
		return fmt.Errorf("matching defaults: %w", err)
	}
	return nil
}

// LogLevel maps the configured level name onto a slog level.
func LogLevel(cfg *domain.Config) slog.Level {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
