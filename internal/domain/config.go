package domain

import "time"

// Config holds the complete fuelrecon configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines which backends are used
	Tier Tier `json:"tier" yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`
	Matching   MatchingConfig   `json:"matching" yaml:"matching"`
	Worker     WorkerConfig     `json:"worker" yaml:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
	MaxUploadMB  int    `json:"maxUploadMb" yaml:"maxUploadMb"`
}

// MatchingConfig holds matcher settings that are not per template.
type MatchingConfig struct {
	// Defaults apply to templates that carry no tolerances.
	Defaults MatchingTolerances `json:"defaults" yaml:"defaults"`

	// Workers bounds concurrent line matching within one run.
	Workers int `json:"workers" yaml:"workers"`

	// ResolutionTTL keeps plate resolutions in the shared cache across runs.
	// Zero disables the shared cache.
	ResolutionTTL time.Duration `json:"resolutionTtl" yaml:"resolutionTtl"`

	// ProcessTimeout bounds one Process call.
	ProcessTimeout time.Duration `json:"processTimeout" yaml:"processTimeout"`
}

// WorkerConfig controls the async import worker.
type WorkerConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Tenants     []string `json:"tenants" yaml:"tenants"` // empty means all tenants
	Concurrency int      `json:"concurrency" yaml:"concurrency"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-process LRU
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 60,
			MaxUploadMB:  20,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./fuelrecon.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 100,
		},
		Matching: MatchingConfig{
			Defaults:       DefaultTolerances(),
			Workers:        4,
			ResolutionTTL:  10 * time.Minute,
			ProcessTimeout: 2 * time.Minute,
		},
		Worker: WorkerConfig{
			Enabled:     false,
			Concurrency: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fuelrecon",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fuelrecon",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Matching.Workers = 8
	cfg.Worker = WorkerConfig{Enabled: true, Concurrency: 4}
	cfg.Tracing.Enabled = true
	return cfg
}
