package domain

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backends are wired in
	Tier Tier `json:"tier" ignored:"true"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Storage    StorageConfig    `json:"storage"`

	// Pipeline behavior
	Pipeline PipelineConfig `json:"pipeline"`

	// Fraud rule thresholds
	Rules RuleThresholds `json:"rules"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// PipelineConfig holds batch-processing settings.
type PipelineConfig struct {
	// UpsertWorkers bounds the worker pool used for parallel row upserts.
	UpsertWorkers int `json:"upsertWorkers"`

	// DayFirst controls how ambiguous dates like 01-02-2024 are read.
	// The source region exports DD-MM-YYYY, so this defaults to true.
	DayFirst bool `json:"dayFirst"`
}

// RuleThresholds centralizes every fraud-rule threshold. The source system
// had the same rules duplicated with drifting values; these are the single
// canonical defaults, overridable via environment.
type RuleThresholds struct {
	HighValueAmount float64 `json:"highValueAmount"`

	VelocityCount      int `json:"velocityCount"`
	VelocityWindowMins int `json:"velocityWindowMins"`

	GeoSwitchWindowMins int `json:"geoSwitchWindowMins"`

	DrainAmount     float64 `json:"drainAmount"`
	DrainWindowMins int     `json:"drainWindowMins"`

	StatusFailedAmount  float64 `json:"statusFailedAmount"`
	StatusPendingAmount float64 `json:"statusPendingAmount"`

	DeviceTxnCount int `json:"deviceTxnCount"`

	// Profile rules
	IncomeMultiple      float64 `json:"incomeMultiple"`
	StaleAccountYears   float64 `json:"staleAccountYears"`
	StaleAccountBalance float64 `json:"staleAccountBalance"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is SQLite + channels + in-memory cache + local files
	TierCommunity Tier = "community"

	// TierPro is PostgreSQL + NATS + Redis + GCS
	TierPro Tier = "pro"
)

// DefaultThresholds returns the canonical rule thresholds.
func DefaultThresholds() RuleThresholds {
	return RuleThresholds{
		HighValueAmount:     50000,
		VelocityCount:       10,
		VelocityWindowMins:  2,
		GeoSwitchWindowMins: 10,
		DrainAmount:         100000,
		DrainWindowMins:     10,
		StatusFailedAmount:  40000,
		StatusPendingAmount: 30000,
		DeviceTxnCount:      4,
		IncomeMultiple:      10,
		StaleAccountYears:   5,
		StaleAccountBalance: 100,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Storage: StorageConfig{
			Type:                "local",
			LocalDir:            "./data",
			IncomingContainer:   "incoming",
			MetadataContainer:   "metadata",
			QuarantineContainer: "quarantine",
		},
		Pipeline: PipelineConfig{
			UpsertWorkers: 8,
			DayFirst:      true,
		},
		Rules: DefaultThresholds(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
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
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:         "redis",
		RedisAddr:    "localhost:6379",
		LocalMaxSize: 1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Storage.Type = "gcs"
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfig builds the tier defaults and overlays KESTREL_* environment
// variables (e.g. KESTREL_SERVER_PORT, KESTREL_RULES_HIGHVALUEAMOUNT).
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if os.Getenv("KESTREL_TIER") == string(TierPro) {
		cfg = ProConfig()
	}

	if err := envconfig.Process("kestrel", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return cfg, nil
}
