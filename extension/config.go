package extension

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers accepted in Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the iap extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.iap" or "iap" keys).
type Config struct {
	// DisableMigrate prevents store migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// KeyPrefix namespaces the ledger keys so several apps can share one
	// store (default: none).
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix" yaml:"key_prefix"`

	// PlaceholderRecords persists a receipt-less record before the receipt
	// is read so a purchase with an unreadable receipt is still recovered.
	PlaceholderRecords bool `json:"placeholder_records" mapstructure:"placeholder_records" yaml:"placeholder_records"`

	// RecoverOnStart runs the recovery sweep when the extension starts.
	RecoverOnStart bool `json:"recover_on_start" mapstructure:"recover_on_start" yaml:"recover_on_start"`

	// EventBuffer is the update buffer of the default sandbox platform
	// (default: 64).
	EventBuffer int `json:"event_buffer" mapstructure:"event_buffer" yaml:"event_buffer"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// StoreDriver selects the store backend when none was provided
	// programmatically: memory, file, sqlite, postgres or mongo
	// (default: memory).
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// StoreDSN is the file path, sqlite DSN, postgres URL or mongo URI.
	StoreDSN string `json:"store_dsn" mapstructure:"store_dsn" yaml:"store_dsn"`

	// StoreDatabase is the mongo database name (default: "iap").
	StoreDatabase string `json:"store_database" mapstructure:"store_database" yaml:"store_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EventBuffer:   64,
		PluginTimeout: 5 * time.Second,
		StoreDriver:   DriverMemory,
		StoreDatabase: "iap",
	}
}

// LoadConfig reads a Config from a standalone YAML file, for applications
// that do not run a forge config manager. Missing fields take their
// defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("iap: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("iap: parse config %s: %w", path, err)
	}
	return mergeWithDefaults(cfg), nil
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = defaults.EventBuffer
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.StoreDatabase == "" {
		cfg.StoreDatabase = defaults.StoreDatabase
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.PlaceholderRecords {
		yamlConfig.PlaceholderRecords = true
	}
	if programmaticConfig.RecoverOnStart {
		yamlConfig.RecoverOnStart = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.KeyPrefix == "" {
		yamlConfig.KeyPrefix = programmaticConfig.KeyPrefix
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.StoreDSN == "" {
		yamlConfig.StoreDSN = programmaticConfig.StoreDSN
	}
	if yamlConfig.StoreDatabase == "" {
		yamlConfig.StoreDatabase = programmaticConfig.StoreDatabase
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.EventBuffer == 0 {
		yamlConfig.EventBuffer = programmaticConfig.EventBuffer
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
