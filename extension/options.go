package extension

import (
	"time"

	"github.com/xraph/iap"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/plugin"
	"github.com/xraph/iap/store"
)

// Option configures the iap Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger. It takes precedence over
// Config.StoreDriver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPlatform sets the payment platform collaborators. Without it the
// extension uses an in-memory sandbox platform.
func WithPlatform(q payment.Queue, c payment.Catalog, r payment.ReceiptSource) Option {
	return func(e *Extension) {
		e.queue, e.catalog, e.receipts = q, c, r
	}
}

// WithManagerOption passes an iap.Option through to the manager.
func WithManagerOption(opt iap.Option) Option {
	return func(e *Extension) {
		e.managerOpts = append(e.managerOpts, opt)
	}
}

// WithPlugin registers a manager plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.managerOpts = append(e.managerOpts, iap.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents store migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithKeyPrefix namespaces the ledger keys.
func WithKeyPrefix(prefix string) Option {
	return func(e *Extension) { e.config.KeyPrefix = prefix }
}

// WithPlaceholderRecords enables receipt-less placeholder records.
func WithPlaceholderRecords() Option {
	return func(e *Extension) { e.config.PlaceholderRecords = true }
}

// WithRecoverOnStart runs the recovery sweep when the extension starts.
func WithRecoverOnStart() Option {
	return func(e *Extension) { e.config.RecoverOnStart = true }
}

// WithEventBuffer sets the update buffer of the default sandbox platform.
func WithEventBuffer(n int) Option {
	return func(e *Extension) { e.config.EventBuffer = n }
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithStoreDriver selects the store backend and its DSN.
func WithStoreDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.StoreDriver = driver
		e.config.StoreDSN = dsn
	}
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
