// Package extension provides the Forge extension adapter for iap.
//
// It implements the forge.Extension interface to integrate the purchase
// manager into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.iap" or "iap" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/iap"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/payment/sandbox"
	"github.com/xraph/iap/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "iap"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "In-app purchase reconciliation"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the iap manager as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	manager     *iap.Manager
	ledger      *ledger.Ledger
	store       store.Store
	queue       payment.Queue
	catalog     payment.Catalog
	receipts    payment.ReceiptSource
	managerOpts []iap.Option
}

// New creates a new iap Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Manager returns the purchase manager.
// This is nil until Register is called.
func (e *Extension) Manager() *iap.Manager { return e.manager }

// Ledger returns the ledger behind the manager.
// This is nil until Register is called.
func (e *Extension) Ledger() *ledger.Ledger { return e.ledger }

// Register implements [forge.Extension]. It loads configuration, builds
// the store, ledger and manager, and registers them in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(context.Background()); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*ledger.Ledger, error) {
		return e.ledger, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*iap.Manager, error) {
		return e.manager, nil
	})
}

// build wires store, ledger, platform and manager from the resolved
// config.
func (e *Extension) build(ctx context.Context) error {
	if e.store == nil {
		s, err := openStore(ctx, e.config)
		if err != nil {
			return err
		}
		e.store = s
	}

	if e.queue == nil || e.catalog == nil || e.receipts == nil {
		platform := sandbox.New(sandbox.WithBuffer(e.config.EventBuffer))
		e.queue, e.catalog, e.receipts = platform, platform, platform
	}

	e.ledger = ledger.New(e.store, ledger.WithKeyPrefix(e.config.KeyPrefix))

	m, err := iap.New(e.ledger, e.queue, e.catalog, e.receipts, e.buildManagerOpts()...)
	if err != nil {
		return err
	}
	e.manager = m
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.manager == nil {
		return errors.New("iap: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	if err := e.manager.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.manager != nil {
		if err := e.manager.Stop(); err != nil && !errors.Is(err, iap.ErrNotStarted) {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("iap: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildManagerOpts constructs iap.Option values from the resolved config.
func (e *Extension) buildManagerOpts() []iap.Option {
	opts := make([]iap.Option, 0, len(e.managerOpts)+3)

	opts = append(opts,
		iap.WithPlaceholderRecords(e.config.PlaceholderRecords),
		iap.WithRecoverOnStart(e.config.RecoverOnStart),
	)
	if e.config.PluginTimeout > 0 {
		opts = append(opts, iap.WithPluginTimeout(e.config.PluginTimeout))
	}

	// Pass-through options last so they win.
	opts = append(opts, e.managerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("iap: configuration is required but not found in config files; " +
				"ensure 'extensions.iap' or 'iap' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("iap: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("key_prefix", e.config.KeyPrefix),
		forge.F("placeholder_records", e.config.PlaceholderRecords),
		forge.F("recover_on_start", e.config.RecoverOnStart),
		forge.F("event_buffer", e.config.EventBuffer),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("store_driver", e.config.StoreDriver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.iap", "iap"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("iap: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("iap: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}
