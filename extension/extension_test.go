package extension

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/iap"
	"github.com/xraph/iap/store/file"
	"github.com/xraph/iap/store/memory"
	"github.com/xraph/iap/store/sqlite"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
key_prefix: "app1:"
placeholder_records: true
plugin_timeout: 2s
store_driver: sqlite
store_dsn: "file:iap.db"
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "app1:", cfg.KeyPrefix)
	assert.True(t, cfg.PlaceholderRecords)
	assert.False(t, cfg.RecoverOnStart)
	assert.Equal(t, 2*time.Second, cfg.PluginTimeout)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "file:iap.db", cfg.StoreDSN)
	assert.Equal(t, 64, cfg.EventBuffer, "defaults fill missing fields")
	assert.Equal(t, "iap", cfg.StoreDatabase)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key_prefix: [unclosed"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestMergeConfigurations(t *testing.T) {
	fromFile := Config{KeyPrefix: "file:", EventBuffer: 8}
	programmatic := Config{
		KeyPrefix:      "prog:",
		RecoverOnStart: true,
		PluginTimeout:  time.Second,
		StoreDriver:    DriverFile,
		StoreDSN:       "/tmp/iap.yaml",
	}

	got := mergeConfigurations(fromFile, programmatic)

	assert.Equal(t, "file:", got.KeyPrefix)
	assert.Equal(t, 8, got.EventBuffer)
	assert.True(t, got.RecoverOnStart)
	assert.Equal(t, time.Second, got.PluginTimeout)
	assert.Equal(t, DriverFile, got.StoreDriver)
	assert.Equal(t, "/tmp/iap.yaml", got.StoreDSN)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := openStore(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	s, err = openStore(ctx, Config{StoreDriver: DriverFile, StoreDSN: filepath.Join(dir, "iap.yaml")})
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, s)

	s, err = openStore(ctx, Config{StoreDriver: DriverSQLite, StoreDSN: filepath.Join(dir, "iap.db")})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Close())

	_, err = openStore(ctx, Config{StoreDriver: DriverPostgres})
	require.ErrorIs(t, err, ErrMissingDSN)

	_, err = openStore(ctx, Config{StoreDriver: "redis", StoreDSN: "redis://localhost"})
	require.Error(t, err)
}

func TestBuildWiresManager(t *testing.T) {
	ctx := context.Background()
	e := New(
		WithStore(memory.New()),
		WithKeyPrefix("app1:"),
		WithPlaceholderRecords(),
	)
	e.config = mergeWithDefaults(e.config)

	require.NoError(t, e.build(ctx))
	require.NotNil(t, e.Manager())
	require.NotNil(t, e.Ledger())

	var got iap.Result
	require.NoError(t, e.Manager().Buy(ctx, "sku1", "order42", "user7", func(r iap.Result) { got = r }))
	assert.ErrorIs(t, got.Err, iap.ErrNoProducts, "the default sandbox catalog is empty")

	raw, err := e.store.Get(ctx, "app1:last_iap_order_id")
	require.NoError(t, err)
	assert.Equal(t, "order42", string(raw))

	require.NoError(t, e.Health(ctx))
}

func TestBuildManagerOpts(t *testing.T) {
	e := New(WithPluginTimeout(time.Second), WithManagerOption(iap.WithRecoverOnStart(false)))
	e.config = mergeWithDefaults(e.config)

	assert.Len(t, e.buildManagerOpts(), 4)
}
