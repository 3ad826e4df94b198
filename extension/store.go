package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/iap/store"
	"github.com/xraph/iap/store/file"
	"github.com/xraph/iap/store/memory"
	"github.com/xraph/iap/store/mongo"
	"github.com/xraph/iap/store/postgres"
	"github.com/xraph/iap/store/sqlite"
)

// ErrMissingDSN is returned when a persistent driver is selected without a
// DSN.
var ErrMissingDSN = errors.New("iap: store_dsn is required for this store driver")

// openStore builds the backend named by cfg.StoreDriver.
func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	if cfg.StoreDriver != DriverMemory && cfg.StoreDriver != "" && cfg.StoreDSN == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingDSN, cfg.StoreDriver)
	}

	switch cfg.StoreDriver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverFile:
		return file.New(cfg.StoreDSN), nil
	case DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := postgres.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo:
		s, err := mongo.Open(ctx, cfg.StoreDSN, cfg.StoreDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("iap: unknown store driver %q", cfg.StoreDriver)
	}
}
