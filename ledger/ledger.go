// Package ledger keeps the durable purchase state: the user and order of the
// attempt in flight, and every billed transaction the merchant backend has
// not yet confirmed.
//
// Every mutation is written to the backing store before the call returns.
// If the write fails the in-memory state is left as it was and the error is
// returned, so the Ledger never reports a change the store does not hold.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/xraph/iap/store"
)

// Storage keys, relative to the configured prefix.
const (
	KeyUserID  = "last_iap_user_id"
	KeyOrderID = "last_iap_order_id"
	KeyRecords = "saved_iap_transactions"
)

// ErrCorruptRecords is returned when the persisted record map cannot be
// decoded. The ledger refuses to start from an empty map in that case, since
// that would silently drop unreconciled purchases.
var ErrCorruptRecords = errors.New("iap/ledger: corrupt records")

// Ledger is the durable purchase state. It is safe for concurrent use.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
	prefix string

	mu      sync.RWMutex
	loaded  bool
	userID  string
	orderID string
	records map[string]Record
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithKeyPrefix namespaces the three storage keys, e.g. "app1:" stores
// "app1:last_iap_user_id".
func WithKeyPrefix(prefix string) Option {
	return func(l *Ledger) { l.prefix = prefix }
}

// New creates a Ledger over s. State is loaded lazily on first access.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the backing store.
func (l *Ledger) Store() store.Store { return l.store }

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// Records returns a snapshot of all unresolved records keyed by order id.
func (l *Ledger) Records(ctx context.Context) (map[string]Record, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.records), nil
}

// Record returns the record for orderID, if any.
func (l *Ledger) Record(ctx context.Context, orderID string) (Record, bool, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return Record{}, false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[orderID]
	return rec, ok, nil
}

// Len returns the number of unresolved records.
func (l *Ledger) Len(ctx context.Context) (int, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records), nil
}

// CurrentUser returns the user id of the attempt in flight, or "".
func (l *Ledger) CurrentUser(ctx context.Context) (string, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return "", err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.userID, nil
}

// CurrentOrder returns the order id of the attempt in flight, or "".
func (l *Ledger) CurrentOrder(ctx context.Context) (string, error) {
	if err := l.ensureLoaded(ctx); err != nil {
		return "", err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.orderID, nil
}

// ──────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────

// SetUser overwrites the current user id. No validation is applied; an
// empty id clears the stored value.
func (l *Ledger) SetUser(ctx context.Context, userID string) error {
	if err := l.ensureLoaded(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.putString(ctx, KeyUserID, userID); err != nil {
		return err
	}
	l.userID = userID
	return nil
}

// SetOrder overwrites the current order id. No validation is applied; an
// empty id clears the stored value.
func (l *Ledger) SetOrder(ctx context.Context, orderID string) error {
	if err := l.ensureLoaded(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.putString(ctx, KeyOrderID, orderID); err != nil {
		return err
	}
	l.orderID = orderID
	return nil
}

// AddRecord inserts rec, replacing any record with the same order id.
func (l *Ledger) AddRecord(ctx context.Context, rec Record) error {
	if err := l.ensureLoaded(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := maps.Clone(l.records)
	next[rec.OrderID] = rec
	if err := l.putRecords(ctx, next); err != nil {
		return err
	}
	l.records = next

	l.logger.Debug("ledger: record added",
		"order_id", rec.OrderID,
		"transaction_id", rec.TransactionID,
		"pending", len(next),
	)
	return nil
}

// RemoveRecord deletes the record for orderID. Removing an unknown order id
// is a no-op and does not touch the store.
func (l *Ledger) RemoveRecord(ctx context.Context, orderID string) error {
	if err := l.ensureLoaded(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[orderID]; !ok {
		return nil
	}

	next := maps.Clone(l.records)
	delete(next, orderID)
	if err := l.putRecords(ctx, next); err != nil {
		return err
	}
	l.records = next

	l.logger.Debug("ledger: record removed",
		"order_id", orderID,
		"pending", len(next),
	)
	return nil
}

// Reload discards the in-memory copy and reads everything back from the
// store, as a fresh process would.
func (l *Ledger) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
	return l.loadLocked(ctx)
}

// ──────────────────────────────────────────────────
// Persistence
// ──────────────────────────────────────────────────

func (l *Ledger) key(name string) string { return l.prefix + name }

func (l *Ledger) ensureLoaded(ctx context.Context) error {
	l.mu.RLock()
	loaded := l.loaded
	l.mu.RUnlock()
	if loaded {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx)
}

func (l *Ledger) loadLocked(ctx context.Context) error {
	if l.loaded {
		return nil
	}

	userID, err := l.getString(ctx, KeyUserID)
	if err != nil {
		return err
	}
	orderID, err := l.getString(ctx, KeyOrderID)
	if err != nil {
		return err
	}

	records := make(map[string]Record)
	raw, err := l.store.Get(ctx, l.key(KeyRecords))
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("iap/ledger: load %s: %w", KeyRecords, err)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptRecords, err)
		}
		if records == nil {
			records = make(map[string]Record)
		}
	}

	l.userID = userID
	l.orderID = orderID
	l.records = records
	l.loaded = true

	l.logger.Debug("ledger: loaded",
		"user_id", userID,
		"order_id", orderID,
		"pending", len(records),
	)
	return nil
}

func (l *Ledger) getString(ctx context.Context, name string) (string, error) {
	raw, err := l.store.Get(ctx, l.key(name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("iap/ledger: load %s: %w", name, err)
	}
	return string(raw), nil
}

func (l *Ledger) putString(ctx context.Context, name, value string) error {
	var err error
	if value == "" {
		err = l.store.Delete(ctx, l.key(name))
	} else {
		err = l.store.Set(ctx, l.key(name), []byte(value))
	}
	if err != nil {
		return fmt.Errorf("iap/ledger: persist %s: %w", name, err)
	}
	return nil
}

func (l *Ledger) putRecords(ctx context.Context, records map[string]Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("iap/ledger: encode records: %w", err)
	}
	if err := l.store.Set(ctx, l.key(KeyRecords), raw); err != nil {
		return fmt.Errorf("iap/ledger: persist %s: %w", KeyRecords, err)
	}
	return nil
}
