package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onPurchaseRequested   []OnPurchaseRequested
	onPurchaseRejected    []OnPurchaseRejected
	onPaymentSubmitted    []OnPaymentSubmitted
	onPurchaseCompleted   []OnPurchaseCompleted
	onPurchaseFailed      []OnPurchaseFailed
	onPurchaseDeferred    []OnPurchaseDeferred
	onTransactionRestored []OnTransactionRestored
	onRecordFinished      []OnRecordFinished
	onRecoveryReplayed    []OnRecoveryReplayed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout. Non-positive values are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPurchaseRequested); ok {
		r.onPurchaseRequested = append(r.onPurchaseRequested, v)
	}
	if v, ok := p.(OnPurchaseRejected); ok {
		r.onPurchaseRejected = append(r.onPurchaseRejected, v)
	}
	if v, ok := p.(OnPaymentSubmitted); ok {
		r.onPaymentSubmitted = append(r.onPaymentSubmitted, v)
	}
	if v, ok := p.(OnPurchaseCompleted); ok {
		r.onPurchaseCompleted = append(r.onPurchaseCompleted, v)
	}
	if v, ok := p.(OnPurchaseFailed); ok {
		r.onPurchaseFailed = append(r.onPurchaseFailed, v)
	}
	if v, ok := p.(OnPurchaseDeferred); ok {
		r.onPurchaseDeferred = append(r.onPurchaseDeferred, v)
	}
	if v, ok := p.(OnTransactionRestored); ok {
		r.onTransactionRestored = append(r.onTransactionRestored, v)
	}
	if v, ok := p.(OnRecordFinished); ok {
		r.onRecordFinished = append(r.onRecordFinished, v)
	}
	if v, ok := p.(OnRecoveryReplayed); ok {
		r.onRecoveryReplayed = append(r.onRecoveryReplayed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnPurchaseRequested", reflect.TypeFor[OnPurchaseRequested]()},
	{"OnPurchaseRejected", reflect.TypeFor[OnPurchaseRejected]()},
	{"OnPaymentSubmitted", reflect.TypeFor[OnPaymentSubmitted]()},
	{"OnPurchaseCompleted", reflect.TypeFor[OnPurchaseCompleted]()},
	{"OnPurchaseFailed", reflect.TypeFor[OnPurchaseFailed]()},
	{"OnPurchaseDeferred", reflect.TypeFor[OnPurchaseDeferred]()},
	{"OnTransactionRestored", reflect.TypeFor[OnTransactionRestored]()},
	{"OnRecordFinished", reflect.TypeFor[OnRecordFinished]()},
	{"OnRecoveryReplayed", reflect.TypeFor[OnRecoveryReplayed]()},
}

// implementedHooks lists the hook interfaces p satisfies.
func implementedHooks(p Plugin) []string {
	var hooks []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			hooks = append(hooks, h.name)
		}
	}
	return hooks
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// emit runs call for every plugin in hooks, logging failures. A failing or
// slow plugin never stops the others.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, call func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return call(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, manager any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, manager)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitPurchaseRequested emits a purchase requested event.
func (r *Registry) EmitPurchaseRequested(ctx context.Context, attemptID id.ID, productID, orderID, userID string) {
	emit(ctx, r, "OnPurchaseRequested", snapshot(r, &r.onPurchaseRequested), func(p OnPurchaseRequested) error {
		return p.OnPurchaseRequested(ctx, attemptID, productID, orderID, userID)
	})
}

// EmitPurchaseRejected emits a purchase rejected event.
func (r *Registry) EmitPurchaseRejected(ctx context.Context, productID, orderID, userID string, reason error) {
	emit(ctx, r, "OnPurchaseRejected", snapshot(r, &r.onPurchaseRejected), func(p OnPurchaseRejected) error {
		return p.OnPurchaseRejected(ctx, productID, orderID, userID, reason)
	})
}

// EmitPaymentSubmitted emits a payment submitted event.
func (r *Registry) EmitPaymentSubmitted(ctx context.Context, attemptID id.ID, pay payment.Payment) {
	emit(ctx, r, "OnPaymentSubmitted", snapshot(r, &r.onPaymentSubmitted), func(p OnPaymentSubmitted) error {
		return p.OnPaymentSubmitted(ctx, attemptID, pay)
	})
}

// EmitPurchaseCompleted emits a purchase completed event.
func (r *Registry) EmitPurchaseCompleted(ctx context.Context, rec ledger.Record) {
	emit(ctx, r, "OnPurchaseCompleted", snapshot(r, &r.onPurchaseCompleted), func(p OnPurchaseCompleted) error {
		return p.OnPurchaseCompleted(ctx, rec)
	})
}

// EmitPurchaseFailed emits a purchase failed event.
func (r *Registry) EmitPurchaseFailed(ctx context.Context, tx payment.Transaction, reason error) {
	emit(ctx, r, "OnPurchaseFailed", snapshot(r, &r.onPurchaseFailed), func(p OnPurchaseFailed) error {
		return p.OnPurchaseFailed(ctx, tx, reason)
	})
}

// EmitPurchaseDeferred emits a purchase deferred event.
func (r *Registry) EmitPurchaseDeferred(ctx context.Context, tx payment.Transaction) {
	emit(ctx, r, "OnPurchaseDeferred", snapshot(r, &r.onPurchaseDeferred), func(p OnPurchaseDeferred) error {
		return p.OnPurchaseDeferred(ctx, tx)
	})
}

// EmitTransactionRestored emits a transaction restored event.
func (r *Registry) EmitTransactionRestored(ctx context.Context, tx payment.Transaction) {
	emit(ctx, r, "OnTransactionRestored", snapshot(r, &r.onTransactionRestored), func(p OnTransactionRestored) error {
		return p.OnTransactionRestored(ctx, tx)
	})
}

// EmitRecordFinished emits a record finished event.
func (r *Registry) EmitRecordFinished(ctx context.Context, orderID string) {
	emit(ctx, r, "OnRecordFinished", snapshot(r, &r.onRecordFinished), func(p OnRecordFinished) error {
		return p.OnRecordFinished(ctx, orderID)
	})
}

// EmitRecoveryReplayed emits a recovery replayed event.
func (r *Registry) EmitRecoveryReplayed(ctx context.Context, sweepID id.ID, count int) {
	emit(ctx, r, "OnRecoveryReplayed", snapshot(r, &r.onRecoveryReplayed), func(p OnRecoveryReplayed) error {
		return p.OnRecoveryReplayed(ctx, sweepID, count)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the purchase pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
