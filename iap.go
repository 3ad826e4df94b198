package iap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/plugin"
)

// Manager coordinates purchases between the caller, the payment platform
// and the durable ledger.
type Manager struct {
	ledger   *ledger.Ledger
	queue    payment.Queue
	catalog  payment.Catalog
	receipts payment.ReceiptSource
	plugins  *plugin.Registry
	logger   *slog.Logger

	placeholders   bool
	recoverOnStart bool

	mu       sync.Mutex
	listener Callback
	active   *attempt
	parked   map[string]*attempt

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// attempt is one Buy call between its guards and its terminal event.
type attempt struct {
	id        id.ID
	productID string
	orderID   string
	userID    string
	cb        Callback
	startedAt time.Time
}

// owns reports whether tx was submitted by a. The order id in the payment
// context decides; transactions without one fall back to the product.
func (a *attempt) owns(tx payment.Transaction) bool {
	if _, orderID, ok := payment.ParseContextString(tx.Payment.ApplicationUsername); ok {
		return a.orderID == orderID
	}
	return a.productID == tx.Payment.ProductID
}

// New creates a Manager. The ledger and all three platform collaborators
// are required.
func New(l *ledger.Ledger, q payment.Queue, c payment.Catalog, r payment.ReceiptSource, opts ...Option) (*Manager, error) {
	if l == nil || q == nil || c == nil || r == nil {
		return nil, ErrNilCollaborator
	}

	m := &Manager{
		ledger:   l,
		queue:    q,
		catalog:  c,
		receipts: r,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		parked:   make(map[string]*attempt),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
		m.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(m *Manager) {
		_ = m.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.plugins.WithTimeout(d)
	}
}

// WithPlaceholderRecords makes the manager persist a receipt-less record
// for a purchased transaction before reading the receipt, so a purchase
// whose receipt cannot be read is still replayed by the recovery sweep.
func WithPlaceholderRecords(enabled bool) Option {
	return func(m *Manager) {
		m.placeholders = enabled
	}
}

// WithRecoverOnStart runs the recovery sweep from Start when a listener is
// already registered.
func WithRecoverOnStart(enabled bool) Option {
	return func(m *Manager) {
		m.recoverOnStart = enabled
	}
}

// Ledger returns the ledger the manager writes to.
func (m *Manager) Ledger() *ledger.Ledger { return m.ledger }

// Plugins returns the plugin registry.
func (m *Manager) Plugins() *plugin.Registry { return m.plugins }

// InFlight reports whether a purchase attempt currently holds the
// single-flight slot.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start loads the ledger and begins draining the payment queue.
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.done != nil {
		return ErrAlreadyStarted
	}

	pending, err := m.ledger.Len(ctx)
	if err != nil {
		return fmt.Errorf("iap: load ledger: %w", err)
	}

	m.plugins.EmitInit(ctx, m)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)

	m.logger.Info("iap manager started",
		"pending", pending,
		"plugins", m.plugins.Count(),
		"placeholder_records", m.placeholders,
	)

	if m.recoverOnStart {
		if _, err := m.Recover(ctx); err != nil {
			m.cancel()
			<-m.done
			m.done = nil
			m.cancel = nil
			return err
		}
	}

	return nil
}

// Stop shuts the queue worker down and waits for it to exit.
func (m *Manager) Stop() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.done == nil {
		return ErrNotStarted
	}

	m.cancel()
	<-m.done
	m.done = nil
	m.cancel = nil

	m.plugins.EmitShutdown(context.Background())
	m.logger.Info("iap manager stopped")

	return nil
}

// run drains Queue.Updates until ctx is canceled or the queue closes.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	updates := m.queue.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-updates:
			if !ok {
				m.logger.Info("payment queue closed")
				return
			}
			if err := m.HandleTransactions(ctx, batch...); err != nil {
				m.logger.Error("handle transactions failed",
					"count", len(batch),
					"error", err,
				)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Purchasing
// ──────────────────────────────────────────────────

// Buy starts a purchase of productID for the merchant order orderID placed
// by userID. The outcome is delivered to cb, possibly from another
// goroutine. Buy returns an error only when the ledger cannot be read or
// written; every other failure is reported through cb.
func (m *Manager) Buy(ctx context.Context, productID, orderID, userID string, cb Callback) error {
	if cb == nil {
		cb = func(Result) {}
	}

	records, err := m.ledger.Records(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	listener := m.listener
	if len(records) > 0 && listener != nil {
		m.mu.Unlock()
		m.sweep(ctx, listener, records)
		m.reject(ctx, productID, orderID, userID, cb, ErrRecoveryPending)
		return nil
	}
	if m.active != nil {
		m.mu.Unlock()
		m.reject(ctx, productID, orderID, userID, cb, ErrPurchaseInProgress)
		return nil
	}
	a := &attempt{
		id:        id.NewAttemptID(),
		productID: productID,
		orderID:   orderID,
		userID:    userID,
		cb:        cb,
		startedAt: time.Now(),
	}
	m.active = a
	m.mu.Unlock()

	if err := m.ledger.SetUser(ctx, userID); err != nil {
		m.release(a)
		return err
	}
	if err := m.ledger.SetOrder(ctx, orderID); err != nil {
		m.release(a)
		return err
	}

	m.logger.Info("purchase requested",
		"attempt_id", a.id.String(),
		"product_id", productID,
		"order_id", orderID,
		"user_id", userID,
	)
	m.plugins.EmitPurchaseRequested(ctx, a.id, productID, orderID, userID)

	return m.submit(ctx, a)
}

// submit looks the product up and hands the payment to the queue.
func (m *Manager) submit(ctx context.Context, a *attempt) error {
	products, err := m.catalog.Products(ctx, []string{a.productID})
	if err != nil {
		m.abort(ctx, a, err)
		return nil
	}
	if len(products) == 0 {
		m.abort(ctx, a, ErrNoProducts)
		return nil
	}

	var product *payment.Product
	for i := range products {
		if products[i].ID == a.productID {
			product = &products[i]
			break
		}
	}
	if product == nil {
		m.abort(ctx, a, ErrProductNotFound)
		return nil
	}

	orderID, err := m.ledger.CurrentOrder(ctx)
	if err != nil {
		m.release(a)
		return err
	}
	if orderID == "" {
		m.abort(ctx, a, ErrMissingOrderID)
		return nil
	}
	userID, err := m.ledger.CurrentUser(ctx)
	if err != nil {
		m.release(a)
		return err
	}
	if userID == "" {
		m.abort(ctx, a, ErrMissingUserID)
		return nil
	}

	pay := payment.Payment{
		ProductID:           product.ID,
		Quantity:            1,
		ApplicationUsername: payment.ContextString(userID, orderID),
	}
	if err := m.queue.Add(ctx, pay); err != nil {
		m.abort(ctx, a, err)
		return nil
	}

	m.logger.Debug("payment submitted",
		"attempt_id", a.id.String(),
		"product_id", pay.ProductID,
		"context", pay.ApplicationUsername,
	)
	m.plugins.EmitPaymentSubmitted(ctx, a.id, pay)

	return nil
}

// abort fails an attempt that never reached the platform.
func (m *Manager) abort(ctx context.Context, a *attempt, reason error) {
	m.release(a)

	m.logger.Warn("purchase failed before submission",
		"attempt_id", a.id.String(),
		"product_id", a.productID,
		"order_id", a.orderID,
		"error", reason,
	)
	m.plugins.EmitPurchaseFailed(ctx, payment.Transaction{
		State: payment.StateFailed,
		Payment: payment.Payment{
			ProductID:           a.productID,
			ApplicationUsername: payment.ContextString(a.userID, a.orderID),
		},
		Error: reason.Error(),
	}, reason)

	a.cb(failed(reason))
}

func (m *Manager) reject(ctx context.Context, productID, orderID, userID string, cb Callback, reason error) {
	m.logger.Info("purchase rejected",
		"product_id", productID,
		"order_id", orderID,
		"user_id", userID,
		"reason", reason,
	)
	m.plugins.EmitPurchaseRejected(ctx, productID, orderID, userID, reason)
	cb(failed(reason))
}

// release frees the single-flight slot if a still holds it.
func (m *Manager) release(a *attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == a {
		m.active = nil
	}
}
