// Package sandbox is an in-memory payment platform. It implements the
// payment Queue, Catalog and ReceiptSource contracts and lets tests and
// local development script transaction outcomes.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/xraph/iap/payment"
)

// ErrClosed is returned when emitting on a closed platform.
var ErrClosed = errors.New("sandbox: platform closed")

// ErrBufferFull is returned by Add when the updates buffer has no room for
// the new transaction.
var ErrBufferFull = errors.New("sandbox: updates buffer full")

// ErrUnknownTransaction is returned by Resolve for an id the platform never
// issued or has already finished.
var ErrUnknownTransaction = errors.New("sandbox: unknown transaction")

// Compile-time interface checks.
var (
	_ payment.Queue         = (*Platform)(nil)
	_ payment.Catalog       = (*Platform)(nil)
	_ payment.ReceiptSource = (*Platform)(nil)
)

// Platform is a scriptable payment platform.
type Platform struct {
	mu       sync.Mutex
	logger   *slog.Logger
	products map[string]payment.Product
	receipt  []byte
	auto     *outcome
	addErr   error
	closed   bool

	sendMu   sync.RWMutex
	done     chan struct{}
	updates  chan []payment.Transaction
	payments []payment.Payment
	issued   []string
	open     map[string]payment.Transaction
	finished []string
}

type outcome struct {
	state payment.State
	err   string
}

// Option configures a Platform.
type Option func(*Platform)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Platform) { p.logger = logger }
}

// WithProducts seeds the catalog.
func WithProducts(products ...payment.Product) Option {
	return func(p *Platform) {
		for _, prod := range products {
			p.products[prod.ID] = prod
		}
	}
}

// WithReceipt sets the cached receipt blob.
func WithReceipt(receipt []byte) Option {
	return func(p *Platform) { p.receipt = slices.Clone(receipt) }
}

// WithBuffer sets how many update batches may be queued before Emit blocks.
// Add never blocks; it fails with ErrBufferFull instead.
func WithBuffer(n int) Option {
	return func(p *Platform) {
		if n > 0 {
			p.updates = make(chan []payment.Transaction, n)
		}
	}
}

// WithAutoOutcome makes every added payment resolve immediately to state.
// errDesc is used for StateFailed.
func WithAutoOutcome(state payment.State, errDesc string) Option {
	return func(p *Platform) { p.auto = &outcome{state: state, err: errDesc} }
}

// New creates a Platform with an empty catalog and no receipt.
func New(opts ...Option) *Platform {
	p := &Platform{
		logger:   slog.Default(),
		products: make(map[string]payment.Product),
		done:     make(chan struct{}),
		updates:  make(chan []payment.Transaction, 64),
		open:     make(map[string]payment.Transaction),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ──────────────────────────────────────────────────
// payment.Queue
// ──────────────────────────────────────────────────

// Add records the payment, issues a transaction in the purchasing state and
// emits it. With an auto outcome the terminal state follows in the same
// batch. Add does not wait for buffer space, so a purchase started from the
// goroutine draining Updates cannot deadlock.
func (p *Platform) Add(_ context.Context, pay payment.Payment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.addErr != nil {
		err := p.addErr
		p.addErr = nil
		return err
	}
	if p.closed {
		return ErrClosed
	}

	tx := payment.Transaction{
		ID:      uuid.NewString(),
		State:   payment.StatePurchasing,
		Payment: pay,
	}
	batch := []payment.Transaction{tx}
	last := tx
	if p.auto != nil {
		last.State = p.auto.state
		if last.State == payment.StateFailed {
			last.Error = p.auto.err
		}
		batch = append(batch, last)
	}

	// Close flips closed under mu before closing updates, so the channel
	// is open here.
	p.sendMu.RLock()
	select {
	case p.updates <- batch:
	default:
		p.sendMu.RUnlock()
		return ErrBufferFull
	}
	p.sendMu.RUnlock()

	p.payments = append(p.payments, pay)
	p.issued = append(p.issued, tx.ID)
	p.open[tx.ID] = last

	p.logger.Debug("sandbox: payment added",
		"transaction_id", tx.ID,
		"product_id", pay.ProductID,
	)
	return nil
}

// Finish marks the transaction handled.
func (p *Platform) Finish(_ context.Context, tx payment.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.open, tx.ID)
	p.finished = append(p.finished, tx.ID)
	return nil
}

// Updates implements payment.Queue.
func (p *Platform) Updates() <-chan []payment.Transaction { return p.updates }

// ──────────────────────────────────────────────────
// payment.Catalog and payment.ReceiptSource
// ──────────────────────────────────────────────────

// Products returns the catalog entries matching ids, in request order.
func (p *Platform) Products(_ context.Context, ids []string) ([]payment.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []payment.Product
	for _, id := range ids {
		if prod, ok := p.products[id]; ok {
			out = append(out, prod)
		}
	}
	return out, nil
}

// Receipt returns the cached receipt or payment.ErrNoReceipt.
func (p *Platform) Receipt(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.receipt) == 0 {
		return nil, payment.ErrNoReceipt
	}
	return slices.Clone(p.receipt), nil
}

// ──────────────────────────────────────────────────
// Scripting
// ──────────────────────────────────────────────────

// SetReceipt replaces the cached receipt. nil removes it.
func (p *Platform) SetReceipt(receipt []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipt = slices.Clone(receipt)
}

// SetProducts replaces the catalog.
func (p *Platform) SetProducts(products ...payment.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.products = make(map[string]payment.Product, len(products))
	for _, prod := range products {
		p.products[prod.ID] = prod
	}
}

// FailNextAdd makes the next Add return err.
func (p *Platform) FailNextAdd(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addErr = err
}

// Resolve moves an open transaction to state and emits it. errDesc is only
// used for StateFailed.
func (p *Platform) Resolve(ctx context.Context, txID string, state payment.State, errDesc string) (payment.Transaction, error) {
	p.mu.Lock()
	tx, ok := p.open[txID]
	if !ok {
		p.mu.Unlock()
		return payment.Transaction{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}
	tx.State = state
	tx.Error = ""
	if state == payment.StateFailed {
		tx.Error = errDesc
	}
	p.open[txID] = tx
	p.mu.Unlock()

	return tx, p.Emit(ctx, tx)
}

// Emit delivers a batch on the updates channel, blocking while the buffer
// is full.
func (p *Platform) Emit(ctx context.Context, txs ...payment.Transaction) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.updates <- slices.Clone(txs):
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the updates channel. Further Add and Emit calls fail.
func (p *Platform) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.sendMu.Lock()
	close(p.updates)
	p.sendMu.Unlock()
}

// ──────────────────────────────────────────────────
// Inspection
// ──────────────────────────────────────────────────

// Payments returns every payment added so far.
func (p *Platform) Payments() []payment.Payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.payments)
}

// LastTransaction returns the most recently issued transaction that is
// still open.
func (p *Platform) LastTransaction() (payment.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.issued) - 1; i >= 0; i-- {
		if tx, ok := p.open[p.issued[i]]; ok {
			return tx, true
		}
	}
	return payment.Transaction{}, false
}

// Open returns the transactions not yet finished.
func (p *Platform) Open() []payment.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]payment.Transaction, 0, len(p.open))
	for _, tx := range p.open {
		out = append(out, tx)
	}
	return out
}

// Finished returns the ids of finished transactions in finish order.
func (p *Platform) Finished() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.finished)
}
