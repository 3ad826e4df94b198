package iap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/iap/payment"
)

// HandleTransactions processes a batch of platform notifications. Each
// transaction is handled independently; the returned error joins the
// failures of the individual entries.
func (m *Manager) HandleTransactions(ctx context.Context, txs ...payment.Transaction) error {
	var errs []error
	for _, tx := range txs {
		if err := m.handle(ctx, tx); err != nil {
			errs = append(errs, fmt.Errorf("iap: transaction %s: %w", tx.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) handle(ctx context.Context, tx payment.Transaction) error {
	logger := m.logger.With(
		"transaction_id", tx.ID,
		"product_id", tx.Payment.ProductID,
		"state", string(tx.State),
	)

	switch tx.State {
	case payment.StatePurchasing:
		logger.Debug("transaction purchasing")
		return nil

	case payment.StatePurchased:
		err := m.complete(ctx, tx)
		return errors.Join(err, m.finishTransaction(ctx, tx))

	case payment.StateFailed:
		reason := &PlatformError{
			TransactionID: tx.ID,
			ProductID:     tx.Payment.ProductID,
			Description:   tx.Error,
		}
		logger.Warn("transaction failed", "error", reason)
		m.plugins.EmitPurchaseFailed(ctx, tx, reason)
		m.deliver(m.route(tx), failed(reason), tx)
		return m.finishTransaction(ctx, tx)

	case payment.StateRestored:
		logger.Info("transaction restored")
		m.plugins.EmitTransactionRestored(ctx, tx)
		return m.finishTransaction(ctx, tx)

	case payment.StateDeferred:
		logger.Info("transaction deferred")
		m.park(tx)
		m.plugins.EmitPurchaseDeferred(ctx, tx)
		return nil

	default:
		logger.Warn("transaction in unknown state ignored")
		return nil
	}
}

func (m *Manager) finishTransaction(ctx context.Context, tx payment.Transaction) error {
	if err := m.queue.Finish(ctx, tx); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	return nil
}

// route picks the callback for a terminal event and frees whatever
// attempt it belonged to. The active attempt wins when it owns tx, then a
// deferred attempt that owns tx, then the recovery listener. A nil return
// means nobody is waiting.
func (m *Manager) route(tx payment.Transaction) Callback {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a := m.active; a != nil && a.owns(tx) {
		m.active = nil
		m.logger.Debug("transaction routed to attempt",
			"attempt_id", a.id.String(),
			"transaction_id", tx.ID,
			"elapsed", time.Since(a.startedAt),
		)
		return a.cb
	}
	if a := m.parkedFor(tx); a != nil {
		delete(m.parked, a.orderID)
		m.logger.Debug("transaction routed to deferred attempt",
			"attempt_id", a.id.String(),
			"transaction_id", tx.ID,
			"elapsed", time.Since(a.startedAt),
		)
		return a.cb
	}
	return m.listener
}

// parkedFor returns the deferred attempt that owns tx. Callers hold mu.
func (m *Manager) parkedFor(tx payment.Transaction) *attempt {
	if _, orderID, ok := payment.ParseContextString(tx.Payment.ApplicationUsername); ok {
		return m.parked[orderID]
	}
	var found *attempt
	for _, a := range m.parked {
		if a.owns(tx) && (found == nil || a.startedAt.Before(found.startedAt)) {
			found = a
		}
	}
	return found
}

// park moves the active attempt that owns tx aside so a new purchase can
// start while the platform waits for approval.
func (m *Manager) park(tx payment.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a := m.active; a != nil && a.owns(tx) {
		m.parked[a.orderID] = a
		m.active = nil
	}
}

// deliver invokes cb outside any lock.
func (m *Manager) deliver(cb Callback, res Result, tx payment.Transaction) {
	if cb == nil {
		m.logger.Warn("no callback waiting for transaction",
			"transaction_id", tx.ID,
			"product_id", tx.Payment.ProductID,
			"success", res.Success,
		)
		return
	}
	cb(res)
}
