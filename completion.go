package iap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/types"
)

// EncodeReceipt base64-encodes a raw receipt and percent-encodes the result
// for use as a form value.
func EncodeReceipt(raw []byte) string {
	return url.QueryEscape(base64.StdEncoding.EncodeToString(raw))
}

// DecodeReceipt reverses EncodeReceipt.
func DecodeReceipt(s string) ([]byte, error) {
	unescaped, err := url.QueryUnescape(s)
	if err != nil {
		return nil, fmt.Errorf("iap: decode receipt: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return nil, fmt.Errorf("iap: decode receipt: %w", err)
	}
	return raw, nil
}

// complete records a purchased transaction and reports it. Errors returned
// are ledger failures; business failures go to the callback.
func (m *Manager) complete(ctx context.Context, tx payment.Transaction) error {
	userID, err := m.ledger.CurrentUser(ctx)
	if err != nil {
		m.deliver(m.route(tx), failed(err), tx)
		return err
	}
	orderID, err := m.ledger.CurrentOrder(ctx)
	if err != nil {
		m.deliver(m.route(tx), failed(err), tx)
		return err
	}
	// The payment context was stamped at submission and survives restarts
	// and deferred attempts that were overtaken by a newer Buy.
	if u, o, ok := payment.ParseContextString(tx.Payment.ApplicationUsername); ok && (u != userID || o != orderID) {
		m.logger.Debug("using payment context ids",
			"transaction_id", tx.ID,
			"ledger_order_id", orderID,
			"context_order_id", o,
		)
		userID, orderID = u, o
	}
	if orderID == "" {
		m.plugins.EmitPurchaseFailed(ctx, tx, ErrMissingOrderID)
		m.deliver(m.route(tx), failed(ErrMissingOrderID), tx)
		return nil
	}

	rec := ledger.Record{
		UserID:        userID,
		OrderID:       orderID,
		TransactionID: tx.ID,
		ProductID:     tx.Payment.ProductID,
		Entity:        types.NewEntity(),
	}

	if m.placeholders {
		if err := m.ledger.AddRecord(ctx, rec); err != nil {
			m.deliver(m.route(tx), failed(err), tx)
			return err
		}
	}

	raw, err := m.receipts.Receipt(ctx)
	if err != nil || len(raw) == 0 {
		if err != nil && !errors.Is(err, payment.ErrNoReceipt) {
			m.logger.Warn("receipt read failed",
				"transaction_id", tx.ID,
				"error", err,
			)
		}
		m.plugins.EmitPurchaseFailed(ctx, tx, ErrInvalidReceipt)
		m.deliver(m.route(tx), failed(ErrInvalidReceipt), tx)
		return nil
	}

	rec.Receipt = EncodeReceipt(raw)
	if err := m.ledger.AddRecord(ctx, rec); err != nil {
		m.deliver(m.route(tx), failed(err), tx)
		return err
	}

	m.logger.Info("purchase completed",
		"transaction_id", tx.ID,
		"order_id", rec.OrderID,
		"user_id", rec.UserID,
	)
	m.plugins.EmitPurchaseCompleted(ctx, rec)
	m.deliver(m.route(tx), succeeded(rec), tx)

	return m.clearCurrent(ctx, userID, orderID)
}

// clearCurrent empties the in-flight user and order ids unless a callback
// already started another purchase that replaced them.
func (m *Manager) clearCurrent(ctx context.Context, userID, orderID string) error {
	curOrder, err := m.ledger.CurrentOrder(ctx)
	if err != nil {
		return err
	}
	curUser, err := m.ledger.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if curOrder != orderID || curUser != userID {
		return nil
	}
	return errors.Join(
		m.ledger.SetUser(ctx, ""),
		m.ledger.SetOrder(ctx, ""),
	)
}

// Finish confirms that the merchant backend has accepted the order in
// fields and drops its record. Fields without an order id are ignored.
// Finishing an unknown order is a no-op.
func (m *Manager) Finish(ctx context.Context, fields map[string]string) error {
	orderID, ok := fields[ledger.FieldOrderID]
	if !ok {
		m.logger.Debug("finish ignored: no order id")
		return nil
	}

	_, existed, err := m.ledger.Record(ctx, orderID)
	if err != nil {
		return err
	}
	if err := m.ledger.RemoveRecord(ctx, orderID); err != nil {
		return err
	}

	if existed {
		m.logger.Info("order finished", "order_id", orderID)
		m.plugins.EmitRecordFinished(ctx, orderID)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Recovery
// ──────────────────────────────────────────────────

// RegisterRecoveryListener installs cb as the recovery listener, replacing
// any previous one, and immediately runs the recovery sweep. It reports
// whether any record was replayed.
func (m *Manager) RegisterRecoveryListener(ctx context.Context, cb Callback) (bool, error) {
	m.mu.Lock()
	m.listener = cb
	m.mu.Unlock()

	return m.Recover(ctx)
}

// Recover replays every unresolved record to the recovery listener. It
// reports false when there is no listener or nothing to replay.
func (m *Manager) Recover(ctx context.Context) (bool, error) {
	records, err := m.ledger.Records(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	listener := m.listener
	m.mu.Unlock()

	if len(records) == 0 || listener == nil {
		return false, nil
	}
	m.sweep(ctx, listener, records)
	return true, nil
}

// sweep calls listener once per record in ascending order id.
func (m *Manager) sweep(ctx context.Context, listener Callback, records map[string]ledger.Record) {
	sweepID := id.NewSweepID()

	for _, orderID := range slices.Sorted(maps.Keys(records)) {
		rec := records[orderID]
		m.logger.Debug("replaying record",
			"sweep_id", sweepID.String(),
			"order_id", orderID,
			"placeholder", rec.IsPlaceholder(),
			"age", rec.Age(),
		)
		listener(succeeded(rec))
	}

	m.logger.Info("recovery sweep replayed records",
		"sweep_id", sweepID.String(),
		"count", len(records),
	)
	m.plugins.EmitRecoveryReplayed(ctx, sweepID, len(records))
}
