// Package audithook bridges purchase lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnPurchaseRequested   = (*Extension)(nil)
	_ plugin.OnPurchaseRejected    = (*Extension)(nil)
	_ plugin.OnPaymentSubmitted    = (*Extension)(nil)
	_ plugin.OnPurchaseCompleted   = (*Extension)(nil)
	_ plugin.OnPurchaseFailed      = (*Extension)(nil)
	_ plugin.OnPurchaseDeferred    = (*Extension)(nil)
	_ plugin.OnTransactionRestored = (*Extension)(nil)
	_ plugin.OnRecordFinished      = (*Extension)(nil)
	_ plugin.OnRecoveryReplayed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension records purchase lifecycle events through a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Purchase hooks
// ──────────────────────────────────────────────────

// OnPurchaseRequested implements plugin.OnPurchaseRequested.
func (e *Extension) OnPurchaseRequested(ctx context.Context, attemptID id.ID, productID, orderID, userID string) error {
	return e.record(ctx, ActionPurchaseRequested, SeverityInfo, OutcomePending,
		ResourcePurchase, attemptID.String(), CategoryPurchase, nil,
		"product_id", productID,
		"order_id", orderID,
		"user_id", userID,
	)
}

// OnPurchaseRejected implements plugin.OnPurchaseRejected.
func (e *Extension) OnPurchaseRejected(ctx context.Context, productID, orderID, userID string, reason error) error {
	return e.record(ctx, ActionPurchaseRejected, SeverityWarning, OutcomeFailure,
		ResourcePurchase, orderID, CategoryPurchase, reason,
		"product_id", productID,
		"user_id", userID,
	)
}

// OnPaymentSubmitted implements plugin.OnPaymentSubmitted.
func (e *Extension) OnPaymentSubmitted(ctx context.Context, attemptID id.ID, p payment.Payment) error {
	return e.record(ctx, ActionPaymentSubmitted, SeverityInfo, OutcomePending,
		ResourcePayment, attemptID.String(), CategoryPayment, nil,
		"product_id", p.ProductID,
		"quantity", p.Quantity,
		"context", p.ApplicationUsername,
	)
}

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (e *Extension) OnPurchaseCompleted(ctx context.Context, rec ledger.Record) error {
	return e.record(ctx, ActionPurchaseCompleted, SeverityInfo, OutcomeSuccess,
		ResourceRecord, rec.OrderID, CategoryPurchase, nil,
		"transaction_id", rec.TransactionID,
		"product_id", rec.ProductID,
		"user_id", rec.UserID,
	)
}

// OnPurchaseFailed implements plugin.OnPurchaseFailed.
func (e *Extension) OnPurchaseFailed(ctx context.Context, tx payment.Transaction, reason error) error {
	return e.record(ctx, ActionPurchaseFailed, SeverityError, OutcomeFailure,
		ResourceTransaction, tx.ID, CategoryPayment, reason,
		"product_id", tx.Payment.ProductID,
		"state", string(tx.State),
	)
}

// OnPurchaseDeferred implements plugin.OnPurchaseDeferred.
func (e *Extension) OnPurchaseDeferred(ctx context.Context, tx payment.Transaction) error {
	return e.record(ctx, ActionPurchaseDeferred, SeverityInfo, OutcomePending,
		ResourceTransaction, tx.ID, CategoryPayment, nil,
		"product_id", tx.Payment.ProductID,
	)
}

// OnTransactionRestored implements plugin.OnTransactionRestored.
func (e *Extension) OnTransactionRestored(ctx context.Context, tx payment.Transaction) error {
	return e.record(ctx, ActionTransactionRestored, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID, CategoryPayment, nil,
		"product_id", tx.Payment.ProductID,
	)
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnRecordFinished implements plugin.OnRecordFinished.
func (e *Extension) OnRecordFinished(ctx context.Context, orderID string) error {
	return e.record(ctx, ActionRecordFinished, SeverityInfo, OutcomeSuccess,
		ResourceRecord, orderID, CategoryReconciliation, nil,
	)
}

// OnRecoveryReplayed implements plugin.OnRecoveryReplayed.
func (e *Extension) OnRecoveryReplayed(ctx context.Context, sweepID id.ID, count int) error {
	return e.record(ctx, ActionRecoveryReplayed, SeverityWarning, OutcomePending,
		ResourceSweep, sweepID.String(), CategoryReconciliation, nil,
		"count", count,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
