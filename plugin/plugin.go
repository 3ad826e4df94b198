// Package plugin provides an extensible plugin system for the purchase
// manager. Plugins hook into purchase lifecycle events; a plugin implements
// only the hook interfaces it cares about.
package plugin

import (
	"context"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the manager starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, manager any) error
}

// OnShutdown is called when the manager stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Purchase hooks
// ──────────────────────────────────────────────────

// OnPurchaseRequested is called when Buy passes its guards.
type OnPurchaseRequested interface {
	Plugin
	OnPurchaseRequested(ctx context.Context, attemptID id.ID, productID, orderID, userID string) error
}

// OnPurchaseRejected is called when Buy is turned away by a guard.
type OnPurchaseRejected interface {
	Plugin
	OnPurchaseRejected(ctx context.Context, productID, orderID, userID string, reason error) error
}

// OnPaymentSubmitted is called after a payment has been handed to the queue.
type OnPaymentSubmitted interface {
	Plugin
	OnPaymentSubmitted(ctx context.Context, attemptID id.ID, p payment.Payment) error
}

// OnPurchaseCompleted is called once a purchase has been recorded in the
// ledger.
type OnPurchaseCompleted interface {
	Plugin
	OnPurchaseCompleted(ctx context.Context, rec ledger.Record) error
}

// OnPurchaseFailed is called when a transaction fails or its completion
// cannot be recorded.
type OnPurchaseFailed interface {
	Plugin
	OnPurchaseFailed(ctx context.Context, tx payment.Transaction, reason error) error
}

// OnPurchaseDeferred is called when a transaction awaits external approval.
type OnPurchaseDeferred interface {
	Plugin
	OnPurchaseDeferred(ctx context.Context, tx payment.Transaction) error
}

// OnTransactionRestored is called for restored transactions.
type OnTransactionRestored interface {
	Plugin
	OnTransactionRestored(ctx context.Context, tx payment.Transaction) error
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnRecordFinished is called when the merchant confirms an order and its
// record leaves the ledger.
type OnRecordFinished interface {
	Plugin
	OnRecordFinished(ctx context.Context, orderID string) error
}

// OnRecoveryReplayed is called after a recovery sweep delivered count
// records to the recovery listener.
type OnRecoveryReplayed interface {
	Plugin
	OnRecoveryReplayed(ctx context.Context, sweepID id.ID, count int) error
}
