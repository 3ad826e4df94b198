// Package observability provides a metrics plugin that counts purchase
// lifecycle events through a caller-supplied MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseRequested   = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseRejected    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentSubmitted    = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseCompleted   = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseFailed      = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseDeferred    = (*MetricsExtension)(nil)
	_ plugin.OnTransactionRestored = (*MetricsExtension)(nil)
	_ plugin.OnRecordFinished      = (*MetricsExtension)(nil)
	_ plugin.OnRecoveryReplayed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records purchase lifecycle metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Purchase metrics
	PurchaseRequested Counter
	PurchaseRejected  Counter
	PaymentSubmitted  Counter
	PurchaseCompleted Counter
	PurchaseFailed    Counter
	PurchaseDeferred  Counter

	// Transaction metrics
	TransactionRestored Counter

	// Reconciliation metrics
	RecordFinished   Counter
	RecoverySweeps   Counter
	RecoveryReplayed Counter
	RecoverySize     Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		PurchaseRequested: factory.Counter("iap.purchase.requested"),
		PurchaseRejected:  factory.Counter("iap.purchase.rejected"),
		PaymentSubmitted:  factory.Counter("iap.payment.submitted"),
		PurchaseCompleted: factory.Counter("iap.purchase.completed"),
		PurchaseFailed:    factory.Counter("iap.purchase.failed"),
		PurchaseDeferred:  factory.Counter("iap.purchase.deferred"),

		TransactionRestored: factory.Counter("iap.transaction.restored"),

		RecordFinished:   factory.Counter("iap.record.finished"),
		RecoverySweeps:   factory.Counter("iap.recovery.sweeps"),
		RecoveryReplayed: factory.Counter("iap.recovery.replayed"),
		RecoverySize:     factory.Histogram("iap.recovery.size"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Purchase hooks
// ──────────────────────────────────────────────────

// OnPurchaseRequested implements plugin.OnPurchaseRequested.
func (m *MetricsExtension) OnPurchaseRequested(_ context.Context, _ id.ID, _, _, _ string) error {
	m.PurchaseRequested.Inc()
	return nil
}

// OnPurchaseRejected implements plugin.OnPurchaseRejected.
func (m *MetricsExtension) OnPurchaseRejected(_ context.Context, _, _, _ string, _ error) error {
	m.PurchaseRejected.Inc()
	return nil
}

// OnPaymentSubmitted implements plugin.OnPaymentSubmitted.
func (m *MetricsExtension) OnPaymentSubmitted(_ context.Context, _ id.ID, _ payment.Payment) error {
	m.PaymentSubmitted.Inc()
	return nil
}

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (m *MetricsExtension) OnPurchaseCompleted(_ context.Context, _ ledger.Record) error {
	m.PurchaseCompleted.Inc()
	return nil
}

// OnPurchaseFailed implements plugin.OnPurchaseFailed.
func (m *MetricsExtension) OnPurchaseFailed(_ context.Context, _ payment.Transaction, _ error) error {
	m.PurchaseFailed.Inc()
	return nil
}

// OnPurchaseDeferred implements plugin.OnPurchaseDeferred.
func (m *MetricsExtension) OnPurchaseDeferred(_ context.Context, _ payment.Transaction) error {
	m.PurchaseDeferred.Inc()
	return nil
}

// OnTransactionRestored implements plugin.OnTransactionRestored.
func (m *MetricsExtension) OnTransactionRestored(_ context.Context, _ payment.Transaction) error {
	m.TransactionRestored.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnRecordFinished implements plugin.OnRecordFinished.
func (m *MetricsExtension) OnRecordFinished(_ context.Context, _ string) error {
	m.RecordFinished.Inc()
	return nil
}

// OnRecoveryReplayed implements plugin.OnRecoveryReplayed.
func (m *MetricsExtension) OnRecoveryReplayed(_ context.Context, _ id.ID, count int) error {
	m.RecoverySweeps.Inc()
	m.RecoveryReplayed.Add(float64(count))
	m.RecoverySize.Observe(float64(count))
	return nil
}
