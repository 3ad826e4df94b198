package observability_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/observability"
	"github.com/xraph/iap/payment"
)

type fakeFactory struct {
	mu       sync.Mutex
	counters map[string]float64
	observed map[string][]float64
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		counters: make(map[string]float64),
		observed: make(map[string][]float64),
	}
}

type fakeCounter struct {
	f    *fakeFactory
	name string
}

func (c fakeCounter) Inc() { c.Add(1) }

func (c fakeCounter) Add(v float64) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.counters[c.name] += v
}

type fakeHistogram struct {
	f    *fakeFactory
	name string
}

func (h fakeHistogram) Observe(v float64) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	h.f.observed[h.name] = append(h.f.observed[h.name], v)
}

func (f *fakeFactory) Counter(name string) observability.Counter {
	return fakeCounter{f: f, name: name}
}

func (f *fakeFactory) Histogram(name string) observability.Histogram {
	return fakeHistogram{f: f, name: name}
}

func (f *fakeFactory) count(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[name]
}

func TestCountsPurchaseEvents(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	attempt := id.NewAttemptID()
	require.NoError(t, m.OnInit(ctx, nil))
	require.NoError(t, m.OnPurchaseRequested(ctx, attempt, "sku1", "order42", "user7"))
	require.NoError(t, m.OnPaymentSubmitted(ctx, attempt, payment.Payment{ProductID: "sku1"}))
	require.NoError(t, m.OnPurchaseCompleted(ctx, ledger.Record{OrderID: "order42"}))
	require.NoError(t, m.OnPurchaseFailed(ctx, payment.Transaction{ID: "tx2"}, errors.New("card declined")))
	require.NoError(t, m.OnPurchaseRejected(ctx, "sku1", "order43", "user7", errors.New("busy")))
	require.NoError(t, m.OnPurchaseDeferred(ctx, payment.Transaction{ID: "tx3"}))
	require.NoError(t, m.OnTransactionRestored(ctx, payment.Transaction{ID: "tx4"}))
	require.NoError(t, m.OnRecordFinished(ctx, "order42"))

	for _, name := range []string{
		"iap.purchase.requested",
		"iap.payment.submitted",
		"iap.purchase.completed",
		"iap.purchase.failed",
		"iap.purchase.rejected",
		"iap.purchase.deferred",
		"iap.transaction.restored",
		"iap.record.finished",
	} {
		assert.Equal(t, float64(1), f.count(name), name)
	}
}

func TestRecoveryMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFakeFactory()
	m := observability.NewMetricsExtension(f)

	require.NoError(t, m.OnRecoveryReplayed(ctx, id.NewSweepID(), 3))
	require.NoError(t, m.OnRecoveryReplayed(ctx, id.NewSweepID(), 2))

	assert.Equal(t, float64(2), f.count("iap.recovery.sweeps"))
	assert.Equal(t, float64(5), f.count("iap.recovery.replayed"))
	assert.Equal(t, []float64{3, 2}, f.observed["iap.recovery.size"])
}
