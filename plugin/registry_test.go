package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/plugin"
)

type recorder struct {
	name string

	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) OnPurchaseCompleted(_ context.Context, rec ledger.Record) error {
	r.add("completed:" + rec.OrderID)
	return nil
}

func (r *recorder) OnRecordFinished(_ context.Context, orderID string) error {
	r.add("finished:" + orderID)
	return nil
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) OnPurchaseCompleted(context.Context, ledger.Record) error {
	return errors.New("boom")
}

type slow struct{ release chan struct{} }

func (slow) Name() string { return "slow" }

func (s slow) OnPurchaseFailed(context.Context, payment.Transaction, error) error {
	<-s.release
	return nil
}

func TestRegisterDuplicate(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	require.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("b"))
}

func TestDispatchOnlyToImplementers(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	require.NoError(t, r.Register(rec))

	r.EmitPurchaseCompleted(ctx, ledger.Record{OrderID: "order42"})
	r.EmitRecordFinished(ctx, "order42")
	r.EmitPurchaseDeferred(ctx, payment.Transaction{ID: "tx1"})
	r.EmitRecoveryReplayed(ctx, id.NewSweepID(), 3)

	assert.Equal(t, []string{"completed:order42", "finished:order42"}, rec.Events())
}

func TestFailingPluginDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	require.NoError(t, r.Register(failing{}))
	require.NoError(t, r.Register(rec))

	r.EmitPurchaseCompleted(ctx, ledger.Record{OrderID: "order1"})
	assert.Equal(t, []string{"completed:order1"}, rec.Events())
}

func TestSlowPluginTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slow{release: release}))

	start := time.Now()
	r.EmitPurchaseFailed(context.Background(), payment.Transaction{ID: "tx1"}, errors.New("declined"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestList(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	require.NoError(t, r.Register(failing{}))

	names := make([]string, 0, 2)
	for _, p := range r.List() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"a", "failing"}, names)
}
