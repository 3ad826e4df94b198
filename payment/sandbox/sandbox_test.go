package sandbox_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/payment/sandbox"
	"github.com/xraph/iap/types"
)

func TestCatalogLookup(t *testing.T) {
	p := sandbox.New(sandbox.WithProducts(
		payment.Product{ID: "sku1", Title: "Coins", Price: types.USD(99)},
		payment.Product{ID: "sku2", Title: "Gems", Price: types.USD(199)},
	))

	got, err := p.Products(context.Background(), []string{"sku2", "missing", "sku1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sku2", got[0].ID)
	assert.Equal(t, "sku1", got[1].ID)

	p.SetProducts()
	got, err = p.Products(context.Background(), []string{"sku1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReceipt(t *testing.T) {
	p := sandbox.New()

	_, err := p.Receipt(context.Background())
	require.ErrorIs(t, err, payment.ErrNoReceipt)

	p.SetReceipt([]byte("blob"))
	got, err := p.Receipt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)
}

func TestAddEmitsPurchasing(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New()

	pay := payment.Payment{ProductID: "sku1", Quantity: 1, ApplicationUsername: "user7,order42"}
	require.NoError(t, p.Add(ctx, pay))

	batch := <-p.Updates()
	require.Len(t, batch, 1)
	assert.Equal(t, payment.StatePurchasing, batch[0].State)
	assert.Equal(t, pay, batch[0].Payment)

	_, err := uuid.Parse(batch[0].ID)
	require.NoError(t, err, "transaction ids are UUIDs")

	last, ok := p.LastTransaction()
	require.True(t, ok)
	assert.Equal(t, batch[0].ID, last.ID)
}

func TestResolveAndFinish(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New()

	require.NoError(t, p.Add(ctx, payment.Payment{ProductID: "sku1", Quantity: 1}))
	<-p.Updates()

	last, ok := p.LastTransaction()
	require.True(t, ok)

	tx, err := p.Resolve(ctx, last.ID, payment.StateFailed, "card declined")
	require.NoError(t, err)
	assert.Equal(t, "card declined", tx.Error)

	batch := <-p.Updates()
	require.Len(t, batch, 1)
	assert.Equal(t, payment.StateFailed, batch[0].State)

	require.NoError(t, p.Finish(ctx, tx))
	assert.Equal(t, []string{tx.ID}, p.Finished())
	assert.Empty(t, p.Open())

	_, err = p.Resolve(ctx, tx.ID, payment.StatePurchased, "")
	require.ErrorIs(t, err, sandbox.ErrUnknownTransaction)
}

func TestAutoOutcome(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New(sandbox.WithAutoOutcome(payment.StatePurchased, ""))

	require.NoError(t, p.Add(ctx, payment.Payment{ProductID: "sku1", Quantity: 1}))

	batch := <-p.Updates()
	require.Len(t, batch, 2)
	assert.Equal(t, payment.StatePurchasing, batch[0].State)
	assert.Equal(t, payment.StatePurchased, batch[1].State)
	assert.Equal(t, batch[0].ID, batch[1].ID)
}

func TestFailNextAdd(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New()
	boom := errors.New("store unavailable")

	p.FailNextAdd(boom)
	require.ErrorIs(t, p.Add(ctx, payment.Payment{ProductID: "sku1"}), boom)
	require.NoError(t, p.Add(ctx, payment.Payment{ProductID: "sku1"}))
	assert.Len(t, p.Payments(), 1)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New()
	p.Close()
	p.Close()

	_, open := <-p.Updates()
	assert.False(t, open)

	require.ErrorIs(t, p.Add(ctx, payment.Payment{ProductID: "sku1"}), sandbox.ErrClosed)
	require.ErrorIs(t, p.Emit(ctx), sandbox.ErrClosed)
}

func TestAddFailsFastWhenBufferFull(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New(sandbox.WithBuffer(1))

	require.NoError(t, p.Add(ctx, payment.Payment{ProductID: "sku1", Quantity: 1}))
	require.ErrorIs(t, p.Add(ctx, payment.Payment{ProductID: "sku2", Quantity: 1}), sandbox.ErrBufferFull)
	assert.Len(t, p.Payments(), 1, "a rejected payment is not recorded")
	assert.Len(t, p.Open(), 1)

	<-p.Updates()
	require.NoError(t, p.Add(ctx, payment.Payment{ProductID: "sku2", Quantity: 1}))
}
