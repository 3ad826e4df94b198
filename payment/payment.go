// Package payment defines the contracts for the platform side of a purchase:
// the payment queue that bills the user and reports transaction state, the
// product catalog, and the locally cached receipt.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/iap/types"
)

// ErrNoReceipt is returned by a ReceiptSource when no receipt is cached.
var ErrNoReceipt = errors.New("payment: no receipt available")

// State is the platform-reported state of a transaction.
type State string

const (
	StatePurchasing State = "purchasing"
	StatePurchased  State = "purchased"
	StateFailed     State = "failed"
	StateRestored   State = "restored"
	StateDeferred   State = "deferred"
)

// IsTerminal reports whether the platform expects the transaction to be
// finished in this state.
func (s State) IsTerminal() bool {
	switch s {
	case StatePurchased, StateFailed, StateRestored:
		return true
	default:
		return false
	}
}

// Product is a catalog entry.
type Product struct {
	ID          string      `json:"id"          yaml:"id"`
	Title       string      `json:"title"       yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Price       types.Money `json:"price"       yaml:"price"`
}

// Payment is a request to bill one product. ApplicationUsername is an
// opaque context string echoed back on every transaction for the payment.
type Payment struct {
	ProductID           string
	Quantity            int
	ApplicationUsername string
}

// Transaction is one state notification from the payment queue.
type Transaction struct {
	ID      string
	State   State
	Payment Payment

	// Error describes a failed transaction. Empty when the platform gave
	// no reason.
	Error string
}

// ContextString builds the opaque application context for a payment.
func ContextString(userID, orderID string) string {
	return userID + "," + orderID
}

// ParseContextString splits a context built by ContextString. ok is false
// when s does not carry both parts.
func ParseContextString(s string) (userID, orderID string, ok bool) {
	userID, orderID, found := strings.Cut(s, ",")
	if !found || userID == "" || orderID == "" {
		return "", "", false
	}
	return userID, orderID, true
}

// Queue is the platform payment queue.
type Queue interface {
	// Add submits a payment for billing.
	Add(ctx context.Context, p Payment) error

	// Finish tells the platform the transaction has been handled.
	Finish(ctx context.Context, tx Transaction) error

	// Updates delivers batches of transaction notifications. The channel is
	// closed when the queue shuts down.
	Updates() <-chan []Transaction
}

// Catalog looks up products by identifier. An empty result is not an
// error.
type Catalog interface {
	Products(ctx context.Context, ids []string) ([]Product, error)
}

// ReceiptSource reads the receipt the platform cached for this app.
type ReceiptSource interface {
	Receipt(ctx context.Context) ([]byte, error)
}

// ReceiptFunc adapts a plain function to ReceiptSource.
type ReceiptFunc func(ctx context.Context) ([]byte, error)

// Receipt implements ReceiptSource.
func (f ReceiptFunc) Receipt(ctx context.Context) ([]byte, error) {
	return f(ctx)
}
