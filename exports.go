package iap

import (
	"github.com/xraph/iap/id"
	"github.com/xraph/iap/ledger"
	"github.com/xraph/iap/payment"
	"github.com/xraph/iap/types"
)

// Re-export common types for convenience so callers rarely need the
// sub-packages.

// Record is re-exported from the ledger package.
type Record = ledger.Record

// Product is re-exported from the payment package.
type Product = payment.Product

// Transaction is re-exported from the payment package.
type Transaction = payment.Transaction

// Money is re-exported from the types package.
type Money = types.Money

// ID is the identifier type for purchase attempts and recovery sweeps.
type ID = id.ID

// Field keys of Result.Fields.
const (
	FieldUserID        = ledger.FieldUserID
	FieldOrderID       = ledger.FieldOrderID
	FieldTransactionID = ledger.FieldTransactionID
	FieldProductID     = ledger.FieldProductID
	FieldReceipt       = ledger.FieldReceipt
)

// Re-export Money constructors.
var (
	USD   = types.USD
	Price = types.Price
)
