package ledger

import "github.com/xraph/iap/types"

// Field keys of the map handed to purchase callbacks and accepted by Finish.
const (
	FieldUserID        = "user_id"
	FieldOrderID       = "order_id"
	FieldTransactionID = "transaction_id"
	FieldProductID     = "product_id"
	FieldReceipt       = "receipt"
)

// Record is a platform-billed transaction that the merchant backend has not
// yet confirmed. It is keyed by OrderID and never modified after creation.
type Record struct {
	UserID        string `json:"user_id"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`

	// Receipt is the base64 receipt blob, percent-encoded for transport.
	// Empty for a placeholder written before the receipt was read.
	Receipt string `json:"receipt"`

	types.Entity
}

// Fields returns the record as the string map callbacks receive.
func (r Record) Fields() map[string]string {
	return map[string]string{
		FieldUserID:        r.UserID,
		FieldOrderID:       r.OrderID,
		FieldTransactionID: r.TransactionID,
		FieldProductID:     r.ProductID,
		FieldReceipt:       r.Receipt,
	}
}

// IsPlaceholder reports whether the record was persisted without a receipt.
func (r Record) IsPlaceholder() bool { return r.Receipt == "" }

// RecordFromFields rebuilds a Record from a callback field map. ok is false
// when the map has no order id.
func RecordFromFields(fields map[string]string) (rec Record, ok bool) {
	orderID, ok := fields[FieldOrderID]
	if !ok {
		return Record{}, false
	}
	return Record{
		UserID:        fields[FieldUserID],
		OrderID:       orderID,
		TransactionID: fields[FieldTransactionID],
		ProductID:     fields[FieldProductID],
		Receipt:       fields[FieldReceipt],
	}, true
}
