package iap

import "github.com/xraph/iap/ledger"

// Result is what a purchase or recovery callback receives.
type Result struct {
	Success bool

	// Fields holds the record fields (ledger.FieldUserID and friends) on
	// success. Nil on failure.
	Fields map[string]string

	// Err is the failure reason. Nil on success.
	Err error
}

// Message returns the user-facing failure text, or "" on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// OrderID returns the order id carried in Fields.
func (r Result) OrderID() string { return r.Fields[ledger.FieldOrderID] }

// Callback receives the outcome of a purchase, or one replayed record
// during recovery.
type Callback func(Result)

func succeeded(rec ledger.Record) Result {
	return Result{Success: true, Fields: rec.Fields()}
}

func failed(err error) Result {
	return Result{Err: err}
}
