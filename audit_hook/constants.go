package audithook

// Action constants for audit events.
const (
	// Purchase actions
	ActionPurchaseRequested = "purchase.requested"
	ActionPurchaseRejected  = "purchase.rejected"
	ActionPaymentSubmitted  = "payment.submitted"
	ActionPurchaseCompleted = "purchase.completed"
	ActionPurchaseFailed    = "purchase.failed"
	ActionPurchaseDeferred  = "purchase.deferred"

	// Transaction actions
	ActionTransactionRestored = "transaction.restored"

	// Reconciliation actions
	ActionRecordFinished   = "record.finished"
	ActionRecoveryReplayed = "recovery.replayed"
)

// Resource constants for audit events.
const (
	ResourcePurchase    = "purchase"
	ResourcePayment     = "payment"
	ResourceTransaction = "transaction"
	ResourceRecord      = "record"
	ResourceSweep       = "sweep"
)

// Category constants for audit events.
const (
	CategoryPurchase       = "purchase"
	CategoryPayment        = "payment"
	CategoryReconciliation = "reconciliation"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePending = "pending"
)
