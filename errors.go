package iap

import "errors"

// Sentinel errors for common failure scenarios.
//
// The purchase errors carry the message delivered to the caller through
// Result.Message, so their text is part of the public contract.
var (
	// Guard rejections
	ErrRecoveryPending    = errors.New("you have a pending order being recovered, please wait")
	ErrPurchaseInProgress = errors.New("a purchase is already in progress, please wait")

	// Catalog errors
	ErrNoProducts      = errors.New("no products returned")
	ErrProductNotFound = errors.New("requested product not found")

	// Attempt errors
	ErrMissingOrderID  = errors.New("missing order id")
	ErrMissingUserID   = errors.New("missing user id")
	ErrInvalidReceipt  = errors.New("purchase voucher invalid, please retry")
	ErrUnknownPlatform = errors.New("unknown error")

	// Lifecycle errors
	ErrNotStarted      = errors.New("iap: manager not started")
	ErrAlreadyStarted  = errors.New("iap: manager already started")
	ErrNilCollaborator = errors.New("iap: nil collaborator")
)

// PlatformError is a failure reported by the payment platform for a
// transaction.
type PlatformError struct {
	TransactionID string
	ProductID     string
	Description   string
}

func (e *PlatformError) Error() string {
	if e.Description == "" {
		return ErrUnknownPlatform.Error()
	}
	return e.Description
}

// Unwrap returns ErrUnknownPlatform when the platform gave no description.
func (e *PlatformError) Unwrap() error {
	if e.Description == "" {
		return ErrUnknownPlatform
	}
	return nil
}

// IsGuardRejection returns true if Buy turned the request away before
// contacting the catalog.
func IsGuardRejection(err error) bool {
	return errors.Is(err, ErrRecoveryPending) ||
		errors.Is(err, ErrPurchaseInProgress)
}

// IsCatalogError returns true if the product lookup failed.
func IsCatalogError(err error) bool {
	return errors.Is(err, ErrNoProducts) ||
		errors.Is(err, ErrProductNotFound)
}

// IsRetryable returns true if the same purchase may succeed when tried
// again later without any change on the caller's side.
func IsRetryable(err error) bool {
	return IsGuardRejection(err) ||
		errors.Is(err, ErrInvalidReceipt)
}
