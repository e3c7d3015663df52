package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrSigningFailed = errors.New("signing failed")

	// ErrInvalidAddress is returned for a malformed EOA address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidOrder is returned when local order validation fails. No
	// network call has been made.
	ErrInvalidOrder = errors.New("invalid order parameters")
	// ErrSession is returned when no active trading session exists or the
	// session could not be established.
	ErrSession = errors.New("trading session unavailable")
	// ErrSubmission wraps a failure reported by the exchange or the
	// transport while submitting or cancelling an order.
	ErrSubmission = errors.New("order submission failed")
	// ErrPendingReconciliation is returned when an asset already has a
	// reconciliation task running.
	ErrPendingReconciliation = errors.New("asset pending reconciliation")
)
