package transactions

import "errors"

// --- Error Handling ---

// Business-rule failures are expected outcomes: returned to the caller
// with a reason, never retried internally.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrLimitExceeded       = errors.New("transaction limit exceeded")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrBelowMinimumBalance = errors.New("withdrawal would violate minimum balance requirement")
)
