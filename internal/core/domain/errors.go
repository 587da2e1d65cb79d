package domain

import "errors"

// Ledger store and validation errors. Stores return these unwrapped or wrapped
// with %w; any other store error is a storage failure.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountInactive   = errors.New("account is not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidKind       = errors.New("transaction kind must be CREDIT or DEBIT")
	ErrInvalidAmount     = errors.New("amount must be a positive decimal with at most 4 fractional digits")
	ErrAmountOutOfRange  = errors.New("amount must be below 10^16")
	ErrBalanceLimit      = errors.New("resulting balance would reach 10^16")
)

// Identity gate client errors. Neither may ever be read as a rejection or an
// authentication.
var (
	ErrIdentityUnreachable = errors.New("identity gate unreachable")
	ErrIdentityMalformed   = errors.New("identity gate returned a malformed response")
)
