package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Ledger Specific Errors
	ErrLedgerUnavailable = errors.New("ledger RPC endpoint is unavailable")
	ErrRateLimited       = errors.New("RPC rate limit exceeded")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")
	ErrAccountNotFound   = errors.New("account does not exist on the ledger")
	ErrTxNotFound        = errors.New("transaction not found by signature")

	// Trade Lifecycle Errors
	ErrPoolNotFound         = errors.New("pool account absent after derivation retries")
	ErrPriceUnavailable     = errors.New("price unavailable: stale or empty reserves")
	ErrSubmissionFailed     = errors.New("transaction rejected before confirmation")
	ErrConfirmationTimeout  = errors.New("transaction status unknown after confirmation delay")
	ErrEventDecodeFailed    = errors.New("no matching trade event record in transaction logs")
	ErrRetryBudgetExhausted = errors.New("sell retry budget exhausted")
	ErrSellInFlight         = errors.New("a sell is already pending for this position")
	ErrPositionNotActive    = errors.New("position is not in ACTIVE status")

	// Store Specific Errors
	ErrStoreCorrupted = errors.New("persisted state could not be decoded")
	ErrQueryFailed    = errors.New("history query failed")
)
