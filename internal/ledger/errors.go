package ledger

import "errors"

// Every precondition failure is a normal, expected outcome returned to the
// caller; none is fatal. Callers match with errors.Is.
var (
	// ErrInvalidAmount rejects zero or otherwise out-of-domain inputs.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance rejects a debit exceeding the holder's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrFundingCapExceeded rejects a credit that would push a funding
	// balance over the per-user cap, or the pool over the fund cap.
	ErrFundingCapExceeded = errors.New("funding cap exceeded")

	// ErrInsufficientPoolFunds rejects a pool debit exceeding the pool
	// balance. The refund path clamps instead; see DeductPoolClamped.
	ErrInsufficientPoolFunds = errors.New("insufficient pool funds")
)
