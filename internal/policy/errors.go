package policy

import (
	"errors"

	"coverpool/internal/ledger"
)

// The full error taxonomy for public operations. Balance-level failures are
// the ledger sentinels re-exported so callers match a single package with
// errors.Is.
var (
	// ErrUnauthorized is returned when a non-administrator attempts an
	// administrator-only operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidPremium is returned when a purchase premium exceeds the
	// current pool premium rate.
	ErrInvalidPremium = errors.New("invalid premium")

	// ErrPolicyNotActive is returned when an operation requires an active
	// policy that is absent or inactive.
	ErrPolicyNotActive = errors.New("policy not active")

	// ErrTransferFailed is returned when the external wallet transfer
	// collaborator reports failure. No state is committed.
	ErrTransferFailed = errors.New("transfer failed")

	ErrInvalidAmount         = ledger.ErrInvalidAmount
	ErrInsufficientBalance   = ledger.ErrInsufficientBalance
	ErrFundingCapExceeded    = ledger.ErrFundingCapExceeded
	ErrInsufficientPoolFunds = ledger.ErrInsufficientPoolFunds
)
