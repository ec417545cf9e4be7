package ledger

import (
	"fmt"
)

// InvariantValidator checks book-wide invariants after each applied batch.
type InvariantValidator struct {
	book *Book
}

func NewInvariantValidator(book *Book) *InvariantValidator {
	return &InvariantValidator{
		book: book,
	}
}

// ValidateBatch verifies batch-level consistency.
func (v *InvariantValidator) ValidateBatch(batch *Batch) error {
	return batch.Validate()
}

// ValidatePoolBounds verifies 0 <= pool balance <= fund cap.
func (v *InvariantValidator) ValidatePoolBounds() error {
	pool := v.book.Pool()
	if pool.Balance < 0 {
		return fmt.Errorf("pool balance is negative: %d", pool.Balance)
	}
	if pool.Balance > pool.FundCap {
		return fmt.Errorf("pool balance %d exceeds fund cap %d", pool.Balance, pool.FundCap)
	}
	return nil
}

// ValidateAccount verifies the participant's balances are non-negative and
// the funding balance respects the per-user cap.
func (v *InvariantValidator) ValidateAccount(id Identity) error {
	acct := v.book.Account(id)
	if acct.Funding < 0 {
		return fmt.Errorf("funding balance for %s is negative: %d", id, acct.Funding)
	}
	if acct.Coverage < 0 {
		return fmt.Errorf("coverage balance for %s is negative: %d", id, acct.Coverage)
	}
	if cap := v.book.Pool().PerUserFundingCap; acct.Funding > cap {
		return fmt.Errorf("funding balance %d for %s exceeds per-user cap %d", acct.Funding, id, cap)
	}
	return nil
}

// ValidateAll runs every book-wide check plus per-account checks for the
// touched participants.
func (v *InvariantValidator) ValidateAll(touched []Identity) error {
	if err := v.ValidatePoolBounds(); err != nil {
		return err
	}
	for _, id := range touched {
		if err := v.ValidateAccount(id); err != nil {
			return err
		}
	}
	return nil
}
