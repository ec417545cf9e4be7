package ledger

import (
	"fmt"
	"math"
)

// Pool is the singleton shared-pool record. PremiumRate is a percentage
// basis value (500 reads as 5% through the payout formula's /100).
type Pool struct {
	PremiumRate       int64
	FundCap           int64
	Balance           int64
	PerUserFundingCap int64
	Frozen            bool
}

// Default pool parameters, overridable at startup and by the administrator.
const (
	DefaultPremiumRate       = 500
	DefaultFundCap           = 1_000_000_000
	DefaultPerUserFundingCap = 100_000_000
)

// Book is the sole authority over the pool balance and all per-participant
// balances. Every primitive either fully applies or returns an error with
// no mutation; the cap and non-negativity invariants hold irrespective of
// the caller. Not thread-safe — mutated only by the single-writer core.
type Book struct {
	pool     Pool
	accounts map[Identity]*Account
}

func NewBook() *Book {
	return &Book{
		pool: Pool{
			PremiumRate:       DefaultPremiumRate,
			FundCap:           DefaultFundCap,
			PerUserFundingCap: DefaultPerUserFundingCap,
		},
		accounts: make(map[Identity]*Account),
	}
}

// Pool returns a copy of the current pool record.
func (b *Book) Pool() Pool {
	return b.pool
}

// Account returns a copy of the participant's balances. A participant that
// never interacted reads as the zero account.
func (b *Book) Account(id Identity) Account {
	if acct, ok := b.accounts[id]; ok {
		return *acct
	}
	return Account{}
}

func (b *Book) account(id Identity) *Account {
	acct, ok := b.accounts[id]
	if !ok {
		acct = &Account{}
		b.accounts[id] = acct
	}
	return acct
}

// --- Pool primitives ---

// CheckAdjustPool validates applying delta to the pool balance without
// mutating. Negative results fail hard here; the refund path that tolerates
// underflow uses DeductPoolClamped instead.
func (b *Book) CheckAdjustPool(delta int64) error {
	next, ok := addChecked(b.pool.Balance, delta)
	if !ok {
		return fmt.Errorf("%w: pool balance overflow", ErrFundingCapExceeded)
	}
	if next < 0 {
		return fmt.Errorf("%w: pool=%d, delta=%d", ErrInsufficientPoolFunds, b.pool.Balance, delta)
	}
	if next > b.pool.FundCap {
		return fmt.Errorf("%w: pool=%d, delta=%d, fund_cap=%d",
			ErrFundingCapExceeded, b.pool.Balance, delta, b.pool.FundCap)
	}
	return nil
}

// AdjustPool applies delta to the pool balance, rejecting cap violations
// and underflow.
func (b *Book) AdjustPool(delta int64) error {
	if err := b.CheckAdjustPool(delta); err != nil {
		return err
	}
	b.pool.Balance += delta
	return nil
}

// DeductPoolClamped decreases the pool balance, clamping at zero instead of
// failing. Returns the amount actually deducted. Only the refund path uses
// this; payouts must assert sufficiency via CheckAdjustPool first.
func (b *Book) DeductPoolClamped(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	deducted := amount
	if deducted > b.pool.Balance {
		deducted = b.pool.Balance
	}
	b.pool.Balance -= deducted
	return deducted
}

// FreezePool forces the pool balance to zero and marks the pool frozen.
// Destructive: per-account balances are NOT reconciled. Returns the balance
// that was discarded.
func (b *Book) FreezePool() int64 {
	discarded := b.pool.Balance
	b.pool.Balance = 0
	b.pool.Frozen = true
	return discarded
}

// --- Funding primitives ---

// CheckCreditFunding validates crediting a participant's funding balance
// together with the matching pool credit.
func (b *Book) CheckCreditFunding(id Identity, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	acct := b.Account(id)
	next, ok := addChecked(acct.Funding, amount)
	if !ok || next > b.pool.PerUserFundingCap {
		return fmt.Errorf("%w: funding=%d, amount=%d, per_user_cap=%d",
			ErrFundingCapExceeded, acct.Funding, amount, b.pool.PerUserFundingCap)
	}
	return b.CheckAdjustPool(amount)
}

// CreditFunding increases the participant's funding balance and the pool
// balance together. Either both apply or neither does.
func (b *Book) CreditFunding(id Identity, amount int64) error {
	if err := b.CheckCreditFunding(id, amount); err != nil {
		return err
	}
	b.account(id).Funding += amount
	b.pool.Balance += amount
	return nil
}

// CheckDebitFunding validates decreasing the participant's funding balance.
// The pool is untouched by funding debits; contributed value stays pooled.
func (b *Book) CheckDebitFunding(id Identity, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if acct := b.Account(id); acct.Funding < amount {
		return fmt.Errorf("%w: funding=%d, amount=%d", ErrInsufficientBalance, acct.Funding, amount)
	}
	return nil
}

func (b *Book) DebitFunding(id Identity, amount int64) error {
	if err := b.CheckDebitFunding(id, amount); err != nil {
		return err
	}
	b.account(id).Funding -= amount
	return nil
}

// CheckRefundFunding validates crediting a funding balance without the pool
// side (policy cancellation returns already-pooled value to the holder's
// funding balance). The per-user cap still binds.
func (b *Book) CheckRefundFunding(id Identity, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	acct := b.Account(id)
	next, ok := addChecked(acct.Funding, amount)
	if !ok || next > b.pool.PerUserFundingCap {
		return fmt.Errorf("%w: funding=%d, refund=%d, per_user_cap=%d",
			ErrFundingCapExceeded, acct.Funding, amount, b.pool.PerUserFundingCap)
	}
	return nil
}

func (b *Book) RefundFunding(id Identity, amount int64) error {
	if err := b.CheckRefundFunding(id, amount); err != nil {
		return err
	}
	b.account(id).Funding += amount
	return nil
}

// --- Coverage primitives ---

func (b *Book) CheckCreditCoverage(id Identity, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	acct := b.Account(id)
	if _, ok := addChecked(acct.Coverage, amount); !ok {
		return fmt.Errorf("%w: coverage overflow", ErrInvalidAmount)
	}
	return nil
}

func (b *Book) CreditCoverage(id Identity, amount int64) error {
	if err := b.CheckCreditCoverage(id, amount); err != nil {
		return err
	}
	b.account(id).Coverage += amount
	return nil
}

func (b *Book) CheckDebitCoverage(id Identity, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if acct := b.Account(id); acct.Coverage < amount {
		return fmt.Errorf("%w: coverage=%d, amount=%d", ErrInsufficientBalance, acct.Coverage, amount)
	}
	return nil
}

func (b *Book) DebitCoverage(id Identity, amount int64) error {
	if err := b.CheckDebitCoverage(id, amount); err != nil {
		return err
	}
	b.account(id).Coverage -= amount
	return nil
}

// --- Administrator parameters ---

// Parameter setters validate the value only; authorization against the
// administrator identity is the policy engine's concern.

func (b *Book) SetPremiumRate(rate int64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: premium rate must be > 0, got %d", ErrInvalidAmount, rate)
	}
	b.pool.PremiumRate = rate
	return nil
}

func (b *Book) SetFundCap(cap int64) error {
	if cap <= 0 {
		return fmt.Errorf("%w: fund cap must be > 0, got %d", ErrInvalidAmount, cap)
	}
	b.pool.FundCap = cap
	return nil
}

func (b *Book) SetPerUserFundingCap(cap int64) error {
	if cap <= 0 {
		return fmt.Errorf("%w: per-user funding cap must be > 0, got %d", ErrInvalidAmount, cap)
	}
	b.pool.PerUserFundingCap = cap
	return nil
}

// --- Snapshot support ---

// Snapshot returns copies of the pool record and all accounts.
func (b *Book) Snapshot() (Pool, map[Identity]Account) {
	accounts := make(map[Identity]Account, len(b.accounts))
	for id, acct := range b.accounts {
		accounts[id] = *acct
	}
	return b.pool, accounts
}

// Restore replaces the book's state from a snapshot.
func (b *Book) Restore(pool Pool, accounts map[Identity]Account) {
	b.pool = pool
	b.accounts = make(map[Identity]*Account, len(accounts))
	for id, acct := range accounts {
		a := acct
		b.accounts[id] = &a
	}
}

func addChecked(a, delta int64) (int64, bool) {
	if delta > 0 && a > math.MaxInt64-delta {
		return 0, false
	}
	if delta < 0 && a < math.MinInt64-delta {
		return 0, false
	}
	return a + delta, true
}
