package policy

import (
	"fmt"

	"coverpool/internal/event"
	"coverpool/internal/ledger"
	fundmath "coverpool/internal/math"
)

// Transferer moves value to an external wallet. Transfers are synchronous;
// a failure aborts the surrounding operation with no state committed.
type Transferer interface {
	Transfer(recipient ledger.Identity, amount int64) error
}

// Engine translates command events into validated sequences of book
// mutations and owns the policy records. Every operation is atomic: all
// preconditions are checked against current state before the first
// mutation, so a failed operation leaves the book and the policy records
// untouched.
//
// Not thread-safe. Driven only by the single-writer core.
type Engine struct {
	book     *ledger.Book
	policies *Manager
	admin    ledger.Identity
	transfer Transferer
}

func NewEngine(book *ledger.Book, policies *Manager, admin ledger.Identity, transfer Transferer) *Engine {
	return &Engine{
		book:     book,
		policies: policies,
		admin:    admin,
		transfer: transfer,
	}
}

// Book exposes the underlying book for snapshot and query wiring.
func (e *Engine) Book() *ledger.Book {
	return e.book
}

// Policies exposes the policy records for snapshot and query wiring.
func (e *Engine) Policies() *Manager {
	return e.policies
}

// Fund credits the caller's funding balance and the pool together.
func (e *Engine) Fund(evt *event.ContributionReceived, seq int64) (*ledger.Batch, error) {
	if err := e.book.CheckCreditFunding(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}

	if err := e.book.CreditFunding(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.AccountPath(evt.CallerID, ledger.KindFunding), evt.Amount, ledger.EntryTypeFundingCredit)
	batch.Add(ledger.PoolPath, evt.Amount, ledger.EntryTypePoolCredit)
	return batch, nil
}

// Purchase converts funding into coverage and overwrites the policy record.
// The premium must not exceed the current premium rate. The stored policy
// amount is REPLACED while the coverage balance ACCUMULATES; this asymmetry
// is intentional.
func (e *Engine) Purchase(evt *event.PolicyPurchase, seq int64) (*ledger.Batch, error) {
	if evt.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, evt.Amount)
	}
	if evt.Premium > e.book.Pool().PremiumRate {
		return nil, fmt.Errorf("%w: premium %d exceeds rate %d",
			ErrInvalidPremium, evt.Premium, e.book.Pool().PremiumRate)
	}
	if err := e.book.CheckDebitFunding(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}
	if err := e.book.CheckCreditCoverage(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}

	if err := e.book.DebitFunding(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}
	if err := e.book.CreditCoverage(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}

	prev := e.policies.Lookup(evt.CallerID)
	e.policies.Put(&Policy{
		Holder:   evt.CallerID,
		Amount:   evt.Amount,
		Price:    evt.Premium,
		IsActive: true,
		Version:  prev.Version + 1,
	})

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.AccountPath(evt.CallerID, ledger.KindFunding), -evt.Amount, ledger.EntryTypeFundingDebit)
	batch.Add(ledger.AccountPath(evt.CallerID, ledger.KindCoverage), evt.Amount, ledger.EntryTypeCoverageCredit)
	return batch, nil
}

// Increase raises the insured amount of an active policy from the caller's
// funding balance. The coverage balance is untouched.
func (e *Engine) Increase(evt *event.PolicyIncrease, seq int64) (*ledger.Batch, error) {
	pol := e.policies.Get(evt.CallerID)
	if pol == nil || !pol.IsActive {
		return nil, fmt.Errorf("%w: increase requires an active policy", ErrPolicyNotActive)
	}
	if evt.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, evt.Amount)
	}
	if err := e.book.CheckDebitFunding(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}

	if err := e.book.DebitFunding(evt.CallerID, evt.Amount); err != nil {
		return nil, err
	}
	pol.Amount += evt.Amount
	pol.Version++

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.AccountPath(evt.CallerID, ledger.KindFunding), -evt.Amount, ledger.EntryTypeFundingDebit)
	return batch, nil
}

// PartialClaim pays out against part of the in-force amount. The policy
// amount drops by the raw claimed amount while the pool drops by the
// derived payout; the policy stays active.
func (e *Engine) PartialClaim(evt *event.PartialClaim, seq int64) (*ledger.Batch, error) {
	pol := e.policies.Get(evt.CallerID)
	if pol == nil || !pol.IsActive {
		return nil, fmt.Errorf("%w: claim requires an active policy", ErrPolicyNotActive)
	}
	if evt.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, evt.Amount)
	}
	if pol.Amount < evt.Amount {
		return nil, fmt.Errorf("%w: policy amount %d < claim %d", ErrInsufficientBalance, pol.Amount, evt.Amount)
	}

	// Always the current rate, not the rate locked at purchase.
	payout, err := fundmath.ComputePayout(evt.Amount, e.book.Pool().PremiumRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if payout == 0 {
		return nil, fmt.Errorf("%w: payout rounds to zero for claim %d at rate %d",
			ErrInvalidAmount, evt.Amount, e.book.Pool().PremiumRate)
	}
	if err := e.book.CheckAdjustPool(-payout); err != nil {
		return nil, err
	}

	if err := e.book.AdjustPool(-payout); err != nil {
		return nil, err
	}
	pol.Amount -= evt.Amount
	pol.Version++

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.PoolPath, -payout, ledger.EntryTypePoolDebit)
	return batch, nil
}

// Claim settles a payout against the beneficiary's coverage balance. Only
// the beneficiary or the administrator may call it. Both the coverage
// balance and the pool must cover the derived payout amount; the active
// flag is left as-is.
func (e *Engine) Claim(evt *event.ClaimPayout, seq int64) (*ledger.Batch, error) {
	if evt.CallerID != evt.BeneficiaryID && evt.CallerID != e.admin {
		return nil, fmt.Errorf("%w: claim for another identity", ErrUnauthorized)
	}
	pol := e.policies.Get(evt.BeneficiaryID)
	if pol == nil || !pol.IsActive {
		return nil, fmt.Errorf("%w: claim requires an active policy", ErrPolicyNotActive)
	}
	if evt.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, evt.Amount)
	}

	payout, err := fundmath.ComputePayout(evt.Amount, e.book.Pool().PremiumRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if err := e.book.CheckAdjustPool(-payout); err != nil {
		return nil, err
	}
	if err := e.book.CheckDebitCoverage(evt.BeneficiaryID, payout); err != nil {
		return nil, err
	}

	if err := e.book.DebitCoverage(evt.BeneficiaryID, payout); err != nil {
		return nil, err
	}
	if err := e.book.AdjustPool(-payout); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.AccountPath(evt.BeneficiaryID, ledger.KindCoverage), -payout, ledger.EntryTypeCoverageDebit)
	batch.Add(ledger.PoolPath, -payout, ledger.EntryTypePoolDebit)
	return batch, nil
}

// Cancel deactivates the caller's policy and returns the in-force amount to
// the funding balance. The per-user funding cap still binds the refund.
// Amount and price stay on the record.
func (e *Engine) Cancel(evt *event.PolicyCancel, seq int64) (*ledger.Batch, error) {
	pol := e.policies.Get(evt.CallerID)
	if pol == nil || !pol.IsActive {
		return nil, fmt.Errorf("%w: cancel requires an active policy", ErrPolicyNotActive)
	}
	refund := pol.Amount
	if refund > 0 {
		if err := e.book.CheckRefundFunding(evt.CallerID, refund); err != nil {
			return nil, err
		}
	}

	if refund > 0 {
		if err := e.book.RefundFunding(evt.CallerID, refund); err != nil {
			return nil, err
		}
	}
	pol.IsActive = false
	pol.Version++

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	if refund > 0 {
		batch.Add(ledger.AccountPath(evt.CallerID, ledger.KindFunding), refund, ledger.EntryTypeFundingCredit)
	}
	return batch, nil
}

// Pause deactivates the caller's policy without a refund.
func (e *Engine) Pause(evt *event.PolicyPause, seq int64) (*ledger.Batch, error) {
	if err := e.deactivate(evt.CallerID); err != nil {
		return nil, err
	}
	return ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp), nil
}

// Deactivate deactivates the caller's policy without a refund. Kept as a
// separate operation from Pause even though the effect is identical.
func (e *Engine) Deactivate(evt *event.PolicyDeactivate, seq int64) (*ledger.Batch, error) {
	if err := e.deactivate(evt.CallerID); err != nil {
		return nil, err
	}
	return ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp), nil
}

func (e *Engine) deactivate(holder ledger.Identity) error {
	pol := e.policies.Get(holder)
	if pol == nil || !pol.IsActive {
		return fmt.Errorf("%w: deactivate requires an active policy", ErrPolicyNotActive)
	}
	pol.IsActive = false
	pol.Version++
	return nil
}

// SetParam updates one pool parameter. Administrator only; the value must
// be positive.
func (e *Engine) SetParam(evt *event.ParamUpdate, seq int64) (*ledger.Batch, error) {
	if err := e.requireAdmin(evt.CallerID); err != nil {
		return nil, err
	}

	var err error
	switch evt.Param {
	case event.ParamPremiumRate:
		err = e.book.SetPremiumRate(evt.Value)
	case event.ParamFundCap:
		err = e.book.SetFundCap(evt.Value)
	case event.ParamPerUserFundingCap:
		err = e.book.SetPerUserFundingCap(evt.Value)
	default:
		err = fmt.Errorf("%w: unknown parameter %q", ErrInvalidAmount, evt.Param)
	}
	if err != nil {
		return nil, err
	}

	return ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp), nil
}

// WithdrawSurplus moves pool funds to the administrator's wallet through
// the transfer collaborator. Transfer failure aborts before any mutation.
func (e *Engine) WithdrawSurplus(evt *event.SurplusWithdrawal, seq int64) (*ledger.Batch, error) {
	if err := e.requireAdmin(evt.CallerID); err != nil {
		return nil, err
	}
	if evt.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, evt.Amount)
	}
	if err := e.book.CheckAdjustPool(-evt.Amount); err != nil {
		return nil, err
	}

	if err := e.transfer.Transfer(e.admin, evt.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	if err := e.book.AdjustPool(-evt.Amount); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.PoolPath, -evt.Amount, ledger.EntryTypePoolDebit)
	return batch, nil
}

// RefundContribution returns part of a participant's contribution to their
// wallet. The funding debit fails hard on insufficiency; the matching pool
// decrement is clamped at zero rather than failing. Administrator only.
func (e *Engine) RefundContribution(evt *event.ContributionRefund, seq int64) (*ledger.Batch, error) {
	if err := e.requireAdmin(evt.CallerID); err != nil {
		return nil, err
	}
	if err := e.book.CheckDebitFunding(evt.RecipientID, evt.Amount); err != nil {
		return nil, err
	}

	if err := e.transfer.Transfer(evt.RecipientID, evt.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	if err := e.book.DebitFunding(evt.RecipientID, evt.Amount); err != nil {
		return nil, err
	}
	deducted := e.book.DeductPoolClamped(evt.Amount)

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.AccountPath(evt.RecipientID, ledger.KindFunding), -evt.Amount, ledger.EntryTypeFundingDebit)
	if deducted > 0 {
		batch.Add(ledger.PoolPath, -deducted, ledger.EntryTypePoolDebit)
	}
	return batch, nil
}

// Freeze forces the pool balance to zero and marks the pool frozen.
// Administrator only; per-account balances are not reconciled.
func (e *Engine) Freeze(evt *event.PoolFreeze, seq int64) (*ledger.Batch, error) {
	if err := e.requireAdmin(evt.CallerID); err != nil {
		return nil, err
	}

	discarded := e.book.FreezePool()

	batch := ledger.NewBatch(evt.IdempotencyKey(), seq, evt.Timestamp)
	batch.Add(ledger.PoolPath, -discarded, ledger.EntryTypePoolFreeze)
	return batch, nil
}

func (e *Engine) requireAdmin(caller ledger.Identity) error {
	if caller != e.admin {
		return fmt.Errorf("%w: caller %s is not the administrator", ErrUnauthorized, caller)
	}
	return nil
}
