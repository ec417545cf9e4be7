package policy_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"coverpool/internal/event"
	"coverpool/internal/ledger"
	"coverpool/internal/policy"
)

// stubTransferer records transfer calls and optionally fails them.
type stubTransferer struct {
	calls []transferCall
	err   error
}

type transferCall struct {
	recipient ledger.Identity
	amount    int64
}

func (s *stubTransferer) Transfer(recipient ledger.Identity, amount int64) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, transferCall{recipient, amount})
	return nil
}

func newTestEngine(t *testing.T) (*policy.Engine, *ledger.Book, ledger.Identity, *stubTransferer) {
	t.Helper()
	book := ledger.NewBook()
	admin := uuid.New()
	xfer := &stubTransferer{}
	return policy.NewEngine(book, policy.NewManager(), admin, xfer), book, admin, xfer
}

func fundEvt(caller uuid.UUID, amount int64) *event.ContributionReceived {
	return &event.ContributionReceived{
		CommandID: uuid.New(),
		CallerID:  caller,
		Amount:    amount,
		Timestamp: 1_000_000,
	}
}

func purchaseEvt(caller uuid.UUID, amount, premium int64) *event.PolicyPurchase {
	return &event.PolicyPurchase{
		CommandID: uuid.New(),
		CallerID:  caller,
		Amount:    amount,
		Premium:   premium,
		Timestamp: 1_000_000,
	}
}

// mustFund seeds a participant with funding through the public path.
func mustFund(t *testing.T, e *policy.Engine, caller uuid.UUID, amount int64) {
	t.Helper()
	if _, err := e.Fund(fundEvt(caller, amount), 0); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
}

func mustPurchase(t *testing.T, e *policy.Engine, caller uuid.UUID, amount, premium int64) {
	t.Helper()
	if _, err := e.Purchase(purchaseEvt(caller, amount, premium), 0); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
}

// ============================================================================
// Test: Fund
// ============================================================================

func TestFund_CreditsBothSides(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()

	batch, err := e.Fund(fundEvt(caller, 10_000), 0)
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	if len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(batch.Entries))
	}
	if book.Account(caller).Funding != 10_000 {
		t.Errorf("expected funding 10_000, got %d", book.Account(caller).Funding)
	}
	if book.Pool().Balance != 10_000 {
		t.Errorf("expected pool 10_000, got %d", book.Pool().Balance)
	}
}

func TestFund_OverPerUserCap_Fails(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()

	over := book.Pool().PerUserFundingCap + 1
	_, err := e.Fund(fundEvt(caller, over), 0)
	if !errors.Is(err, policy.ErrFundingCapExceeded) {
		t.Errorf("expected ErrFundingCapExceeded, got %v", err)
	}
}

// ============================================================================
// Test: Purchase
// ============================================================================

func TestPurchase_ConvertsFundingToCoverage(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)

	batch, err := e.Purchase(purchaseEvt(caller, 4_000, 300), 1)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(batch.Entries))
	}

	acct := book.Account(caller)
	if acct.Funding != 6_000 {
		t.Errorf("expected funding 6_000, got %d", acct.Funding)
	}
	if acct.Coverage != 4_000 {
		t.Errorf("expected coverage 4_000, got %d", acct.Coverage)
	}

	pol := e.Policies().Lookup(caller)
	if !pol.IsActive || pol.Amount != 4_000 || pol.Price != 300 {
		t.Errorf("unexpected policy record: %+v", pol)
	}
	if pol.Version != 1 {
		t.Errorf("expected version 1, got %d", pol.Version)
	}
}

func TestPurchase_PremiumAtRate_Succeeds(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)

	rate := book.Pool().PremiumRate
	if _, err := e.Purchase(purchaseEvt(caller, 1_000, rate), 1); err != nil {
		t.Errorf("premium equal to rate should succeed: %v", err)
	}
}

func TestPurchase_PremiumAboveRate_Fails(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)

	rate := book.Pool().PremiumRate
	_, err := e.Purchase(purchaseEvt(caller, 1_000, rate+1), 1)
	if !errors.Is(err, policy.ErrInvalidPremium) {
		t.Errorf("expected ErrInvalidPremium, got %v", err)
	}
}

func TestPurchase_OverwritesAmountButAccumulatesCoverage(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)

	mustPurchase(t, e, caller, 3_000, 100)
	mustPurchase(t, e, caller, 2_000, 200)

	// The record is replaced; the balance accumulates.
	pol := e.Policies().Lookup(caller)
	if pol.Amount != 2_000 {
		t.Errorf("expected policy amount 2_000 (overwritten), got %d", pol.Amount)
	}
	if pol.Price != 200 {
		t.Errorf("expected price 200, got %d", pol.Price)
	}
	if pol.Version != 2 {
		t.Errorf("expected version 2, got %d", pol.Version)
	}
	if got := book.Account(caller).Coverage; got != 5_000 {
		t.Errorf("expected coverage 5_000 (accumulated), got %d", got)
	}
}

func TestPurchase_InsufficientFunding_Fails(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 1_000)

	_, err := e.Purchase(purchaseEvt(caller, 2_000, 100), 1)
	if !errors.Is(err, policy.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

// ============================================================================
// Test: Increase
// ============================================================================

func TestIncrease_RaisesAmountFromFunding(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)
	mustPurchase(t, e, caller, 3_000, 100)

	evt := &event.PolicyIncrease{
		CommandID: uuid.New(),
		CallerID:  caller,
		Amount:    2_000,
		Timestamp: 1_000_000,
	}
	batch, err := e.Increase(evt, 2)
	if err != nil {
		t.Fatalf("increase failed: %v", err)
	}
	if len(batch.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(batch.Entries))
	}

	pol := e.Policies().Lookup(caller)
	if pol.Amount != 5_000 {
		t.Errorf("expected policy amount 5_000, got %d", pol.Amount)
	}

	acct := book.Account(caller)
	if acct.Funding != 5_000 {
		t.Errorf("expected funding 5_000, got %d", acct.Funding)
	}
	// Increase never touches the coverage balance.
	if acct.Coverage != 3_000 {
		t.Errorf("expected coverage 3_000, got %d", acct.Coverage)
	}
}

func TestIncrease_WithoutActivePolicy_Fails(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)

	evt := &event.PolicyIncrease{CommandID: uuid.New(), CallerID: caller, Amount: 1_000}
	_, err := e.Increase(evt, 1)
	if !errors.Is(err, policy.ErrPolicyNotActive) {
		t.Errorf("expected ErrPolicyNotActive, got %v", err)
	}
}

// ============================================================================
// Test: Partial Claim
// ============================================================================

func TestPartialClaim_PaysFromPoolAtCurrentRate(t *testing.T) {
	e, book, admin, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 50_000)
	mustPurchase(t, e, caller, 10_000, 500)

	// Change the rate after purchase; the claim must use the new rate,
	// not the one locked into the policy.
	if _, err := e.SetParam(&event.ParamUpdate{
		CommandID: uuid.New(), CallerID: admin,
		Param: event.ParamPremiumRate, Value: 100,
	}, 2); err != nil {
		t.Fatalf("param update failed: %v", err)
	}

	poolBefore := book.Pool().Balance

	evt := &event.PartialClaim{CommandID: uuid.New(), CallerID: caller, Amount: 4_000}
	batch, err := e.PartialClaim(evt, 3)
	if err != nil {
		t.Fatalf("partial claim failed: %v", err)
	}

	// payout = floor(4_000 * 100 / 100) = 4_000 at the current rate
	wantPayout := int64(4_000)
	if got := poolBefore - book.Pool().Balance; got != wantPayout {
		t.Errorf("expected pool drop %d, got %d", wantPayout, got)
	}
	if len(batch.Entries) != 1 || batch.Entries[0].Delta != -wantPayout {
		t.Errorf("unexpected batch entries: %+v", batch.Entries)
	}

	pol := e.Policies().Lookup(caller)
	if pol.Amount != 6_000 {
		t.Errorf("expected remaining amount 6_000, got %d", pol.Amount)
	}
	if !pol.IsActive {
		t.Error("partial claim must leave the policy active")
	}
}

func TestPartialClaim_ExceedsPolicyAmount_Fails(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 50_000)
	mustPurchase(t, e, caller, 5_000, 100)

	evt := &event.PartialClaim{CommandID: uuid.New(), CallerID: caller, Amount: 6_000}
	_, err := e.PartialClaim(evt, 2)
	if !errors.Is(err, policy.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPartialClaim_PoolCannotCoverPayout_Fails(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)
	mustPurchase(t, e, caller, 10_000, 500)

	// Pool holds 10_000 but the payout at rate 500 would be 50_000.
	// Unlike the refund path, claims fail hard on pool insufficiency.
	evt := &event.PartialClaim{CommandID: uuid.New(), CallerID: caller, Amount: 10_000}
	_, err := e.PartialClaim(evt, 2)
	if !errors.Is(err, policy.ErrInsufficientPoolFunds) {
		t.Errorf("expected ErrInsufficientPoolFunds, got %v", err)
	}
	if book.Pool().Balance != 10_000 {
		t.Errorf("pool changed on rejected claim: %d", book.Pool().Balance)
	}
}

func TestPartialClaim_PayoutRoundsToZero_Fails(t *testing.T) {
	e, book, admin, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)
	mustPurchase(t, e, caller, 1_000, 500)

	// At rate 10 a claim of 5 derives floor(5*10/100) = 0. A zero payout
	// must be rejected up front, before the policy record mutates.
	if _, err := e.SetParam(&event.ParamUpdate{
		CommandID: uuid.New(), CallerID: admin,
		Param: event.ParamPremiumRate, Value: 10,
	}, 2); err != nil {
		t.Fatalf("param update failed: %v", err)
	}

	evt := &event.PartialClaim{CommandID: uuid.New(), CallerID: caller, Amount: 5}
	_, err := e.PartialClaim(evt, 3)
	if !errors.Is(err, policy.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	pol := e.Policies().Lookup(caller)
	if pol.Amount != 1_000 {
		t.Errorf("policy amount changed on rejected claim: %d", pol.Amount)
	}
	if pol.Version != 1 {
		t.Errorf("policy version changed on rejected claim: %d", pol.Version)
	}
	if book.Pool().Balance != 10_000 {
		t.Errorf("pool changed on rejected claim: %d", book.Pool().Balance)
	}
}

// ============================================================================
// Test: Claim
// ============================================================================

func TestClaim_DebitsCoverageAndPool(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 50_000)
	mustPurchase(t, e, caller, 20_000, 100)

	// payout = floor(2_000 * 500 / 100) = 10_000 at the default rate
	evt := &event.ClaimPayout{
		CommandID:     uuid.New(),
		CallerID:      caller,
		BeneficiaryID: caller,
		Amount:        2_000,
	}
	batch, err := e.Claim(evt, 2)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(batch.Entries))
	}

	if got := book.Account(caller).Coverage; got != 10_000 {
		t.Errorf("expected coverage 10_000 after payout, got %d", got)
	}
	if got := book.Pool().Balance; got != 40_000 {
		t.Errorf("expected pool 40_000 after payout, got %d", got)
	}

	// Claim does not deactivate the policy.
	if !e.Policies().Lookup(caller).IsActive {
		t.Error("policy should remain active after a claim")
	}
}

func TestClaim_AdminOnBehalfOfBeneficiary(t *testing.T) {
	e, _, admin, _ := newTestEngine(t)
	holder := uuid.New()
	mustFund(t, e, holder, 50_000)
	mustPurchase(t, e, holder, 20_000, 100)

	evt := &event.ClaimPayout{
		CommandID:     uuid.New(),
		CallerID:      admin,
		BeneficiaryID: holder,
		Amount:        1_000,
	}
	if _, err := e.Claim(evt, 2); err != nil {
		t.Errorf("admin claim on behalf of beneficiary should succeed: %v", err)
	}
}

func TestClaim_ThirdParty_Unauthorized(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	holder := uuid.New()
	mustFund(t, e, holder, 50_000)
	mustPurchase(t, e, holder, 20_000, 100)

	evt := &event.ClaimPayout{
		CommandID:     uuid.New(),
		CallerID:      uuid.New(), // neither beneficiary nor admin
		BeneficiaryID: holder,
		Amount:        1_000,
	}
	_, err := e.Claim(evt, 2)
	if !errors.Is(err, policy.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClaim_InsufficientCoverage_Fails(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 50_000)
	mustPurchase(t, e, caller, 1_000, 100)

	// payout would be 10_000 but the coverage balance holds only 1_000
	evt := &event.ClaimPayout{
		CommandID:     uuid.New(),
		CallerID:      caller,
		BeneficiaryID: caller,
		Amount:        2_000,
	}
	_, err := e.Claim(evt, 2)
	if !errors.Is(err, policy.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

// ============================================================================
// Test: Cancel / Pause / Deactivate
// ============================================================================

func TestCancel_RefundsInsuredAmountToFunding(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)
	mustPurchase(t, e, caller, 4_000, 100)

	poolBefore := book.Pool().Balance

	evt := &event.PolicyCancel{CommandID: uuid.New(), CallerID: caller}
	batch, err := e.Cancel(evt, 2)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if len(batch.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(batch.Entries))
	}

	acct := book.Account(caller)
	if acct.Funding != 10_000 {
		t.Errorf("expected funding restored to 10_000, got %d", acct.Funding)
	}
	// The refund is internal; the pool does not move.
	if book.Pool().Balance != poolBefore {
		t.Errorf("pool changed on cancel: %d", book.Pool().Balance)
	}

	pol := e.Policies().Lookup(caller)
	if pol.IsActive {
		t.Error("policy should be inactive after cancel")
	}
	// Amount and price stay on the record.
	if pol.Amount != 4_000 || pol.Price != 100 {
		t.Errorf("record fields should survive cancel: %+v", pol)
	}
}

func TestCancel_RefundOverPerUserCap_Fails(t *testing.T) {
	e, book, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)
	mustPurchase(t, e, caller, 8_000, 100)

	// Shrink the cap so the refund would overflow the funding balance.
	if err := book.SetPerUserFundingCap(5_000); err != nil {
		t.Fatalf("SetPerUserFundingCap failed: %v", err)
	}

	evt := &event.PolicyCancel{CommandID: uuid.New(), CallerID: caller}
	_, err := e.Cancel(evt, 2)
	if !errors.Is(err, policy.ErrFundingCapExceeded) {
		t.Errorf("expected ErrFundingCapExceeded, got %v", err)
	}
	if e.Policies().Lookup(caller).IsActive != true {
		t.Error("rejected cancel must leave the policy active")
	}
}

func TestPauseAndDeactivate_NoRefund(t *testing.T) {
	for _, action := range []string{"pause", "deactivate"} {
		t.Run(action, func(t *testing.T) {
			e, book, _, _ := newTestEngine(t)
			caller := uuid.New()
			mustFund(t, e, caller, 10_000)
			mustPurchase(t, e, caller, 4_000, 100)

			fundingBefore := book.Account(caller).Funding

			var batch *ledger.Batch
			var err error
			if action == "pause" {
				batch, err = e.Pause(&event.PolicyPause{CommandID: uuid.New(), CallerID: caller}, 2)
			} else {
				batch, err = e.Deactivate(&event.PolicyDeactivate{CommandID: uuid.New(), CallerID: caller}, 2)
			}
			if err != nil {
				t.Fatalf("%s failed: %v", action, err)
			}
			if len(batch.Entries) != 0 {
				t.Errorf("expected no entries, got %d", len(batch.Entries))
			}

			if got := book.Account(caller).Funding; got != fundingBefore {
				t.Errorf("funding changed on %s: %d", action, got)
			}
			if e.Policies().Lookup(caller).IsActive {
				t.Errorf("policy should be inactive after %s", action)
			}
		})
	}
}

func TestPause_Twice_Fails(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)
	mustPurchase(t, e, caller, 4_000, 100)

	if _, err := e.Pause(&event.PolicyPause{CommandID: uuid.New(), CallerID: caller}, 2); err != nil {
		t.Fatalf("first pause failed: %v", err)
	}

	_, err := e.Pause(&event.PolicyPause{CommandID: uuid.New(), CallerID: caller}, 3)
	if !errors.Is(err, policy.ErrPolicyNotActive) {
		t.Errorf("expected ErrPolicyNotActive on second pause, got %v", err)
	}
}

func TestRepurchaseAfterCancel_Reactivates(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 10_000)
	mustPurchase(t, e, caller, 4_000, 100)

	if _, err := e.Cancel(&event.PolicyCancel{CommandID: uuid.New(), CallerID: caller}, 2); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	mustPurchase(t, e, caller, 2_000, 200)

	pol := e.Policies().Lookup(caller)
	if !pol.IsActive || pol.Amount != 2_000 {
		t.Errorf("expected reactivated policy with amount 2_000, got %+v", pol)
	}
	// Versions keep counting across the cancel.
	if pol.Version != 3 {
		t.Errorf("expected version 3, got %d", pol.Version)
	}
}

// ============================================================================
// Test: Administration
// ============================================================================

func TestSetParam_AdminOnly(t *testing.T) {
	e, book, admin, _ := newTestEngine(t)

	_, err := e.SetParam(&event.ParamUpdate{
		CommandID: uuid.New(), CallerID: uuid.New(),
		Param: event.ParamPremiumRate, Value: 100,
	}, 0)
	if !errors.Is(err, policy.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := e.SetParam(&event.ParamUpdate{
		CommandID: uuid.New(), CallerID: admin,
		Param: event.ParamFundCap, Value: 42_000,
	}, 1); err != nil {
		t.Fatalf("admin param update failed: %v", err)
	}
	if got := book.Pool().FundCap; got != 42_000 {
		t.Errorf("expected fund cap 42_000, got %d", got)
	}
}

func TestSetParam_RejectsNonPositive(t *testing.T) {
	e, _, admin, _ := newTestEngine(t)

	_, err := e.SetParam(&event.ParamUpdate{
		CommandID: uuid.New(), CallerID: admin,
		Param: event.ParamPremiumRate, Value: 0,
	}, 0)
	if !errors.Is(err, policy.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWithdrawSurplus_MovesPoolFundsExternally(t *testing.T) {
	e, book, admin, xfer := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 50_000)

	batch, err := e.WithdrawSurplus(&event.SurplusWithdrawal{
		CommandID: uuid.New(), CallerID: admin, Amount: 20_000,
	}, 1)
	if err != nil {
		t.Fatalf("surplus withdrawal failed: %v", err)
	}
	if len(batch.Entries) != 1 || batch.Entries[0].Delta != -20_000 {
		t.Errorf("unexpected batch entries: %+v", batch.Entries)
	}

	if got := book.Pool().Balance; got != 30_000 {
		t.Errorf("expected pool 30_000, got %d", got)
	}
	if len(xfer.calls) != 1 || xfer.calls[0].recipient != admin || xfer.calls[0].amount != 20_000 {
		t.Errorf("unexpected transfer calls: %+v", xfer.calls)
	}
}

func TestWithdrawSurplus_TransferFailure_Aborts(t *testing.T) {
	e, book, admin, xfer := newTestEngine(t)
	caller := uuid.New()
	mustFund(t, e, caller, 50_000)

	xfer.err = errors.New("wallet unreachable")

	_, err := e.WithdrawSurplus(&event.SurplusWithdrawal{
		CommandID: uuid.New(), CallerID: admin, Amount: 20_000,
	}, 1)
	if !errors.Is(err, policy.ErrTransferFailed) {
		t.Errorf("expected ErrTransferFailed, got %v", err)
	}
	if got := book.Pool().Balance; got != 50_000 {
		t.Errorf("pool must be untouched on transfer failure, got %d", got)
	}
}

func TestWithdrawSurplus_ExceedsPool_Fails(t *testing.T) {
	e, _, admin, _ := newTestEngine(t)
	mustFund(t, e, uuid.New(), 10_000)

	_, err := e.WithdrawSurplus(&event.SurplusWithdrawal{
		CommandID: uuid.New(), CallerID: admin, Amount: 20_000,
	}, 1)
	if !errors.Is(err, policy.ErrInsufficientPoolFunds) {
		t.Errorf("expected ErrInsufficientPoolFunds, got %v", err)
	}
}

func TestRefundContribution_ClampsPoolSide(t *testing.T) {
	e, book, admin, xfer := newTestEngine(t)
	recipient := uuid.New()
	mustFund(t, e, recipient, 10_000)

	// Drain most of the pool so the refund's pool decrement must clamp.
	if _, err := e.WithdrawSurplus(&event.SurplusWithdrawal{
		CommandID: uuid.New(), CallerID: admin, Amount: 7_000,
	}, 1); err != nil {
		t.Fatalf("surplus withdrawal failed: %v", err)
	}

	batch, err := e.RefundContribution(&event.ContributionRefund{
		CommandID: uuid.New(), CallerID: admin, RecipientID: recipient, Amount: 5_000,
	}, 2)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	// The funding debit takes the full amount; the pool clamps at zero.
	if got := book.Account(recipient).Funding; got != 5_000 {
		t.Errorf("expected funding 5_000, got %d", got)
	}
	if got := book.Pool().Balance; got != 0 {
		t.Errorf("expected pool clamped to 0, got %d", got)
	}
	if len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries (funding debit + clamped pool debit), got %d", len(batch.Entries))
	}
	if batch.Entries[1].Delta != -3_000 {
		t.Errorf("expected clamped pool delta -3_000, got %d", batch.Entries[1].Delta)
	}

	if len(xfer.calls) == 0 || xfer.calls[len(xfer.calls)-1].recipient != recipient {
		t.Errorf("expected transfer to recipient, got %+v", xfer.calls)
	}
}

func TestRefundContribution_InsufficientFunding_Fails(t *testing.T) {
	e, _, admin, _ := newTestEngine(t)
	recipient := uuid.New()
	mustFund(t, e, recipient, 1_000)

	_, err := e.RefundContribution(&event.ContributionRefund{
		CommandID: uuid.New(), CallerID: admin, RecipientID: recipient, Amount: 2_000,
	}, 1)
	if !errors.Is(err, policy.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestRefundContribution_AdminOnly(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	recipient := uuid.New()
	mustFund(t, e, recipient, 5_000)

	_, err := e.RefundContribution(&event.ContributionRefund{
		CommandID: uuid.New(), CallerID: recipient, RecipientID: recipient, Amount: 1_000,
	}, 1)
	if !errors.Is(err, policy.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFreeze_ZerosPoolAndEmitsDiscardEntry(t *testing.T) {
	e, book, admin, _ := newTestEngine(t)
	mustFund(t, e, uuid.New(), 25_000)

	batch, err := e.Freeze(&event.PoolFreeze{CommandID: uuid.New(), CallerID: admin}, 1)
	if err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	pool := book.Pool()
	if pool.Balance != 0 || !pool.Frozen {
		t.Errorf("expected frozen empty pool, got %+v", pool)
	}
	if len(batch.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(batch.Entries))
	}
	if batch.Entries[0].Delta != -25_000 || batch.Entries[0].EntryType != ledger.EntryTypePoolFreeze {
		t.Errorf("unexpected freeze entry: %+v", batch.Entries[0])
	}
}

func TestFreeze_NonAdmin_Fails(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	_, err := e.Freeze(&event.PoolFreeze{CommandID: uuid.New(), CallerID: uuid.New()}, 0)
	if !errors.Is(err, policy.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
