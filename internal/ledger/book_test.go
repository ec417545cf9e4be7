package ledger_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"coverpool/internal/ledger"
)

func TestCreditFunding_MovesBothBalances(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	if err := b.CreditFunding(id, 10_000); err != nil {
		t.Fatalf("CreditFunding failed: %v", err)
	}

	if got := b.Account(id).Funding; got != 10_000 {
		t.Errorf("expected funding 10_000, got %d", got)
	}
	if got := b.Pool().Balance; got != 10_000 {
		t.Errorf("expected pool balance 10_000, got %d", got)
	}
}

func TestCreditFunding_RejectsNonPositive(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	for _, amount := range []int64{0, -1, -10_000} {
		err := b.CreditFunding(id, amount)
		if !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestCreditFunding_PerUserCap(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	if err := b.SetPerUserFundingCap(5_000); err != nil {
		t.Fatalf("SetPerUserFundingCap failed: %v", err)
	}

	if err := b.CreditFunding(id, 5_000); err != nil {
		t.Fatalf("credit at cap should succeed: %v", err)
	}

	err := b.CreditFunding(id, 1)
	if !errors.Is(err, ledger.ErrFundingCapExceeded) {
		t.Errorf("expected ErrFundingCapExceeded, got %v", err)
	}

	// The failed credit must not have touched either balance.
	if got := b.Account(id).Funding; got != 5_000 {
		t.Errorf("funding changed on rejected credit: %d", got)
	}
	if got := b.Pool().Balance; got != 5_000 {
		t.Errorf("pool changed on rejected credit: %d", got)
	}
}

func TestCreditFunding_FundCap(t *testing.T) {
	b := ledger.NewBook()

	if err := b.SetFundCap(15_000); err != nil {
		t.Fatalf("SetFundCap failed: %v", err)
	}

	// Two participants, each under the per-user cap, together over the
	// fund cap.
	if err := b.CreditFunding(uuid.New(), 10_000); err != nil {
		t.Fatalf("first credit failed: %v", err)
	}

	err := b.CreditFunding(uuid.New(), 10_000)
	if !errors.Is(err, ledger.ErrFundingCapExceeded) {
		t.Errorf("expected ErrFundingCapExceeded, got %v", err)
	}
}

func TestDebitFunding_LeavesPoolUntouched(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	if err := b.CreditFunding(id, 10_000); err != nil {
		t.Fatalf("CreditFunding failed: %v", err)
	}
	if err := b.DebitFunding(id, 4_000); err != nil {
		t.Fatalf("DebitFunding failed: %v", err)
	}

	if got := b.Account(id).Funding; got != 6_000 {
		t.Errorf("expected funding 6_000, got %d", got)
	}
	if got := b.Pool().Balance; got != 10_000 {
		t.Errorf("pool should stay at 10_000, got %d", got)
	}
}

func TestDebitFunding_Insufficient(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	if err := b.CreditFunding(id, 1_000); err != nil {
		t.Fatalf("CreditFunding failed: %v", err)
	}

	err := b.DebitFunding(id, 2_000)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestRefundFunding_NoPoolSide(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	if err := b.RefundFunding(id, 3_000); err != nil {
		t.Fatalf("RefundFunding failed: %v", err)
	}

	if got := b.Account(id).Funding; got != 3_000 {
		t.Errorf("expected funding 3_000, got %d", got)
	}
	if got := b.Pool().Balance; got != 0 {
		t.Errorf("pool must be untouched by refunds, got %d", got)
	}
}

func TestRefundFunding_PerUserCapStillBinds(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	if err := b.SetPerUserFundingCap(5_000); err != nil {
		t.Fatalf("SetPerUserFundingCap failed: %v", err)
	}
	if err := b.CreditFunding(id, 4_000); err != nil {
		t.Fatalf("CreditFunding failed: %v", err)
	}

	err := b.RefundFunding(id, 2_000)
	if !errors.Is(err, ledger.ErrFundingCapExceeded) {
		t.Errorf("expected ErrFundingCapExceeded, got %v", err)
	}
}

func TestAdjustPool_Underflow(t *testing.T) {
	b := ledger.NewBook()

	if err := b.AdjustPool(1_000); err != nil {
		t.Fatalf("AdjustPool failed: %v", err)
	}

	err := b.AdjustPool(-2_000)
	if !errors.Is(err, ledger.ErrInsufficientPoolFunds) {
		t.Errorf("expected ErrInsufficientPoolFunds, got %v", err)
	}
	if got := b.Pool().Balance; got != 1_000 {
		t.Errorf("pool changed on rejected adjust: %d", got)
	}
}

func TestDeductPoolClamped(t *testing.T) {
	b := ledger.NewBook()

	if err := b.AdjustPool(1_000); err != nil {
		t.Fatalf("AdjustPool failed: %v", err)
	}

	// Deduction beyond the balance clamps at zero.
	deducted := b.DeductPoolClamped(5_000)
	if deducted != 1_000 {
		t.Errorf("expected deducted 1_000, got %d", deducted)
	}
	if got := b.Pool().Balance; got != 0 {
		t.Errorf("expected pool 0, got %d", got)
	}

	// Deducting from an empty pool is a no-op.
	if deducted := b.DeductPoolClamped(100); deducted != 0 {
		t.Errorf("expected deducted 0 from empty pool, got %d", deducted)
	}

	// Non-positive amounts are ignored.
	if deducted := b.DeductPoolClamped(-50); deducted != 0 {
		t.Errorf("expected 0 for negative amount, got %d", deducted)
	}
}

func TestFreezePool_ZerosBalanceAndMarksFrozen(t *testing.T) {
	b := ledger.NewBook()
	id := uuid.New()

	if err := b.CreditFunding(id, 7_000); err != nil {
		t.Fatalf("CreditFunding failed: %v", err)
	}

	discarded := b.FreezePool()
	if discarded != 7_000 {
		t.Errorf("expected discarded 7_000, got %d", discarded)
	}

	pool := b.Pool()
	if pool.Balance != 0 {
		t.Errorf("expected pool balance 0, got %d", pool.Balance)
	}
	if !pool.Frozen {
		t.Error("expected pool to be frozen")
	}

	// Per-account balances are NOT reconciled by a freeze.
	if got := b.Account(id).Funding; got != 7_000 {
		t.Errorf("funding balance should survive a freeze, got %d", got)
	}
}

func TestParamSetters_RejectNonPositive(t *testing.T) {
	b := ledger.NewBook()

	if err := b.SetPremiumRate(0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("SetPremiumRate(0): expected ErrInvalidAmount, got %v", err)
	}
	if err := b.SetFundCap(-1); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("SetFundCap(-1): expected ErrInvalidAmount, got %v", err)
	}
	if err := b.SetPerUserFundingCap(0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("SetPerUserFundingCap(0): expected ErrInvalidAmount, got %v", err)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	b := ledger.NewBook()
	id1, id2 := uuid.New(), uuid.New()

	if err := b.CreditFunding(id1, 10_000); err != nil {
		t.Fatalf("credit id1 failed: %v", err)
	}
	if err := b.CreditFunding(id2, 20_000); err != nil {
		t.Fatalf("credit id2 failed: %v", err)
	}
	if err := b.CreditCoverage(id1, 5_000); err != nil {
		t.Fatalf("credit coverage failed: %v", err)
	}
	if err := b.SetPremiumRate(750); err != nil {
		t.Fatalf("SetPremiumRate failed: %v", err)
	}

	pool, accounts := b.Snapshot()

	restored := ledger.NewBook()
	restored.Restore(pool, accounts)

	if got := restored.Pool(); got != b.Pool() {
		t.Errorf("pool mismatch after restore: %+v vs %+v", got, b.Pool())
	}
	if got := restored.Account(id1); got != b.Account(id1) {
		t.Errorf("account id1 mismatch: %+v vs %+v", got, b.Account(id1))
	}
	if got := restored.Account(id2); got != b.Account(id2) {
		t.Errorf("account id2 mismatch: %+v vs %+v", got, b.Account(id2))
	}

	// Snapshot holds copies; mutating the restored book must not leak back.
	if err := restored.DebitFunding(id1, 1_000); err != nil {
		t.Fatalf("debit on restored book failed: %v", err)
	}
	if got := b.Account(id1).Funding; got != 10_000 {
		t.Errorf("original book mutated through snapshot: %d", got)
	}
}

func TestAccountPath_RoundTrip(t *testing.T) {
	id := uuid.New()

	path := ledger.AccountPath(id, ledger.KindFunding)
	gotID, gotKind, ok := ledger.ParseAccountPath(path)
	if !ok {
		t.Fatalf("ParseAccountPath(%q) failed", path)
	}
	if gotID != id || gotKind != ledger.KindFunding {
		t.Errorf("round trip mismatch: %s %v", gotID, gotKind)
	}

	path = ledger.AccountPath(id, ledger.KindCoverage)
	gotID, gotKind, ok = ledger.ParseAccountPath(path)
	if !ok || gotID != id || gotKind != ledger.KindCoverage {
		t.Errorf("coverage round trip failed: %s %v %v", gotID, gotKind, ok)
	}
}

func TestParseAccountPath_Rejects(t *testing.T) {
	bad := []string{
		ledger.PoolPath,
		"",
		"user:not-a-uuid:funding",
		"user:" + uuid.New().String() + ":collateral",
		"acct:" + uuid.New().String() + ":funding",
	}
	for _, path := range bad {
		if _, _, ok := ledger.ParseAccountPath(path); ok {
			t.Errorf("ParseAccountPath(%q) should fail", path)
		}
	}
}

func TestBatchValidate(t *testing.T) {
	batch := ledger.NewBatch(uuid.New().String(), 7, 1_000_000)
	batch.Add(ledger.AccountPath(uuid.New(), ledger.KindFunding), 500, ledger.EntryTypeFundingCredit)
	batch.Add(ledger.PoolPath, 500, ledger.EntryTypePoolCredit)

	if err := batch.Validate(); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}

	// Zero delta is only legal for a freeze entry.
	badBatch := ledger.NewBatch(uuid.New().String(), 8, 1_000_000)
	badBatch.Add(ledger.PoolPath, 0, ledger.EntryTypePoolDebit)
	if err := badBatch.Validate(); err == nil {
		t.Error("expected zero-delta entry to be rejected")
	}

	freezeBatch := ledger.NewBatch(uuid.New().String(), 9, 1_000_000)
	freezeBatch.Add(ledger.PoolPath, 0, ledger.EntryTypePoolFreeze)
	if err := freezeBatch.Validate(); err != nil {
		t.Errorf("zero-delta freeze entry should validate: %v", err)
	}
}
