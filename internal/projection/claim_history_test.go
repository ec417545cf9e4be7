package projection_test

import (
	"testing"

	"github.com/google/uuid"

	"coverpool/internal/projection"
)

func TestClaimHistory_QueryByBeneficiary(t *testing.T) {
	p := projection.NewClaimHistoryProjection()
	beneficiary := uuid.New()
	other := uuid.New()

	p.AddEntry(projection.ClaimHistoryEntry{
		Caller: beneficiary, Beneficiary: beneficiary,
		ClaimAmount: 1_000, Payout: 5_000, Sequence: 0,
	})
	p.AddEntry(projection.ClaimHistoryEntry{
		Caller: other, Beneficiary: other,
		ClaimAmount: 2_000, Payout: 10_000, Sequence: 1,
	})
	p.AddEntry(projection.ClaimHistoryEntry{
		Caller: beneficiary, Beneficiary: beneficiary,
		ClaimAmount: 500, Payout: 2_500, Partial: true, Sequence: 2,
	})

	got := p.QueryByBeneficiary(beneficiary, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	// Newest first
	if got[0].Sequence != 2 || !got[0].Partial {
		t.Errorf("expected newest partial claim first, got %+v", got[0])
	}
	if got[1].Sequence != 0 {
		t.Errorf("expected oldest claim last, got %+v", got[1])
	}
}

func TestClaimHistory_LimitApplies(t *testing.T) {
	p := projection.NewClaimHistoryProjection()
	beneficiary := uuid.New()

	for i := int64(0); i < 5; i++ {
		p.AddEntry(projection.ClaimHistoryEntry{
			Beneficiary: beneficiary, ClaimAmount: 100, Payout: 500, Sequence: i,
		})
	}

	got := p.QueryByBeneficiary(beneficiary, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Sequence != 4 {
		t.Errorf("expected sequence 4 first, got %d", got[0].Sequence)
	}
}
