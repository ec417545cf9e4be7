package projection

import (
	"github.com/google/uuid"
)

// ClaimHistoryEntry records one settled claim payout.
type ClaimHistoryEntry struct {
	Caller      uuid.UUID
	Beneficiary uuid.UUID
	ClaimAmount int64 // raw claim amount from the command
	Payout      int64 // settled amount after the premium-rate formula
	Partial     bool
	EventRef    string
	Sequence    int64
	Timestamp   int64
}

// ClaimHistoryProjection maintains queryable claim history in memory.
type ClaimHistoryProjection struct {
	entries []ClaimHistoryEntry
}

func NewClaimHistoryProjection() *ClaimHistoryProjection {
	return &ClaimHistoryProjection{
		entries: make([]ClaimHistoryEntry, 0),
	}
}

// AddEntry records a settled claim.
func (p *ClaimHistoryProjection) AddEntry(entry ClaimHistoryEntry) {
	p.entries = append(p.entries, entry)
}

// QueryByBeneficiary returns claim history for a beneficiary, newest first.
func (p *ClaimHistoryProjection) QueryByBeneficiary(beneficiary uuid.UUID, limit int) []ClaimHistoryEntry {
	result := make([]ClaimHistoryEntry, 0)

	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].Beneficiary == beneficiary {
			result = append(result, p.entries[i])
		}
	}

	return result
}
