// internal/event/claim.go
package event

import "github.com/google/uuid"

// PartialClaim reduces the caller's in-force policy amount by the claimed
// amount and pays out claim_amount * premium_rate / 100 from the pool.
// The policy stays active.
type PartialClaim struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Amount    int64
	Sequence  int64
	Timestamp int64 // Epoch microseconds (versioned input)
}

func (c *PartialClaim) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *PartialClaim) EventType() EventType {
	return EventTypePartialClaim
}

func (c *PartialClaim) Caller() uuid.UUID {
	return c.CallerID
}

func (c *PartialClaim) SourceSequence() int64 {
	return c.Sequence
}

// ClaimPayout settles a claim against the beneficiary's coverage balance:
// the payout amount is debited from both the coverage balance and the pool.
// Callable by the beneficiary or the administrator; the active flag is left
// unchanged.
type ClaimPayout struct {
	CommandID     uuid.UUID
	CallerID      uuid.UUID
	BeneficiaryID uuid.UUID
	Amount        int64
	Sequence      int64
	Timestamp     int64
}

func (c *ClaimPayout) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *ClaimPayout) EventType() EventType {
	return EventTypeClaimPayout
}

func (c *ClaimPayout) Caller() uuid.UUID {
	return c.CallerID
}

func (c *ClaimPayout) SourceSequence() int64 {
	return c.Sequence
}
