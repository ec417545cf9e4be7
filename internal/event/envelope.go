package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeContributionReceived
	EventTypeContributionRefund
	EventTypePolicyPurchase
	EventTypePolicyIncrease
	EventTypePolicyCancel
	EventTypePolicyPause
	EventTypePolicyDeactivate
	EventTypePartialClaim
	EventTypeClaimPayout
	EventTypeParamUpdate
	EventTypeSurplusWithdrawal
	EventTypePoolFreeze
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Caller returns the identity the operation executes as
	Caller() uuid.UUID

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeContributionReceived:
		return "ContributionReceived"
	case EventTypeContributionRefund:
		return "ContributionRefund"
	case EventTypePolicyPurchase:
		return "PolicyPurchase"
	case EventTypePolicyIncrease:
		return "PolicyIncrease"
	case EventTypePolicyCancel:
		return "PolicyCancel"
	case EventTypePolicyPause:
		return "PolicyPause"
	case EventTypePolicyDeactivate:
		return "PolicyDeactivate"
	case EventTypePartialClaim:
		return "PartialClaim"
	case EventTypeClaimPayout:
		return "ClaimPayout"
	case EventTypeParamUpdate:
		return "ParamUpdate"
	case EventTypeSurplusWithdrawal:
		return "SurplusWithdrawal"
	case EventTypePoolFreeze:
		return "PoolFreeze"
	default:
		return "Unknown"
	}
}
