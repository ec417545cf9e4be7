// internal/event/policy.go
package event

import "github.com/google/uuid"

// PolicyPurchase buys coverage: the insured amount moves from the caller's
// funding balance into the coverage balance, and the policy record is
// overwritten with the new amount and the locked premium.
type PolicyPurchase struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Amount    int64 // Insured amount
	Premium   int64 // Premium rate locked into the policy
	Sequence  int64
	Timestamp int64 // Epoch microseconds (versioned input)
}

func (p *PolicyPurchase) IdempotencyKey() string {
	return p.CommandID.String()
}

func (p *PolicyPurchase) EventType() EventType {
	return EventTypePolicyPurchase
}

func (p *PolicyPurchase) Caller() uuid.UUID {
	return p.CallerID
}

func (p *PolicyPurchase) SourceSequence() int64 {
	return p.Sequence
}

// PolicyIncrease raises the insured amount of an active policy, debiting
// the caller's funding balance.
type PolicyIncrease struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Amount    int64
	Sequence  int64
	Timestamp int64
}

func (p *PolicyIncrease) IdempotencyKey() string {
	return p.CommandID.String()
}

func (p *PolicyIncrease) EventType() EventType {
	return EventTypePolicyIncrease
}

func (p *PolicyIncrease) Caller() uuid.UUID {
	return p.CallerID
}

func (p *PolicyIncrease) SourceSequence() int64 {
	return p.Sequence
}

// PolicyCancel deactivates the caller's policy and refunds the insured
// amount to the funding balance.
type PolicyCancel struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (p *PolicyCancel) IdempotencyKey() string {
	return p.CommandID.String()
}

func (p *PolicyCancel) EventType() EventType {
	return EventTypePolicyCancel
}

func (p *PolicyCancel) Caller() uuid.UUID {
	return p.CallerID
}

func (p *PolicyCancel) SourceSequence() int64 {
	return p.Sequence
}

// PolicyPause deactivates the caller's policy without a refund.
type PolicyPause struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (p *PolicyPause) IdempotencyKey() string {
	return p.CommandID.String()
}

func (p *PolicyPause) EventType() EventType {
	return EventTypePolicyPause
}

func (p *PolicyPause) Caller() uuid.UUID {
	return p.CallerID
}

func (p *PolicyPause) SourceSequence() int64 {
	return p.Sequence
}

// PolicyDeactivate deactivates the caller's policy without a refund.
// Behaviorally identical to PolicyPause; both operations are retained.
type PolicyDeactivate struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (p *PolicyDeactivate) IdempotencyKey() string {
	return p.CommandID.String()
}

func (p *PolicyDeactivate) EventType() EventType {
	return EventTypePolicyDeactivate
}

func (p *PolicyDeactivate) Caller() uuid.UUID {
	return p.CallerID
}

func (p *PolicyDeactivate) SourceSequence() int64 {
	return p.Sequence
}
