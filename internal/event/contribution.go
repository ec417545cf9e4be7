// internal/event/contribution.go
package event

import "github.com/google/uuid"

// ContributionReceived credits the contributor's funding balance and the
// shared pool together.
type ContributionReceived struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Amount    int64
	Sequence  int64
	Timestamp int64 // Epoch microseconds (versioned input)
}

func (c *ContributionReceived) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *ContributionReceived) EventType() EventType {
	return EventTypeContributionReceived
}

func (c *ContributionReceived) Caller() uuid.UUID {
	return c.CallerID
}

func (c *ContributionReceived) SourceSequence() int64 {
	return c.Sequence
}

// ContributionRefund is the administrator returning part of a participant's
// contribution to an external wallet. The pool deduction is clamped at zero.
type ContributionRefund struct {
	CommandID   uuid.UUID
	CallerID    uuid.UUID
	RecipientID uuid.UUID
	Amount      int64
	Sequence    int64
	Timestamp   int64
}

func (c *ContributionRefund) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *ContributionRefund) EventType() EventType {
	return EventTypeContributionRefund
}

func (c *ContributionRefund) Caller() uuid.UUID {
	return c.CallerID
}

func (c *ContributionRefund) SourceSequence() int64 {
	return c.Sequence
}
