package event

import (
	"fmt"

	"github.com/google/uuid"
)

// PoolParam names an administrator-settable pool parameter.
type PoolParam string

const (
	ParamPremiumRate       PoolParam = "premium_rate"
	ParamFundCap           PoolParam = "fund_cap"
	ParamPerUserFundingCap PoolParam = "per_user_funding_cap"
)

// ParsePoolParam validates a wire-format parameter name.
func ParsePoolParam(s string) (PoolParam, error) {
	switch PoolParam(s) {
	case ParamPremiumRate, ParamFundCap, ParamPerUserFundingCap:
		return PoolParam(s), nil
	default:
		return "", fmt.Errorf("unknown pool parameter: %q", s)
	}
}

// ParamUpdate changes one pool parameter. Administrator only.
type ParamUpdate struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Param     PoolParam
	Value     int64
	Sequence  int64
	Timestamp int64 // Epoch microseconds (versioned input)
}

func (p *ParamUpdate) IdempotencyKey() string {
	return p.CommandID.String()
}

func (p *ParamUpdate) EventType() EventType {
	return EventTypeParamUpdate
}

func (p *ParamUpdate) Caller() uuid.UUID {
	return p.CallerID
}

func (p *ParamUpdate) SourceSequence() int64 {
	return p.Sequence
}

// SurplusWithdrawal moves pool funds to the administrator's external wallet.
// Administrator only.
type SurplusWithdrawal struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Amount    int64
	Sequence  int64
	Timestamp int64
}

func (s *SurplusWithdrawal) IdempotencyKey() string {
	return s.CommandID.String()
}

func (s *SurplusWithdrawal) EventType() EventType {
	return EventTypeSurplusWithdrawal
}

func (s *SurplusWithdrawal) Caller() uuid.UUID {
	return s.CallerID
}

func (s *SurplusWithdrawal) SourceSequence() int64 {
	return s.Sequence
}

// PoolFreeze zeroes the pool balance and marks the pool frozen.
// Administrator only, irreversible.
type PoolFreeze struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (p *PoolFreeze) IdempotencyKey() string {
	return p.CommandID.String()
}

func (p *PoolFreeze) EventType() EventType {
	return EventTypePoolFreeze
}

func (p *PoolFreeze) Caller() uuid.UUID {
	return p.CallerID
}

func (p *PoolFreeze) SourceSequence() int64 {
	return p.Sequence
}
