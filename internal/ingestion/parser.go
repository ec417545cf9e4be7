package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"coverpool/internal/event"
)

// Wire formats for inbound NATS command messages. All identifiers are UUID
// strings, all amounts are int64 base units, and timestamp_us is epoch
// microseconds fixed by the producer so replay is deterministic.

type contributionMsg struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

type refundMsg struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	RecipientID string `json:"recipient_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

type purchaseMsg struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Amount      int64  `json:"amount"`
	Premium     int64  `json:"premium"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

type amountMsg struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

type policyActionMsg struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

type claimMsg struct {
	CommandID     string `json:"command_id"`
	CallerID      string `json:"caller_id"`
	BeneficiaryID string `json:"beneficiary_id"`
	Amount        int64  `json:"amount"`
	Sequence      int64  `json:"sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

type paramMsg struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Param       string `json:"param"`
	Value       int64  `json:"value"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

// EventTypeForSubject resolves a NATS subject to its command type name.
func EventTypeForSubject(subject string, subjects []SubjectConfig) (string, error) {
	for _, cfg := range subjects {
		if cfg.Subject == subject {
			return cfg.EventType, nil
		}
	}
	return "", fmt.Errorf("unknown subject: %s", subject)
}

// ParseRawEvent converts a raw NATS message into a typed command event.
// The ingestion shell validates and converts before anything reaches the
// deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "ContributionReceived":
		return parseContribution(raw.Data)
	case "ContributionRefund":
		return parseRefund(raw.Data)
	case "PolicyPurchase":
		return parsePurchase(raw.Data)
	case "PolicyIncrease":
		return parseIncrease(raw.Data)
	case "PartialClaim":
		return parsePartialClaim(raw.Data)
	case "ClaimPayout":
		return parseClaim(raw.Data)
	case "PolicyCancel", "PolicyPause", "PolicyDeactivate":
		return parsePolicyAction(raw.Data, eventType)
	case "ParamUpdate":
		return parseParamUpdate(raw.Data)
	case "SurplusWithdrawal":
		return parseSurplusWithdrawal(raw.Data)
	case "PoolFreeze":
		return parsePoolFreeze(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

func parseIDs(commandID, callerID string) (uuid.UUID, uuid.UUID, error) {
	cmd, err := uuid.Parse(commandID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid command_id: %w", err)
	}
	caller, err := uuid.Parse(callerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid caller_id: %w", err)
	}
	return cmd, caller, nil
}

func parseContribution(data []byte) (event.Event, error) {
	var msg contributionMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal contribution: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.ContributionReceived{
		CommandID: cmd,
		CallerID:  caller,
		Amount:    msg.Amount,
		Sequence:  msg.Sequence,
		Timestamp: msg.TimestampUs,
	}, nil
}

func parseRefund(data []byte) (event.Event, error) {
	var msg refundMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal refund: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	recipient, err := uuid.Parse(msg.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient_id: %w", err)
	}
	return &event.ContributionRefund{
		CommandID:   cmd,
		CallerID:    caller,
		RecipientID: recipient,
		Amount:      msg.Amount,
		Sequence:    msg.Sequence,
		Timestamp:   msg.TimestampUs,
	}, nil
}

func parsePurchase(data []byte) (event.Event, error) {
	var msg purchaseMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal purchase: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.PolicyPurchase{
		CommandID: cmd,
		CallerID:  caller,
		Amount:    msg.Amount,
		Premium:   msg.Premium,
		Sequence:  msg.Sequence,
		Timestamp: msg.TimestampUs,
	}, nil
}

func parseIncrease(data []byte) (event.Event, error) {
	var msg amountMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal increase: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.PolicyIncrease{
		CommandID: cmd,
		CallerID:  caller,
		Amount:    msg.Amount,
		Sequence:  msg.Sequence,
		Timestamp: msg.TimestampUs,
	}, nil
}

func parsePartialClaim(data []byte) (event.Event, error) {
	var msg amountMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal partial claim: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.PartialClaim{
		CommandID: cmd,
		CallerID:  caller,
		Amount:    msg.Amount,
		Sequence:  msg.Sequence,
		Timestamp: msg.TimestampUs,
	}, nil
}

func parseClaim(data []byte) (event.Event, error) {
	var msg claimMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal claim: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	beneficiary, err := uuid.Parse(msg.BeneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("invalid beneficiary_id: %w", err)
	}
	return &event.ClaimPayout{
		CommandID:     cmd,
		CallerID:      caller,
		BeneficiaryID: beneficiary,
		Amount:        msg.Amount,
		Sequence:      msg.Sequence,
		Timestamp:     msg.TimestampUs,
	}, nil
}

func parsePolicyAction(data []byte, eventType string) (event.Event, error) {
	var msg policyActionMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal policy action: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	switch eventType {
	case "PolicyCancel":
		return &event.PolicyCancel{CommandID: cmd, CallerID: caller, Sequence: msg.Sequence, Timestamp: msg.TimestampUs}, nil
	case "PolicyPause":
		return &event.PolicyPause{CommandID: cmd, CallerID: caller, Sequence: msg.Sequence, Timestamp: msg.TimestampUs}, nil
	default:
		return &event.PolicyDeactivate{CommandID: cmd, CallerID: caller, Sequence: msg.Sequence, Timestamp: msg.TimestampUs}, nil
	}
}

func parseParamUpdate(data []byte) (event.Event, error) {
	var msg paramMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal param update: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	param, err := event.ParsePoolParam(msg.Param)
	if err != nil {
		return nil, err
	}
	return &event.ParamUpdate{
		CommandID: cmd,
		CallerID:  caller,
		Param:     param,
		Value:     msg.Value,
		Sequence:  msg.Sequence,
		Timestamp: msg.TimestampUs,
	}, nil
}

func parseSurplusWithdrawal(data []byte) (event.Event, error) {
	var msg amountMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal surplus withdrawal: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.SurplusWithdrawal{
		CommandID: cmd,
		CallerID:  caller,
		Amount:    msg.Amount,
		Sequence:  msg.Sequence,
		Timestamp: msg.TimestampUs,
	}, nil
}

func parsePoolFreeze(data []byte) (event.Event, error) {
	var msg policyActionMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal pool freeze: %w", err)
	}
	cmd, caller, err := parseIDs(msg.CommandID, msg.CallerID)
	if err != nil {
		return nil, err
	}
	return &event.PoolFreeze{
		CommandID: cmd,
		CallerID:  caller,
		Sequence:  msg.Sequence,
		Timestamp: msg.TimestampUs,
	}, nil
}
