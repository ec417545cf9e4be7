package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"coverpool/internal/event"
)

// CommandIngest is the write-side entry point for the HTTP API. It assigns
// source sequences from a single atomic counter and publishes commands to
// the JetStream command stream, so the core sees a contiguous sequence even
// though HTTP requests arrive concurrently. The counter is seeded from the
// core's expected sequence at startup; external producers must not publish
// to the command subjects while this service owns the counter.
type CommandIngest struct {
	js      jetstream.JetStream
	nextSeq atomic.Int64
}

func NewCommandIngest(js jetstream.JetStream, startSequence int64) *CommandIngest {
	ci := &CommandIngest{js: js}
	ci.nextSeq.Store(startSequence)
	return ci
}

// SubmitResult reports how a submitted command was enqueued.
type SubmitResult struct {
	CommandID uuid.UUID
	Sequence  int64
}

func (ci *CommandIngest) publish(ctx context.Context, subject string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if _, err := ci.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (ci *CommandIngest) allocate() (uuid.UUID, int64, int64) {
	return uuid.New(), ci.nextSeq.Add(1) - 1, time.Now().UnixMicro()
}

// SubmitFund enqueues a pool contribution.
func (ci *CommandIngest) SubmitFund(ctx context.Context, caller uuid.UUID, amount int64) (*SubmitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	id, seq, ts := ci.allocate()
	msg := contributionMsg{
		CommandID:   id.String(),
		CallerID:    caller.String(),
		Amount:      amount,
		Sequence:    seq,
		TimestampUs: ts,
	}
	if err := ci.publish(ctx, "cover.commands.fund", msg); err != nil {
		return nil, err
	}
	return &SubmitResult{CommandID: id, Sequence: seq}, nil
}

// SubmitPurchase enqueues a policy purchase.
func (ci *CommandIngest) SubmitPurchase(ctx context.Context, caller uuid.UUID, amount, premium int64) (*SubmitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	id, seq, ts := ci.allocate()
	msg := purchaseMsg{
		CommandID:   id.String(),
		CallerID:    caller.String(),
		Amount:      amount,
		Premium:     premium,
		Sequence:    seq,
		TimestampUs: ts,
	}
	if err := ci.publish(ctx, "cover.commands.purchase", msg); err != nil {
		return nil, err
	}
	return &SubmitResult{CommandID: id, Sequence: seq}, nil
}

// SubmitIncrease enqueues a coverage increase on an active policy.
func (ci *CommandIngest) SubmitIncrease(ctx context.Context, caller uuid.UUID, amount int64) (*SubmitResult, error) {
	return ci.submitAmount(ctx, "cover.commands.increase", caller, amount)
}

// SubmitPartialClaim enqueues a partial claim against the caller's policy.
func (ci *CommandIngest) SubmitPartialClaim(ctx context.Context, caller uuid.UUID, amount int64) (*SubmitResult, error) {
	return ci.submitAmount(ctx, "cover.commands.partial_claim", caller, amount)
}

// SubmitSurplusWithdrawal enqueues an administrator surplus withdrawal.
func (ci *CommandIngest) SubmitSurplusWithdrawal(ctx context.Context, caller uuid.UUID, amount int64) (*SubmitResult, error) {
	return ci.submitAmount(ctx, "cover.commands.withdraw_surplus", caller, amount)
}

func (ci *CommandIngest) submitAmount(ctx context.Context, subject string, caller uuid.UUID, amount int64) (*SubmitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	id, seq, ts := ci.allocate()
	msg := amountMsg{
		CommandID:   id.String(),
		CallerID:    caller.String(),
		Amount:      amount,
		Sequence:    seq,
		TimestampUs: ts,
	}
	if err := ci.publish(ctx, subject, msg); err != nil {
		return nil, err
	}
	return &SubmitResult{CommandID: id, Sequence: seq}, nil
}

// SubmitClaim enqueues a claim payout for a beneficiary. The core checks
// that the caller is the beneficiary or the administrator.
func (ci *CommandIngest) SubmitClaim(ctx context.Context, caller, beneficiary uuid.UUID, amount int64) (*SubmitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	id, seq, ts := ci.allocate()
	msg := claimMsg{
		CommandID:     id.String(),
		CallerID:      caller.String(),
		BeneficiaryID: beneficiary.String(),
		Amount:        amount,
		Sequence:      seq,
		TimestampUs:   ts,
	}
	if err := ci.publish(ctx, "cover.commands.claim", msg); err != nil {
		return nil, err
	}
	return &SubmitResult{CommandID: id, Sequence: seq}, nil
}

// SubmitRefund enqueues an administrator contribution refund.
func (ci *CommandIngest) SubmitRefund(ctx context.Context, caller, recipient uuid.UUID, amount int64) (*SubmitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	id, seq, ts := ci.allocate()
	msg := refundMsg{
		CommandID:   id.String(),
		CallerID:    caller.String(),
		RecipientID: recipient.String(),
		Amount:      amount,
		Sequence:    seq,
		TimestampUs: ts,
	}
	if err := ci.publish(ctx, "cover.commands.refund", msg); err != nil {
		return nil, err
	}
	return &SubmitResult{CommandID: id, Sequence: seq}, nil
}

// SubmitCancel enqueues a policy cancellation (refunds the insured amount).
func (ci *CommandIngest) SubmitCancel(ctx context.Context, caller uuid.UUID) (*SubmitResult, error) {
	return ci.submitAction(ctx, "cover.commands.cancel", caller)
}

// SubmitPause enqueues a policy pause.
func (ci *CommandIngest) SubmitPause(ctx context.Context, caller uuid.UUID) (*SubmitResult, error) {
	return ci.submitAction(ctx, "cover.commands.pause", caller)
}

// SubmitDeactivate enqueues a policy deactivation.
func (ci *CommandIngest) SubmitDeactivate(ctx context.Context, caller uuid.UUID) (*SubmitResult, error) {
	return ci.submitAction(ctx, "cover.commands.deactivate", caller)
}

// SubmitFreeze enqueues an administrator pool freeze. Irreversible.
func (ci *CommandIngest) SubmitFreeze(ctx context.Context, caller uuid.UUID) (*SubmitResult, error) {
	return ci.submitAction(ctx, "cover.commands.freeze", caller)
}

func (ci *CommandIngest) submitAction(ctx context.Context, subject string, caller uuid.UUID) (*SubmitResult, error) {
	id, seq, ts := ci.allocate()
	msg := policyActionMsg{
		CommandID:   id.String(),
		CallerID:    caller.String(),
		Sequence:    seq,
		TimestampUs: ts,
	}
	if err := ci.publish(ctx, subject, msg); err != nil {
		return nil, err
	}
	return &SubmitResult{CommandID: id, Sequence: seq}, nil
}

// SubmitParamUpdate enqueues an administrator parameter change.
func (ci *CommandIngest) SubmitParamUpdate(ctx context.Context, caller uuid.UUID, param event.PoolParam, value int64) (*SubmitResult, error) {
	if value <= 0 {
		return nil, fmt.Errorf("value must be positive")
	}
	id, seq, ts := ci.allocate()
	msg := paramMsg{
		CommandID:   id.String(),
		CallerID:    caller.String(),
		Param:       string(param),
		Value:       value,
		Sequence:    seq,
		TimestampUs: ts,
	}
	if err := ci.publish(ctx, "cover.commands.param", msg); err != nil {
		return nil, err
	}
	return &SubmitResult{CommandID: id, Sequence: seq}, nil
}
