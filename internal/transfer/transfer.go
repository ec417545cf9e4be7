// Package transfer executes external token transfers for surplus
// withdrawals and contribution refunds. The custody service is reached
// over NATS request/reply; a failed or timed-out request aborts the
// operation before the ledger mutates.
package transfer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"coverpool/internal/ledger"
	"coverpool/internal/observability"
	"coverpool/internal/policy"
)

// TransferSubject is the custody service's request/reply subject.
const TransferSubject = "cover.transfer.execute"

// DefaultTimeout bounds a single transfer request.
const DefaultTimeout = 5 * time.Second

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

type transferReply struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// NATSTransferer implements policy.Transferer over NATS request/reply.
type NATSTransferer struct {
	nc      *nats.Conn
	timeout time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewNATSTransferer(nc *nats.Conn, metrics *observability.Metrics) *NATSTransferer {
	return &NATSTransferer{
		nc:      nc,
		timeout: DefaultTimeout,
		metrics: metrics,
		logger:  observability.NewLogger("transfer"),
	}
}

// Transfer sends amount to recipient's external wallet. Any failure is
// reported as policy.ErrTransferFailed so callers abort before mutating.
func (t *NATSTransferer) Transfer(recipient ledger.Identity, amount int64) error {
	req := transferRequest{
		Recipient: recipient.String(),
		Amount:    amount,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", policy.ErrTransferFailed, err)
	}

	msg, err := t.nc.Request(TransferSubject, data, t.timeout)
	if err != nil {
		t.recordFailure(recipient, amount, err)
		return fmt.Errorf("%w: request: %v", policy.ErrTransferFailed, err)
	}

	var reply transferReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		t.recordFailure(recipient, amount, err)
		return fmt.Errorf("%w: decode reply: %v", policy.ErrTransferFailed, err)
	}
	if !reply.OK {
		t.recordFailure(recipient, amount, fmt.Errorf("custody rejected: %s", reply.Reason))
		return fmt.Errorf("%w: %s", policy.ErrTransferFailed, reply.Reason)
	}

	t.logger.Info().
		Str("recipient", recipient.String()).
		Int64("amount", amount).
		Msg("transfer executed")
	return nil
}

func (t *NATSTransferer) recordFailure(recipient ledger.Identity, amount int64, err error) {
	if t.metrics != nil {
		t.metrics.TransferFailures.Inc()
	}
	t.logger.Warn().
		Str("recipient", recipient.String()).
		Int64("amount", amount).
		Err(err).
		Msg("transfer failed")
}
