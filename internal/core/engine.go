package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"coverpool/internal/event"
	"coverpool/internal/ledger"
	"coverpool/internal/observability"
	"coverpool/internal/policy"
)

// CommandPartition is the sequence-validation partition for the public
// command stream. There is a single pool, so a single partition.
const CommandPartition = "commands"

// DeterministicCore is the single-threaded command processor. Every public
// operation flows through ProcessEvent exactly once; the policy engine and
// the book are never mutated from anywhere else.
type DeterministicCore struct {
	sequence          int64
	hasher            *StateHasher
	book              *ledger.Book
	policies          *policy.Manager
	engine            *policy.Engine
	validator         *ledger.InvariantValidator
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

type CoreOutput struct {
	Envelope *event.EventEnvelope
	Batch    *ledger.Batch
	Rejected *RejectedCommand
}

// RejectedCommand records a precondition failure for result publishing.
// Rejections are not part of the event log; they flow to the projection
// channel only.
type RejectedCommand struct {
	IdempotencyKey string
	EventType      event.EventType
	Reason         string
}

func NewDeterministicCore(
	startSequence int64,
	admin ledger.Identity,
	transfer policy.Transferer,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	lruCapacity int,
	metrics *observability.Metrics,
) *DeterministicCore {
	book := ledger.NewBook()
	policies := policy.NewManager()

	if lruCapacity <= 0 {
		lruCapacity = 1_000_000
	}

	return &DeterministicCore{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		book:              book,
		policies:          policies,
		engine:            policy.NewEngine(book, policies, admin, transfer),
		validator:         ledger.NewInvariantValidator(book),
		idempotency:       NewIdempotencyChecker(lruCapacity, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// ProcessEvent is the main processing pipeline
func (c *DeterministicCore) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Step 2: Source sequence validation
	if err := c.sequenceValidator.ValidateSequence(CommandPartition, evt.SourceSequence(), idempotencyKey, isDuplicate); err != nil {
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch. The policy engine stages all precondition checks
	// before the first mutation, so a returned error means nothing changed.
	batch, err := c.dispatchEvent(evt)
	if err != nil {
		c.emitRejection(evt, err)
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "precondition").Inc()
		}
		// A rejected command still consumed its source sequence; mark it
		// processed so a redelivery is deduplicated rather than re-failed.
		c.idempotency.MarkProcessed(eventType, idempotencyKey)
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: Batch consistency
	if err := c.validator.ValidateBatch(batch); err != nil {
		panic(fmt.Sprintf("FATAL: inconsistent batch: %v", err))
	}

	// Step 5: Post-commit invariants. A violation here is a bug in the
	// engine, not a caller error.
	if err := c.validator.ValidateAll(touchedIdentities(batch)); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 6: State digest and hash chain
	hashStart := time.Now()
	stateDigest := c.computeStateDigest(batch)
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)
	if c.metrics != nil {
		c.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	// Step 7: Envelope. Payload carries the full command for replay.
	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: cannot marshal %s payload: %v", eventType, err))
	}

	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Timestamp:      c.getEventTimestamp(evt),
		SourceSequence: evt.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope: envelope,
		Batch:    batch,
	}
	c.sequence++

	// Step 8: Emit. Persistence is a blocking send (backpressure, no event
	// loss); projections are non-blocking with drop (rebuildable from the
	// event log).
	c.persistChan <- output

	select {
	case c.projectionChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.ProjectionDrops.WithLabelValues(eventType).Inc()
		}
	}

	// Step 9: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEntries.WithLabelValues(eventType).Add(float64(len(batch.Entries)))
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}

	return nil
}

// ReplayEvent re-applies a stored event during startup recovery. Replay
// runs the same dispatch, validation, and hash-chain steps as ProcessEvent
// but skips the Postgres idempotency tier (every stored event is in the
// log by definition) and emits nothing: the event is already persisted and
// was published when first applied. The LRU is warmed as a side effect so
// live redeliveries after recovery are deduplicated.
func (c *DeterministicCore) ReplayEvent(evt event.Event) error {
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// LRU only: snapshot-covered keys were warmed before replay started
	// and must not be applied twice.
	if c.idempotency.IsDuplicateLRU(eventType, idempotencyKey) {
		return nil
	}

	if err := c.sequenceValidator.ValidateSequence(CommandPartition, evt.SourceSequence(), idempotencyKey, false); err != nil {
		return fmt.Errorf("replay sequence validation failed: %w", err)
	}

	// Stored events were valid when first applied; a dispatch error here
	// means the log and the rebuilt state disagree.
	batch, err := c.dispatchEvent(evt)
	if err != nil {
		return fmt.Errorf("replay dispatch failed: %w", err)
	}

	if err := c.validator.ValidateBatch(batch); err != nil {
		panic(fmt.Sprintf("FATAL: inconsistent batch: %v", err))
	}
	if err := c.validator.ValidateAll(touchedIdentities(batch)); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	stateDigest := c.computeStateDigest(batch)
	c.hasher.ComputeHash(c.sequence, stateDigest)
	c.sequence++

	c.idempotency.MarkProcessed(eventType, idempotencyKey)
	return nil
}

func (c *DeterministicCore) dispatchEvent(evt event.Event) (*ledger.Batch, error) {
	switch e := evt.(type) {
	case *event.ContributionReceived:
		return c.engine.Fund(e, c.sequence)
	case *event.PolicyPurchase:
		return c.engine.Purchase(e, c.sequence)
	case *event.PolicyIncrease:
		return c.engine.Increase(e, c.sequence)
	case *event.PartialClaim:
		return c.engine.PartialClaim(e, c.sequence)
	case *event.ClaimPayout:
		return c.engine.Claim(e, c.sequence)
	case *event.PolicyCancel:
		return c.engine.Cancel(e, c.sequence)
	case *event.PolicyPause:
		return c.engine.Pause(e, c.sequence)
	case *event.PolicyDeactivate:
		return c.engine.Deactivate(e, c.sequence)
	case *event.ParamUpdate:
		return c.engine.SetParam(e, c.sequence)
	case *event.SurplusWithdrawal:
		return c.engine.WithdrawSurplus(e, c.sequence)
	case *event.ContributionRefund:
		return c.engine.RefundContribution(e, c.sequence)
	case *event.PoolFreeze:
		return c.engine.Freeze(e, c.sequence)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// emitRejection publishes a precondition failure to the projection channel
// so the result publisher can answer the caller. Rejections never enter the
// event log.
func (c *DeterministicCore) emitRejection(evt event.Event, cause error) {
	output := CoreOutput{
		Rejected: &RejectedCommand{
			IdempotencyKey: evt.IdempotencyKey(),
			EventType:      evt.EventType(),
			Reason:         cause.Error(),
		},
	}

	select {
	case c.projectionChan <- output:
	default:
	}
}

// getEventTimestamp extracts the versioned timestamp from a command. The
// core never reads the wall clock; timestamps are inputs.
func (c *DeterministicCore) getEventTimestamp(evt event.Event) time.Time {
	switch e := evt.(type) {
	case *event.ContributionReceived:
		return time.UnixMicro(e.Timestamp)
	case *event.ContributionRefund:
		return time.UnixMicro(e.Timestamp)
	case *event.PolicyPurchase:
		return time.UnixMicro(e.Timestamp)
	case *event.PolicyIncrease:
		return time.UnixMicro(e.Timestamp)
	case *event.PolicyCancel:
		return time.UnixMicro(e.Timestamp)
	case *event.PolicyPause:
		return time.UnixMicro(e.Timestamp)
	case *event.PolicyDeactivate:
		return time.UnixMicro(e.Timestamp)
	case *event.PartialClaim:
		return time.UnixMicro(e.Timestamp)
	case *event.ClaimPayout:
		return time.UnixMicro(e.Timestamp)
	case *event.ParamUpdate:
		return time.UnixMicro(e.Timestamp)
	case *event.SurplusWithdrawal:
		return time.UnixMicro(e.Timestamp)
	case *event.PoolFreeze:
		return time.UnixMicro(e.Timestamp)
	default:
		panic(fmt.Sprintf("FATAL: getEventTimestamp called with unhandled event type %T", evt))
	}
}

// computeStateDigest creates canonical bytes for the state hash: the
// post-commit balance of every account the batch touched, sorted by path.
func (c *DeterministicCore) computeStateDigest(batch *ledger.Batch) []byte {
	touched := make(map[string]bool)
	if batch != nil {
		for _, e := range batch.Entries {
			touched[e.Account] = true
		}
	}

	paths := make([]string, 0, len(touched))
	for path := range touched {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	digest := make([]byte, 0, len(paths)*48)
	for _, path := range paths {
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, c.balanceAt(path))
	}

	return digest
}

// balanceAt resolves an entry account path to its current balance.
func (c *DeterministicCore) balanceAt(path string) int64 {
	if path == ledger.PoolPath {
		return c.book.Pool().Balance
	}
	id, kind, ok := ledger.ParseAccountPath(path)
	if !ok {
		panic(fmt.Sprintf("FATAL: unresolvable account path %q", path))
	}
	acct := c.book.Account(id)
	if kind == ledger.KindCoverage {
		return acct.Coverage
	}
	return acct.Funding
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// touchedIdentities collects the participant identities a batch mutated.
func touchedIdentities(batch *ledger.Batch) []ledger.Identity {
	seen := make(map[ledger.Identity]bool)
	result := make([]ledger.Identity, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		id, _, ok := ledger.ParseAccountPath(e.Account)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	PoolState       ledger.Pool
	Accounts        map[ledger.Identity]ledger.Account
	Policies        []*policy.Policy
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state. On warm restart,
// load the latest snapshot then replay the event log tail.
func (c *DeterministicCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign
	c.hasher.SetPrevHash(snap.StateHash)
	c.book.Restore(snap.PoolState, snap.Accounts)
	c.policies.Restore(snap.Policies)

	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.RestorePartition(partition, nextSeq)
	}
}

// WarmLRU loads recent idempotency keys into the LRU cache to avoid
// cold-path DB lookups for recently processed commands.
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the current global sequence number.
func (c *DeterministicCore) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *DeterministicCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// GetExpectedSourceSequence returns the next source sequence the command
// partition will accept. The ingest service seeds its counter from this
// after recovery so restarts continue the contiguous sequence.
func (c *DeterministicCore) GetExpectedSourceSequence() int64 {
	return c.sequenceValidator.GetExpectedSequence(CommandPartition)
}

// Book exposes the underlying book for startup wiring.
func (c *DeterministicCore) Book() *ledger.Book {
	return c.book
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *DeterministicCore) CreateSnapshotState() *SnapshotState {
	pool, accounts := c.book.Snapshot()
	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		StateHash:       c.hasher.GetPrevHash(),
		PoolState:       pool,
		Accounts:        accounts,
		Policies:        c.policies.All(),
		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}
