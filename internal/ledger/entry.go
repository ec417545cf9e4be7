package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// EntryType classifies an applied balance change.
type EntryType int32

const (
	EntryTypeFundingCredit EntryType = iota
	EntryTypeFundingDebit
	EntryTypeCoverageCredit
	EntryTypeCoverageDebit
	EntryTypePoolCredit
	EntryTypePoolDebit
	EntryTypePoolFreeze
)

// Entry records one applied balance delta against a single account path.
// Unlike a double-entry journal, the pool and participant sides of an
// operation are separate entries under one batch; the batch, not the entry,
// is the atomic unit.
type Entry struct {
	EntryID   uuid.UUID
	BatchID   uuid.UUID
	EventRef  string // idempotency key of the source event
	Sequence  int64  // global event sequence
	Account   string // account path (AccountPath or PoolPath)
	Delta     int64  // signed; zero only for EntryTypePoolFreeze
	EntryType EntryType
	Timestamp int64 // versioned input timestamp (epoch microseconds)
}

// Batch is the set of entries one committed operation produced.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Entries   []Entry
}

// NewBatch starts an empty batch for an event. Rejected operations never
// produce a batch; an accepted state-only operation (parameter update,
// pause) produces a batch with no entries.
func NewBatch(eventRef string, sequence, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestamp,
	}
}

// Add appends an entry for the given account and delta.
func (b *Batch) Add(account string, delta int64, et EntryType) {
	b.Entries = append(b.Entries, Entry{
		EntryID:   uuid.New(),
		BatchID:   b.BatchID,
		EventRef:  b.EventRef,
		Sequence:  b.Sequence,
		Account:   account,
		Delta:     delta,
		EntryType: et,
		Timestamp: b.Timestamp,
	})
}

// Validate ensures the batch is well-formed before persistence. A freeze
// entry carries the (negative) delta that zeroed the pool, so the zero-delta
// case only arises when freezing an already-empty pool.
func (b *Batch) Validate() error {
	for _, e := range b.Entries {
		if e.BatchID != b.BatchID {
			return fmt.Errorf("entry %s has mismatched batch_id", e.EntryID)
		}
		if e.Account == "" {
			return fmt.Errorf("entry %s has empty account path", e.EntryID)
		}
		if e.Delta == 0 && e.EntryType != EntryTypePoolFreeze {
			return fmt.Errorf("entry %s has zero delta", e.EntryID)
		}
	}
	return nil
}

func (et EntryType) String() string {
	switch et {
	case EntryTypeFundingCredit:
		return "funding_credit"
	case EntryTypeFundingDebit:
		return "funding_debit"
	case EntryTypeCoverageCredit:
		return "coverage_credit"
	case EntryTypeCoverageDebit:
		return "coverage_debit"
	case EntryTypePoolCredit:
		return "pool_credit"
	case EntryTypePoolDebit:
		return "pool_debit"
	case EntryTypePoolFreeze:
		return "pool_freeze"
	default:
		return "unknown"
	}
}
