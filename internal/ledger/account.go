package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identity is the opaque comparable token identifying a participant.
// The administrator is just another Identity, designated in configuration.
type Identity = uuid.UUID

// AccountKind selects one of the two balances held per participant.
type AccountKind uint8

const (
	KindFunding AccountKind = iota
	KindCoverage
)

// Account holds the per-participant balances. Created lazily on first
// interaction, never deleted. All amounts are non-negative by invariant;
// the Book rejects any mutation that would violate that.
type Account struct {
	Funding  int64 // contributed but not yet converted into coverage
	Coverage int64 // amount currently covered
}

// PoolPath is the account path of the shared pool balance.
const PoolPath = "pool:balance"

// AccountPath returns the string form used in the entry log and projections.
func AccountPath(id Identity, kind AccountKind) string {
	return fmt.Sprintf("user:%s:%s", id.String(), kind.name())
}

func (k AccountKind) name() string {
	switch k {
	case KindFunding:
		return "funding"
	case KindCoverage:
		return "coverage"
	default:
		return "unknown"
	}
}

// ParseAccountPath splits a stored account path back into identity and kind.
// Returns ok=false for the pool path and malformed input.
func ParseAccountPath(path string) (Identity, AccountKind, bool) {
	parts := strings.Split(path, ":")
	if len(parts) != 3 || parts[0] != "user" {
		return uuid.Nil, 0, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, 0, false
	}
	switch parts[2] {
	case "funding":
		return id, KindFunding, true
	case "coverage":
		return id, KindCoverage, true
	}
	return uuid.Nil, 0, false
}
