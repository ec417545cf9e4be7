package policy

import (
	"coverpool/internal/ledger"
)

// Policy is the per-participant coverage record. Amount is the insured
// amount currently in force; Price is the premium rate locked at purchase
// time. A participant has at most one policy; absent reads as the zero
// record with IsActive false.
//
// Amount and the account's coverage balance are tracked separately and can
// diverge after repeated purchases: purchase overwrites Amount but adds to
// the coverage balance. Readers must not assume the two agree.
type Policy struct {
	Holder   ledger.Identity
	Amount   int64
	Price    int64
	IsActive bool
	Version  int64
}

// Manager owns the policy records.
type Manager struct {
	policies map[ledger.Identity]*Policy
}

func NewManager() *Manager {
	return &Manager{
		policies: make(map[ledger.Identity]*Policy),
	}
}

// Get returns the holder's policy or nil.
func (m *Manager) Get(holder ledger.Identity) *Policy {
	return m.policies[holder]
}

// Lookup returns a copy of the holder's policy; absent reads as the zero
// record.
func (m *Manager) Lookup(holder ledger.Identity) Policy {
	if p := m.policies[holder]; p != nil {
		return *p
	}
	return Policy{Holder: holder}
}

// Put overwrites the holder's policy record. Records are never deleted; a
// deactivated policy keeps its amount and price.
func (m *Manager) Put(p *Policy) {
	m.policies[p.Holder] = p
}

// All returns every policy record (for snapshot creation).
func (m *Manager) All() []*Policy {
	result := make([]*Policy, 0, len(m.policies))
	for _, p := range m.policies {
		result = append(result, p)
	}
	return result
}

// Restore replaces all records from a snapshot.
func (m *Manager) Restore(policies []*Policy) {
	m.policies = make(map[ledger.Identity]*Policy, len(policies))
	for _, p := range policies {
		m.policies[p.Holder] = p
	}
}
