package query

import "github.com/google/uuid"

// AccountResponse represents a participant's balances for API queries.
type AccountResponse struct {
	Identity        uuid.UUID `json:"identity"`
	FundingBalance  int64     `json:"funding_balance"`
	CoverageBalance int64     `json:"coverage_balance"`
	AsOfSequence    int64     `json:"as_of_sequence"` // last projected event sequence
}

// PolicyResponse represents a policy record for API queries.
type PolicyResponse struct {
	Holder       uuid.UUID `json:"holder"`
	Amount       int64     `json:"amount"`
	Price        int64     `json:"price"`
	IsActive     bool      `json:"is_active"`
	Version      int64     `json:"version"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// PoolResponse represents the pool record for API queries.
type PoolResponse struct {
	PremiumRate       int64 `json:"premium_rate"`
	FundCap           int64 `json:"fund_cap"`
	Balance           int64 `json:"balance"`
	PerUserFundingCap int64 `json:"per_user_funding_cap"`
	Frozen            bool  `json:"frozen"`
	AsOfSequence      int64 `json:"as_of_sequence"`
}

// EntryHistoryEntry represents a ledger entry for API queries.
type EntryHistoryEntry struct {
	EntryID   string `json:"entry_id"`
	BatchID   string `json:"batch_id"`
	EventRef  string `json:"event_ref"`
	Sequence  int64  `json:"sequence"`
	Account   string `json:"account"`
	Delta     int64  `json:"delta"`
	EntryType string `json:"entry_type"`
	Timestamp int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool             `json:"is_healthy"`
	HashChainBreaks  []int64          `json:"hash_chain_breaks,omitempty"`
	NegativeBalances []NegativeRecord `json:"negative_balances,omitempty"`
	PoolOverCap      bool             `json:"pool_over_cap,omitempty"`
}

// NegativeRecord identifies an account column that went below zero.
type NegativeRecord struct {
	Identity uuid.UUID `json:"identity"`
	Column   string    `json:"column"`
	Balance  int64     `json:"balance"`
}
