package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// QueryService provides read-only access to projection tables. Reads are
// served from PostgreSQL, not from the core's in-memory state, so every
// response carries as_of_sequence for freshness semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetAccount returns a participant's funding and coverage balances.
// An identity with no projected rows reads as a zero account.
func (qs *QueryService) GetAccount(ctx context.Context, identity uuid.UUID) (*AccountResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &AccountResponse{
		Identity:     identity,
		AsOfSequence: asOfSeq,
	}

	err = qs.db.QueryRowContext(ctx, `
		SELECT funding_balance, coverage_balance
		FROM projections.accounts
		WHERE identity = $1
	`, identity).Scan(&resp.FundingBalance, &resp.CoverageBalance)
	if err == sql.ErrNoRows {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetPolicy returns the holder's policy record. A holder who never
// purchased reads as a zero record with is_active=false.
func (qs *QueryService) GetPolicy(ctx context.Context, holder uuid.UUID) (*PolicyResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &PolicyResponse{
		Holder:       holder,
		AsOfSequence: asOfSeq,
	}

	err = qs.db.QueryRowContext(ctx, `
		SELECT amount, price, is_active, version
		FROM projections.policies
		WHERE holder = $1
	`, holder).Scan(&resp.Amount, &resp.Price, &resp.IsActive, &resp.Version)
	if err == sql.ErrNoRows {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetPool returns the pool record.
func (qs *QueryService) GetPool(ctx context.Context) (*PoolResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &PoolResponse{AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT premium_rate, fund_cap, balance, per_user_funding_cap, frozen
		FROM projections.pool
		WHERE id = 1
	`).Scan(&resp.PremiumRate, &resp.FundCap, &resp.Balance, &resp.PerUserFundingCap, &resp.Frozen)
	if err == sql.ErrNoRows {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetEntryHistory returns ledger entries touching a participant's accounts,
// newest first, with cursor-based pagination.
func (qs *QueryService) GetEntryHistory(
	ctx context.Context,
	identity uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]EntryHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", identity)

	query := `
		SELECT entry_id, batch_id, event_ref, sequence,
		       account, delta, entry_type, timestamp
		FROM event_log.entries
		WHERE account LIKE $1
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EntryHistoryEntry
	for rows.Next() {
		var e EntryHistoryEntry
		if err := rows.Scan(
			&e.EntryID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.Account, &e.Delta, &e.EntryType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetPoolHistory returns pool balance movements, newest first.
func (qs *QueryService) GetPoolHistory(
	ctx context.Context,
	limit int,
	afterSequence *int64,
) ([]EntryHistoryEntry, error) {
	query := `
		SELECT entry_id, batch_id, event_ref, sequence,
		       account, delta, entry_type, timestamp
		FROM event_log.entries
		WHERE account = 'pool:balance'
	`
	args := []interface{}{}
	argIdx := 1

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EntryHistoryEntry
	for rows.Next() {
		var e EntryHistoryEntry
		if err := rows.Scan(
			&e.EntryID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.Account, &e.Delta, &e.EntryType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity and balance invariants.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Check hash chain continuity
	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Balances must never go negative
	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT identity, 'funding_balance', funding_balance
		FROM projections.accounts WHERE funding_balance < 0
		UNION ALL
		SELECT identity, 'coverage_balance', coverage_balance
		FROM projections.accounts WHERE coverage_balance < 0
		LIMIT 20
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var rec NegativeRecord
		if err := balanceRows.Scan(&rec.Identity, &rec.Column, &rec.Balance); err != nil {
			return nil, err
		}
		report.NegativeBalances = append(report.NegativeBalances, rec)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	// Pool must stay within [0, fund_cap]
	var overCap bool
	err = qs.db.QueryRowContext(ctx, `
		SELECT balance < 0 OR balance > fund_cap
		FROM projections.pool WHERE id = 1
	`).Scan(&overCap)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	report.PoolOverCap = overCap

	report.IsHealthy = len(report.HashChainBreaks) == 0 &&
		len(report.NegativeBalances) == 0 &&
		!report.PoolOverCap
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE id = 1
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
