package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"coverpool/internal/ledger"
)

// ProjectionOutput mirrors the data projection workers need.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence  int64
	EventType string
	Payload   []byte // JSON-encoded source event
	Entries   []EntryDelta
	Timestamp int64
}

// EntryDelta is a simplified ledger entry for projection consumption.
type EntryDelta struct {
	Account   string
	Delta     int64
	EntryType string
}

// ProjectionWorker updates read-model tables from processed events.
// The projection channel is non-blocking with drop: if projections fall
// behind, they can be rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue: projections are eventually consistent
				// and can be rebuilt from the event log
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range output.Entries {
		if err := pw.applyEntry(ctx, tx, output.Sequence, e); err != nil {
			return fmt.Errorf("entry projection: %w", err)
		}
	}

	if err := pw.applyPolicyChange(ctx, tx, output); err != nil {
		return fmt.Errorf("policy projection: %w", err)
	}

	if err := pw.applyParamChange(ctx, tx, output); err != nil {
		return fmt.Errorf("pool projection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (id, last_sequence, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// applyEntry routes a ledger entry to the account or pool table.
func (pw *ProjectionWorker) applyEntry(ctx context.Context, tx *sql.Tx, seq int64, e EntryDelta) error {
	if e.Account == ledger.PoolPath {
		if e.EntryType == ledger.EntryTypePoolFreeze.String() {
			_, err := tx.ExecContext(ctx, `
				UPDATE projections.pool
				SET balance = 0, frozen = TRUE, updated_sequence = $1
				WHERE id = 1
			`, seq)
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.pool
			SET balance = balance + $1, updated_sequence = $2
			WHERE id = 1
		`, e.Delta, seq)
		return err
	}

	identity, kind, ok := ledger.ParseAccountPath(e.Account)
	if !ok {
		return fmt.Errorf("malformed account path: %q", e.Account)
	}

	column := "funding_balance"
	if kind == ledger.KindCoverage {
		column = "coverage_balance"
	}

	query := fmt.Sprintf(`
		INSERT INTO projections.accounts (identity, %s, updated_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity)
		DO UPDATE SET %s = projections.accounts.%s + $2, updated_sequence = $3
	`, column, column, column)

	_, err := tx.ExecContext(ctx, query, identity, e.Delta, seq)
	return err
}

// Policy-affecting event payloads. Only the fields the projection needs.
type policyPayload struct {
	CallerID      string `json:"CallerID"`
	BeneficiaryID string `json:"BeneficiaryID"`
	Amount        int64  `json:"Amount"`
	Premium       int64  `json:"Premium"`
}

func (pw *ProjectionWorker) applyPolicyChange(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	switch output.EventType {
	case "PolicyPurchase", "PolicyIncrease", "PartialClaim",
		"PolicyCancel", "PolicyPause", "PolicyDeactivate":
	default:
		return nil
	}

	var p policyPayload
	if err := json.Unmarshal(output.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal policy payload: %w", err)
	}

	switch output.EventType {
	case "PolicyPurchase":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.policies (holder, amount, price, is_active, version, updated_sequence)
			VALUES ($1, $2, $3, TRUE, 1, $4)
			ON CONFLICT (holder)
			DO UPDATE SET amount = $2, price = $3, is_active = TRUE,
			              version = projections.policies.version + 1, updated_sequence = $4
		`, p.CallerID, p.Amount, p.Premium, output.Sequence)
		return err

	case "PolicyIncrease":
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.policies
			SET amount = amount + $2, updated_sequence = $3
			WHERE holder = $1
		`, p.CallerID, p.Amount, output.Sequence)
		return err

	case "PartialClaim":
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.policies
			SET amount = amount - $2, updated_sequence = $3
			WHERE holder = $1
		`, p.CallerID, p.Amount, output.Sequence)
		return err

	default: // cancel, pause, deactivate
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.policies
			SET is_active = FALSE, updated_sequence = $2
			WHERE holder = $1
		`, p.CallerID, output.Sequence)
		return err
	}
}

type paramPayload struct {
	Param string `json:"Param"`
	Value int64  `json:"Value"`
}

func (pw *ProjectionWorker) applyParamChange(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	if output.EventType != "ParamUpdate" {
		return nil
	}

	var p paramPayload
	if err := json.Unmarshal(output.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal param payload: %w", err)
	}

	var column string
	switch p.Param {
	case "premium_rate":
		column = "premium_rate"
	case "fund_cap":
		column = "fund_cap"
	case "per_user_funding_cap":
		column = "per_user_funding_cap"
	default:
		return fmt.Errorf("unknown pool parameter: %q", p.Param)
	}

	query := fmt.Sprintf(`
		UPDATE projections.pool SET %s = $1, updated_sequence = $2 WHERE id = 1
	`, column)

	_, err := tx.ExecContext(ctx, query, p.Value, output.Sequence)
	return err
}

// EnsurePoolRow seeds the single-row pool projection on startup.
func EnsurePoolRow(ctx context.Context, db *sql.DB, pool ledger.Pool) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.pool (id, premium_rate, fund_cap, balance, per_user_funding_cap, frozen)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, pool.PremiumRate, pool.FundCap, pool.Balance, pool.PerUserFundingCap, pool.Frozen)
	return err
}

// RebuildBalances rebuilds account and pool balances from the entry log.
// Policy rows are rebuilt by core replay on restart, not from entries,
// because a purchase overwrites rather than accumulates.
func RebuildBalances(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.accounts`,
		`UPDATE projections.pool SET balance = 0, updated_sequence = 0 WHERE id = 1`,
		`UPDATE projections.watermark SET last_sequence = 0, updated_at = NOW() WHERE id = 1`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Funding balances
	if err := rebuildAccountColumn(ctx, db, "funding_balance", []string{
		ledger.EntryTypeFundingCredit.String(),
		ledger.EntryTypeFundingDebit.String(),
	}); err != nil {
		return fmt.Errorf("rebuild funding balances: %w", err)
	}

	// Coverage balances
	if err := rebuildAccountColumn(ctx, db, "coverage_balance", []string{
		ledger.EntryTypeCoverageCredit.String(),
		ledger.EntryTypeCoverageDebit.String(),
	}); err != nil {
		return fmt.Errorf("rebuild coverage balances: %w", err)
	}

	// Pool balance is the sum of all pool-path deltas
	_, err := db.ExecContext(ctx, `
		UPDATE projections.pool SET
			balance = COALESCE((
				SELECT SUM(delta) FROM event_log.entries WHERE account = $1
			), 0),
			updated_sequence = COALESCE((
				SELECT MAX(sequence) FROM event_log.entries WHERE account = $1
			), 0)
		WHERE id = 1
	`, ledger.PoolPath)
	if err != nil {
		return fmt.Errorf("rebuild pool balance: %w", err)
	}

	log.Println("INFO: balance projection rebuild complete")
	return nil
}

func rebuildAccountColumn(ctx context.Context, db *sql.DB, column string, entryTypes []string) error {
	placeholders := make([]string, len(entryTypes))
	args := make([]interface{}, len(entryTypes))
	for i, et := range entryTypes {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = et
	}

	// Account paths look like "user:{uuid}:{kind}"; the identity is the
	// middle segment.
	query := fmt.Sprintf(`
		INSERT INTO projections.accounts (identity, %s, updated_sequence)
		SELECT
			CAST(split_part(account, ':', 2) AS UUID) AS identity,
			SUM(delta) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.entries
		WHERE entry_type IN (%s)
		GROUP BY split_part(account, ':', 2)
		ON CONFLICT (identity) DO UPDATE
			SET %s = EXCLUDED.%s,
			    updated_sequence = GREATEST(projections.accounts.updated_sequence, EXCLUDED.updated_sequence)
	`, column, strings.Join(placeholders, ", "), column, column)

	_, err := db.ExecContext(ctx, query, args...)
	return err
}
