package snapshots

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrDuplicateSnapshot is returned when a snapshot already exists for the
// (account, date) pair. Callers treat it as a no-op, not a failure.
var ErrDuplicateSnapshot = errors.New("snapshot already exists for this account and date")

// SnapshotRepository handles append-only balance snapshots
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Insert appends one snapshot. The UNIQUE(account_id, snapshot_date)
// constraint enforces append-only semantics; a violation surfaces as
// ErrDuplicateSnapshot.
func (r *SnapshotRepository) Insert(snap SnapshotRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO snapshots
		(account_id, snapshot_date, liquidation_value, cash_balance,
		 money_market_value, long_market_value, raw_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.AccountID,
		snap.SnapshotDate,
		nullFloat(snap.LiquidationValue),
		nullFloat(snap.CashBalance),
		nullFloat(snap.MoneyMarketValue),
		nullFloat(snap.LongMarketValue),
		nullString(snap.RawPayload),
		time.Now().Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateSnapshot
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// GetLatestPerAccount returns each account's most recent snapshot,
// ordered by account number. Accounts that have never been snapshotted
// are absent from the result.
func (r *SnapshotRepository) GetLatestPerAccount() ([]SnapshotRecord, error) {
	rows, err := r.db.Query(`
		SELECT s.id, s.account_id, a.account_number, s.snapshot_date,
		       s.liquidation_value, s.cash_balance, s.money_market_value,
		       s.long_market_value, s.raw_payload, s.created_at
		FROM snapshots s
		JOIN accounts a ON a.id = s.account_id
		JOIN (
			SELECT account_id, MAX(snapshot_date) AS max_date
			FROM snapshots
			GROUP BY account_id
		) latest ON latest.account_id = s.account_id AND latest.max_date = s.snapshot_date
		ORDER BY a.account_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetForAccount returns all snapshots for one account, newest first
func (r *SnapshotRepository) GetForAccount(accountID int64, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 90
	}

	rows, err := r.db.Query(`
		SELECT s.id, s.account_id, a.account_number, s.snapshot_date,
		       s.liquidation_value, s.cash_balance, s.money_market_value,
		       s.long_market_value, s.raw_payload, s.created_at
		FROM snapshots s
		JOIN accounts a ON a.id = s.account_id
		WHERE s.account_id = ?
		ORDER BY s.snapshot_date DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]SnapshotRecord, error) {
	var snapshots []SnapshotRecord
	for rows.Next() {
		var s SnapshotRecord
		var liq, cash, mm, long sql.NullFloat64
		var raw sql.NullString

		err := rows.Scan(&s.ID, &s.AccountID, &s.AccountNumber, &s.SnapshotDate,
			&liq, &cash, &mm, &long, &raw, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.LiquidationValue = floatPtr(liq)
		s.CashBalance = floatPtr(cash)
		s.MoneyMarketValue = floatPtr(mm)
		s.LongMarketValue = floatPtr(long)
		s.RawPayload = raw.String
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
