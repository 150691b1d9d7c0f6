package sync

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/clubvest/brokersync/internal/database"
	"github.com/rs/zerolog"
)

// PositionRepository handles position storage. The replace operation runs
// delete-then-insert inside a single transaction, so a failed insert rolls
// back to the prior row set instead of leaving the account empty.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

// GetForAccountDate returns the stored rows for one (account, date) pair
func (r *PositionRepository) GetForAccountDate(accountNumber, asOfDate string) ([]PositionRow, error) {
	query := `SELECT account_number, as_of_date, symbol, description, asset_type,
		quantity, average_price, market_value, cost_basis, day_profit_loss, raw_payload
		FROM positions WHERE account_number = ? AND as_of_date = ?
		ORDER BY symbol`

	rows, err := r.db.Query(query, accountNumber, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var result []PositionRow
	for rows.Next() {
		row, err := scanPositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return result, nil
}

// ReplaceForAccountDate atomically replaces the row set for one
// (account, date) pair. On any failure the transaction rolls back and the
// prior rows remain in place.
func (r *PositionRepository) ReplaceForAccountDate(accountNumber, asOfDate string, newRows []PositionRow) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM positions WHERE account_number = ? AND as_of_date = ?`,
			accountNumber, asOfDate,
		); err != nil {
			return fmt.Errorf("failed to delete positions: %w", err)
		}
		return insertRows(tx, newRows)
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("account", accountNumber).
		Str("as_of_date", asOfDate).
		Int("rows", len(newRows)).
		Msg("Position set replaced")
	return nil
}

// Restore writes back a previously read row set. Used as a second line of
// defense when a replace fails for a reason the transaction rollback could
// not cover.
func (r *PositionRepository) Restore(accountNumber, asOfDate string, rows []PositionRow) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM positions WHERE account_number = ? AND as_of_date = ?`,
			accountNumber, asOfDate,
		); err != nil {
			return fmt.Errorf("failed to clear before restore: %w", err)
		}
		return insertRows(tx, rows)
	})
	if err != nil {
		return err
	}

	r.log.Warn().
		Str("account", accountNumber).
		Str("as_of_date", asOfDate).
		Int("rows", len(rows)).
		Msg("Prior position set restored after failed sync")
	return nil
}

func insertRows(tx *sql.Tx, rows []PositionRow) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO positions
		(account_number, as_of_date, symbol, description, asset_type,
		 quantity, average_price, market_value, cost_basis, day_profit_loss,
		 raw_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, row := range rows {
		_, err := stmt.Exec(
			row.AccountNumber,
			row.AsOfDate,
			row.Symbol,
			nullString(row.Description),
			nullString(row.AssetType),
			nullFloat(row.Quantity),
			nullFloat(row.AveragePrice),
			nullFloat(row.MarketValue),
			nullFloat(row.CostBasis),
			nullFloat(row.DayProfitLoss),
			nullString(row.RawPayload),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", row.Symbol, err)
		}
	}

	return nil
}

func scanPositionRow(rows *sql.Rows) (PositionRow, error) {
	var row PositionRow
	var description, assetType, rawPayload sql.NullString
	var quantity, averagePrice, marketValue, costBasis, dayProfitLoss sql.NullFloat64

	err := rows.Scan(
		&row.AccountNumber,
		&row.AsOfDate,
		&row.Symbol,
		&description,
		&assetType,
		&quantity,
		&averagePrice,
		&marketValue,
		&costBasis,
		&dayProfitLoss,
		&rawPayload,
	)
	if err != nil {
		return row, err
	}

	if description.Valid {
		row.Description = description.String
	}
	if assetType.Valid {
		row.AssetType = assetType.String
	}
	if rawPayload.Valid {
		row.RawPayload = rawPayload.String
	}
	row.Quantity = floatPtr(quantity)
	row.AveragePrice = floatPtr(averagePrice)
	row.MarketValue = floatPtr(marketValue)
	row.CostBasis = floatPtr(costBasis)
	row.DayProfitLoss = floatPtr(dayProfitLoss)

	return row, nil
}

// Helper functions for nullable types

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

func nullFloat(val *float64) sql.NullFloat64 {
	if val == nil {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: *val, Valid: true}
}

func floatPtr(val sql.NullFloat64) *float64 {
	if !val.Valid {
		return nil
	}
	f := val.Float64
	return &f
}
