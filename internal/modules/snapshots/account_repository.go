package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AccountRepository handles the account registry
type AccountRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB, log zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		db:  db,
		log: log.With().Str("repo", "accounts").Logger(),
	}
}

// Upsert registers an account by account number, refreshing its type and
// display name if it already exists. Returns the account's row ID.
func (r *AccountRepository) Upsert(accountNumber, accountType, displayName string) (int64, error) {
	now := time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO accounts (account_number, account_type, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_number) DO UPDATE SET
			account_type = excluded.account_type,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		accountNumber, nullString(accountType), nullString(displayName), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert account: %w", err)
	}

	var id int64
	err = r.db.QueryRow(`SELECT id FROM accounts WHERE account_number = ?`, accountNumber).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read account id: %w", err)
	}

	return id, nil
}

// GetAll returns all registered accounts ordered by account number
func (r *AccountRepository) GetAll() ([]Account, error) {
	rows, err := r.db.Query(`
		SELECT id, account_number, account_type, display_name, created_at, updated_at
		FROM accounts ORDER BY account_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		var accountType, displayName sql.NullString
		if err := rows.Scan(&a.ID, &a.AccountNumber, &accountType, &displayName, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.AccountType = accountType.String
		a.DisplayName = displayName.String
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

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
