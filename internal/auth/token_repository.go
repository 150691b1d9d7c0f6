package auth

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/clubvest/brokersync/internal/database"
	"github.com/rs/zerolog"
)

// TokenRepository persists the brokerage credential in the broker_tokens
// table. Exactly one row is current at a time; superseded rows are kept as
// append-only history.
type TokenRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sql.DB, log zerolog.Logger) *TokenRepository {
	return &TokenRepository{
		db:  db,
		log: log.With().Str("repo", "tokens").Logger(),
	}
}

// Get returns the current credential, or nil if none is stored.
func (r *TokenRepository) Get() (*Credential, error) {
	query := `SELECT access_token, refresh_token, token_type, scope, expires_at
		FROM broker_tokens WHERE current = 1 ORDER BY id DESC LIMIT 1`

	var cred Credential
	var scope sql.NullString
	var expiresAt int64
	err := r.db.QueryRow(query).Scan(
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.TokenType,
		&scope,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current token: %w", err)
	}

	if scope.Valid {
		cred.Scope = scope.String
	}
	cred.ExpiresAt = time.Unix(expiresAt, 0)

	return &cred, nil
}

// Save stores a new credential as the current one, demoting any prior row
// to history. The replacement is wholesale: the new row carries the full
// access/refresh pair.
func (r *TokenRepository) Save(cred Credential) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE broker_tokens SET current = 0 WHERE current = 1`); err != nil {
			return fmt.Errorf("failed to demote current token: %w", err)
		}

		_, err := tx.Exec(`
			INSERT INTO broker_tokens (access_token, refresh_token, token_type, scope, expires_at, current, created_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)`,
			cred.AccessToken,
			cred.RefreshToken,
			cred.TokenType,
			nullString(cred.Scope),
			cred.ExpiresAt.Unix(),
			time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Time("expires_at", cred.ExpiresAt).Msg("Credential stored")
	return nil
}

// Clear removes the current credential, forcing re-authorization. History
// rows are untouched.
func (r *TokenRepository) Clear() error {
	if _, err := r.db.Exec(`UPDATE broker_tokens SET current = 0 WHERE current = 1`); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	r.log.Warn().Msg("Credential cleared, re-authorization required")
	return nil
}

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}
