package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/clubvest/brokersync/internal/database"
	"github.com/rs/zerolog"
)

// StateRepository manages single-use OAuth CSRF states. A state is bound to
// the redirect target chosen when the authorization URL was generated, and
// is deleted the first time it is looked up, successfully or not.
type StateRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *sql.DB, log zerolog.Logger) *StateRepository {
	return &StateRepository{
		db:  db,
		log: log.With().Str("repo", "oauth_states").Logger(),
	}
}

// Create generates a cryptographically random state bound to redirectURI
// with the given time-to-live, and returns the state value.
func (r *StateRepository) Create(redirectURI string, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(buf)

	now := time.Now()
	_, err := r.db.Exec(`
		INSERT INTO oauth_states (state, redirect_uri, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		state, redirectURI, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return state, nil
}

// Consume validates and invalidates a state in one step. The row is deleted
// whether or not validation succeeds, so a state can never be accepted twice.
// Returns the bound redirect URI and whether the state was live and unexpired.
func (r *StateRepository) Consume(state string) (string, bool, error) {
	var redirectURI string
	var valid bool

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var expiresAt int64
		err := tx.QueryRow(
			`SELECT redirect_uri, expires_at FROM oauth_states WHERE state = ?`, state,
		).Scan(&redirectURI, &expiresAt)
		if err == sql.ErrNoRows {
			return nil // unknown state, valid stays false
		}
		if err != nil {
			return fmt.Errorf("failed to query state: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM oauth_states WHERE state = ?`, state); err != nil {
			return fmt.Errorf("failed to consume state: %w", err)
		}

		valid = time.Now().Unix() < expiresAt
		return nil
	})
	if err != nil {
		return "", false, err
	}

	if !valid {
		redirectURI = ""
	}
	return redirectURI, valid, nil
}

// PurgeExpired removes expired states. Called opportunistically; losing an
// expired state early is harmless since Consume checks expiry anyway.
func (r *StateRepository) PurgeExpired() error {
	res, err := r.db.Exec(`DELETE FROM oauth_states WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to purge expired states: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.log.Debug().Int64("purged", n).Msg("Expired OAuth states removed")
	}
	return nil
}
