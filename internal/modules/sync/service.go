package sync

import (
	"fmt"
	"time"

	"github.com/clubvest/brokersync/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PositionStore is the storage surface the sync engine needs
type PositionStore interface {
	GetForAccountDate(accountNumber, asOfDate string) ([]PositionRow, error)
	ReplaceForAccountDate(accountNumber, asOfDate string, rows []PositionRow) error
	Restore(accountNumber, asOfDate string, rows []PositionRow) error
}

// Service orchestrates position synchronization runs. Accounts are
// processed strictly one at a time; a failure in one account never stops
// the others.
type Service struct {
	broker    domain.BrokerClient
	positions PositionStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a new sync service
func NewService(broker domain.BrokerClient, positions PositionStore, log zerolog.Logger) *Service {
	return &Service{
		broker:    broker,
		positions: positions,
		log:       log.With().Str("component", "position-sync").Logger(),
		now:       time.Now,
	}
}

// SyncAllAccounts fetches every linked brokerage account and replaces the
// stored position set for each one under asOfDate. An empty asOfDate means
// today. Re-running with the same date is idempotent: each run replaces
// what the previous run wrote.
//
// A fetch failure aborts the whole run (no accounts were touched yet). A
// per-account storage failure is recorded in the result and the run
// continues with the next account.
func (s *Service) SyncAllAccounts(asOfDate string) (*SyncResult, error) {
	if asOfDate == "" {
		asOfDate = s.now().Format("2006-01-02")
	}

	result := &SyncResult{
		RunID:    uuid.New().String(),
		AsOfDate: asOfDate,
		Errors:   []string{},
	}

	s.log.Info().
		Str("run_id", result.RunID).
		Str("as_of_date", asOfDate).
		Msg("Starting position sync run")

	accounts, err := s.broker.GetAccountsWithPositions()
	if err != nil {
		s.log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to fetch accounts")
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	result.AccountsTotal = len(accounts)
	result.PerAccount = make([]AccountResult, 0, len(accounts))

	for _, account := range accounts {
		ar := s.syncAccount(account, asOfDate)
		result.PerAccount = append(result.PerAccount, ar)

		if ar.Status == StatusOK {
			result.AccountsSynced++
			result.PositionsWritten += ar.PositionsCount
		} else {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %s", ar.AccountNumber, ar.Error))
		}
	}

	result.OK = len(result.Errors) == 0
	result.LastSyncAt = s.now().UTC()

	s.log.Info().
		Str("run_id", result.RunID).
		Int("accounts", result.AccountsTotal).
		Int("synced", result.AccountsSynced).
		Int("positions", result.PositionsWritten).
		Bool("ok", result.OK).
		Msg("Position sync run finished")

	return result, nil
}

// syncAccount replaces one account's stored positions for asOfDate. The
// prior row set is read first so it can be restored if the transactional
// replace fails in a way that still mutated storage.
func (s *Service) syncAccount(account domain.BrokerAccount, asOfDate string) AccountResult {
	ar := AccountResult{AccountNumber: account.AccountNumber, Status: StatusOK}

	normalized := NormalizePositions(account.AccountNumber, asOfDate, account.Positions)
	ar.SkippedPositions = normalized.Skipped
	if normalized.Skipped > 0 {
		s.log.Warn().
			Str("account", account.AccountNumber).
			Int("skipped", normalized.Skipped).
			Msg("Positions without a usable symbol skipped")
	}

	prior, err := s.positions.GetForAccountDate(account.AccountNumber, asOfDate)
	if err != nil {
		ar.Status = StatusError
		ar.Error = fmt.Sprintf("failed to read existing positions: %v", err)
		return ar
	}

	if err := s.positions.ReplaceForAccountDate(account.AccountNumber, asOfDate, normalized.Rows); err != nil {
		s.log.Error().Err(err).
			Str("account", account.AccountNumber).
			Msg("Position replace failed, restoring prior set")

		if restoreErr := s.positions.Restore(account.AccountNumber, asOfDate, prior); restoreErr != nil {
			s.log.Error().Err(restoreErr).
				Str("account", account.AccountNumber).
				Msg("Restore of prior positions also failed")
		}

		ar.Status = StatusError
		ar.Error = fmt.Sprintf("failed to store positions: %v", err)
		return ar
	}

	ar.PositionsCount = len(normalized.Rows)
	return ar
}
