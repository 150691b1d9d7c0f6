package snapshots

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubvest/brokersync/internal/domain"
	"github.com/rs/zerolog"
)

// AccountStore is the account registry surface the snapshot service needs
type AccountStore interface {
	Upsert(accountNumber, accountType, displayName string) (int64, error)
	GetAll() ([]Account, error)
}

// SnapshotStore is the snapshot storage surface the service needs
type SnapshotStore interface {
	Insert(snap SnapshotRecord) error
	GetLatestPerAccount() ([]SnapshotRecord, error)
	GetForAccount(accountID int64, limit int) ([]SnapshotRecord, error)
}

// Service captures end-of-day balance snapshots across all linked accounts
type Service struct {
	broker    domain.BrokerClient
	accounts  AccountStore
	snapshots SnapshotStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a new snapshot service
func NewService(broker domain.BrokerClient, accounts AccountStore, snapshots SnapshotStore, log zerolog.Logger) *Service {
	return &Service{
		broker:    broker,
		accounts:  accounts,
		snapshots: snapshots,
		log:       log.With().Str("component", "snapshot-capture").Logger(),
		now:       time.Now,
	}
}

// CaptureSnapshots records one balance snapshot per linked account for
// snapshotDate (empty means today). Each account is registered on sight,
// so the registry stays current even when capture fails. An account that
// already has a snapshot for the date is reported as a duplicate and left
// untouched. A failure on one account never stops the others.
func (s *Service) CaptureSnapshots(snapshotDate string) (*CaptureResult, error) {
	if snapshotDate == "" {
		snapshotDate = s.now().Format("2006-01-02")
	}

	result := &CaptureResult{
		SnapshotDate: snapshotDate,
		Errors:       []string{},
	}

	brokerAccounts, err := s.broker.GetAccountsWithPositions()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to fetch accounts for snapshot")
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	result.AccountsTotal = len(brokerAccounts)
	result.PerAccount = make([]CaptureAccountResult, 0, len(brokerAccounts))

	for _, account := range brokerAccounts {
		ar := s.captureAccount(account, snapshotDate)
		result.PerAccount = append(result.PerAccount, ar)

		switch ar.Status {
		case StatusCaptured:
			result.Captured++
		case StatusDuplicate:
			result.Duplicates++
		case StatusError:
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %s", ar.AccountNumber, ar.Error))
		}
	}

	result.OK = len(result.Errors) == 0

	s.log.Info().
		Str("snapshot_date", snapshotDate).
		Int("accounts", result.AccountsTotal).
		Int("captured", result.Captured).
		Int("duplicates", result.Duplicates).
		Bool("ok", result.OK).
		Msg("Snapshot capture finished")

	return result, nil
}

func (s *Service) captureAccount(account domain.BrokerAccount, snapshotDate string) CaptureAccountResult {
	ar := CaptureAccountResult{AccountNumber: account.AccountNumber}

	accountID, err := s.accounts.Upsert(account.AccountNumber, account.AccountType, account.DisplayName)
	if err != nil {
		ar.Status = StatusError
		ar.Error = fmt.Sprintf("failed to register account: %v", err)
		return ar
	}

	err = s.snapshots.Insert(SnapshotRecord{
		AccountID:        accountID,
		SnapshotDate:     snapshotDate,
		LiquidationValue: account.Balances.LiquidationValue,
		CashBalance:      account.Balances.CashBalance,
		MoneyMarketValue: account.Balances.MoneyMarketValue,
		LongMarketValue:  account.Balances.LongMarketValue,
		RawPayload:       string(account.Balances.Raw),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSnapshot) {
			ar.Status = StatusDuplicate
			ar.Duplicate = true
			return ar
		}
		ar.Status = StatusError
		ar.Error = fmt.Sprintf("failed to store snapshot: %v", err)
		return ar
	}

	ar.Status = StatusCaptured
	return ar
}

// GetLatestSnapshots returns each account's most recent snapshot
func (s *Service) GetLatestSnapshots() ([]SnapshotRecord, error) {
	return s.snapshots.GetLatestPerAccount()
}

// GetAccountHistory returns an account's snapshot history, newest first
func (s *Service) GetAccountHistory(accountID int64, limit int) ([]SnapshotRecord, error) {
	return s.snapshots.GetForAccount(accountID, limit)
}

// GetAccounts returns all registered accounts
func (s *Service) GetAccounts() ([]Account, error) {
	return s.accounts.GetAll()
}
