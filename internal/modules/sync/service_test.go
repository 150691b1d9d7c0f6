package sync

import (
	"errors"
	"testing"

	"github.com/clubvest/brokersync/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker returns canned accounts or an error
type fakeBroker struct {
	accounts []domain.BrokerAccount
	err      error
}

func (f *fakeBroker) GetAccountsWithPositions() ([]domain.BrokerAccount, error) {
	return f.accounts, f.err
}

// fakeStore records calls and can fail the replace for chosen accounts
type fakeStore struct {
	stored      map[string][]PositionRow
	failReplace map[string]error
	restored    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stored:      make(map[string][]PositionRow),
		failReplace: make(map[string]error),
	}
}

func (f *fakeStore) GetForAccountDate(account, date string) ([]PositionRow, error) {
	return f.stored[account+"|"+date], nil
}

func (f *fakeStore) ReplaceForAccountDate(account, date string, rows []PositionRow) error {
	if err := f.failReplace[account]; err != nil {
		return err
	}
	f.stored[account+"|"+date] = rows
	return nil
}

func (f *fakeStore) Restore(account, date string, rows []PositionRow) error {
	f.restored = append(f.restored, account)
	f.stored[account+"|"+date] = rows
	return nil
}

func testService(broker domain.BrokerClient, store PositionStore) *Service {
	return NewService(broker, store, zerolog.New(nil).Level(zerolog.Disabled))
}

func brokerAccount(number string, symbols ...string) domain.BrokerAccount {
	positions := make([]domain.BrokerPosition, 0, len(symbols))
	for _, sym := range symbols {
		positions = append(positions, domain.BrokerPosition{Symbol: sym, Quantity: floatp(1)})
	}
	return domain.BrokerAccount{AccountNumber: number, Positions: positions}
}

func TestSyncAllAccountsHappyPath(t *testing.T) {
	broker := &fakeBroker{accounts: []domain.BrokerAccount{
		brokerAccount("ACC-1", "AAPL", "MSFT"),
		brokerAccount("ACC-2", "GOOG"),
	}}
	store := newFakeStore()

	result, err := testService(broker, store).SyncAllAccounts("2026-08-31")
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, "2026-08-31", result.AsOfDate)
	assert.Equal(t, 2, result.AccountsTotal)
	assert.Equal(t, 2, result.AccountsSynced)
	assert.Equal(t, 3, result.PositionsWritten)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.LastSyncAt.IsZero())
	assert.Len(t, store.stored["ACC-1|2026-08-31"], 2)
	assert.Len(t, store.stored["ACC-2|2026-08-31"], 1)
}

func TestSyncDefaultsToToday(t *testing.T) {
	broker := &fakeBroker{accounts: []domain.BrokerAccount{brokerAccount("ACC-1", "AAPL")}}
	store := newFakeStore()

	result, err := testService(broker, store).SyncAllAccounts("")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, result.AsOfDate)
}

func TestSyncFetchFailureAbortsRun(t *testing.T) {
	broker := &fakeBroker{err: errors.New("network down")}
	store := newFakeStore()

	result, err := testService(broker, store).SyncAllAccounts("2026-08-31")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, store.stored)
}

func TestSyncAccountFailureIsIsolated(t *testing.T) {
	broker := &fakeBroker{accounts: []domain.BrokerAccount{
		brokerAccount("ACC-1", "AAPL"),
		brokerAccount("ACC-2", "GOOG"),
		brokerAccount("ACC-3", "TSLA"),
	}}
	store := newFakeStore()
	store.failReplace["ACC-2"] = errors.New("disk full")

	result, err := testService(broker, store).SyncAllAccounts("2026-08-31")
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, 3, result.AccountsTotal)
	assert.Equal(t, 2, result.AccountsSynced)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ACC-2")

	require.Len(t, result.PerAccount, 3)
	assert.Equal(t, StatusOK, result.PerAccount[0].Status)
	assert.Equal(t, StatusError, result.PerAccount[1].Status)
	assert.Equal(t, StatusOK, result.PerAccount[2].Status)

	// Accounts after the failing one were still written
	assert.Len(t, store.stored["ACC-3|2026-08-31"], 1)
}

func TestSyncRestoresPriorRowsOnFailure(t *testing.T) {
	prior := testRows("ACC-1", "2026-08-31", "OLD")
	broker := &fakeBroker{accounts: []domain.BrokerAccount{brokerAccount("ACC-1", "AAPL")}}
	store := newFakeStore()
	store.stored["ACC-1|2026-08-31"] = prior
	store.failReplace["ACC-1"] = errors.New("insert failed")

	result, err := testService(broker, store).SyncAllAccounts("2026-08-31")
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, []string{"ACC-1"}, store.restored)
	assert.Equal(t, prior, store.stored["ACC-1|2026-08-31"])
}

func TestSyncAccountWithNoPositionsSucceedsWithZero(t *testing.T) {
	broker := &fakeBroker{accounts: []domain.BrokerAccount{brokerAccount("ACC-1")}}
	store := newFakeStore()

	result, err := testService(broker, store).SyncAllAccounts("2026-08-31")
	require.NoError(t, err)

	assert.True(t, result.OK)
	require.Len(t, result.PerAccount, 1)
	assert.Equal(t, StatusOK, result.PerAccount[0].Status)
	assert.Equal(t, 0, result.PerAccount[0].PositionsCount)
}

func TestSyncReportsSkippedPositions(t *testing.T) {
	account := brokerAccount("ACC-1", "AAPL")
	account.Positions = append(account.Positions, domain.BrokerPosition{})
	broker := &fakeBroker{accounts: []domain.BrokerAccount{account}}
	store := newFakeStore()

	result, err := testService(broker, store).SyncAllAccounts("2026-08-31")
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 1, result.PerAccount[0].SkippedPositions)
	assert.Equal(t, 1, result.PerAccount[0].PositionsCount)
}
