package snapshots

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/clubvest/brokersync/internal/database"
	"github.com/clubvest/brokersync/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type fakeBroker struct {
	accounts []domain.BrokerAccount
	err      error
}

func (f *fakeBroker) GetAccountsWithPositions() ([]domain.BrokerAccount, error) {
	return f.accounts, f.err
}

func floatp(v float64) *float64 { return &v }

func setupTestService(t *testing.T, broker domain.BrokerClient) (*Service, *AccountRepository, *SnapshotRepository) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A second pool connection would see a different in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.Schema)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	accounts := NewAccountRepository(db, log)
	snaps := NewSnapshotRepository(db, log)
	return NewService(broker, accounts, snaps, log), accounts, snaps
}

func balanceAccount(number string, liquidation float64) domain.BrokerAccount {
	return domain.BrokerAccount{
		AccountNumber: number,
		AccountType:   "CASH",
		Balances: domain.BrokerBalances{
			LiquidationValue: floatp(liquidation),
			CashBalance:      floatp(100),
		},
	}
}

func TestCaptureSnapshotsRegistersAndStores(t *testing.T) {
	broker := &fakeBroker{accounts: []domain.BrokerAccount{
		balanceAccount("ACC-1", 5000),
		balanceAccount("ACC-2", 7000),
	}}
	svc, accountRepo, _ := setupTestService(t, broker)

	result, err := svc.CaptureSnapshots("2026-08-31")
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 2, result.Captured)
	assert.Equal(t, 0, result.Duplicates)

	registered, err := accountRepo.GetAll()
	require.NoError(t, err)
	assert.Len(t, registered, 2)

	latest, err := svc.GetLatestSnapshots()
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.NotNil(t, latest[0].LiquidationValue)
	assert.Equal(t, 5000.0, *latest[0].LiquidationValue)
}

func TestCaptureDuplicateDateIsNoOp(t *testing.T) {
	broker := &fakeBroker{accounts: []domain.BrokerAccount{balanceAccount("ACC-1", 5000)}}
	svc, _, _ := setupTestService(t, broker)

	_, err := svc.CaptureSnapshots("2026-08-31")
	require.NoError(t, err)

	// Same day, different balance: the first snapshot must survive
	broker.accounts = []domain.BrokerAccount{balanceAccount("ACC-1", 9999)}
	result, err := svc.CaptureSnapshots("2026-08-31")
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 0, result.Captured)
	assert.Equal(t, 1, result.Duplicates)
	assert.True(t, result.PerAccount[0].Duplicate)

	latest, err := svc.GetLatestSnapshots()
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 5000.0, *latest[0].LiquidationValue)
}

func TestLatestPerAccountReduction(t *testing.T) {
	broker := &fakeBroker{}
	svc, _, _ := setupTestService(t, broker)

	for _, day := range []string{"2026-08-28", "2026-08-29", "2026-08-31"} {
		broker.accounts = []domain.BrokerAccount{balanceAccount("ACC-1", 1000)}
		_, err := svc.CaptureSnapshots(day)
		require.NoError(t, err)
	}
	broker.accounts = []domain.BrokerAccount{balanceAccount("ACC-2", 2000)}
	_, err := svc.CaptureSnapshots("2026-08-30")
	require.NoError(t, err)

	latest, err := svc.GetLatestSnapshots()
	require.NoError(t, err)
	require.Len(t, latest, 2)

	assert.Equal(t, "ACC-1", latest[0].AccountNumber)
	assert.Equal(t, "2026-08-31", latest[0].SnapshotDate)
	assert.Equal(t, "ACC-2", latest[1].AccountNumber)
	assert.Equal(t, "2026-08-30", latest[1].SnapshotDate)
}

func TestCaptureMixedDuplicateAndNew(t *testing.T) {
	broker := &fakeBroker{accounts: []domain.BrokerAccount{balanceAccount("ACC-1", 1)}}
	svc, _, _ := setupTestService(t, broker)

	_, err := svc.CaptureSnapshots("2026-08-31")
	require.NoError(t, err)

	broker.accounts = []domain.BrokerAccount{
		balanceAccount("ACC-1", 1),
		balanceAccount("ACC-2", 2),
	}
	result, err := svc.CaptureSnapshots("2026-08-31")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Captured)
	assert.True(t, result.OK)
}

func TestCaptureFetchFailureAbortsRun(t *testing.T) {
	broker := &fakeBroker{err: errors.New("network down")}
	svc, _, _ := setupTestService(t, broker)

	result, err := svc.CaptureSnapshots("2026-08-31")
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestUpsertRefreshesAccountMetadata(t *testing.T) {
	_, accountRepo, _ := setupTestService(t, &fakeBroker{})

	id1, err := accountRepo.Upsert("ACC-1", "CASH", "Pool A")
	require.NoError(t, err)

	id2, err := accountRepo.Upsert("ACC-1", "MARGIN", "Pool A renamed")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	all, err := accountRepo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "MARGIN", all[0].AccountType)
	assert.Equal(t, "Pool A renamed", all[0].DisplayName)
}
