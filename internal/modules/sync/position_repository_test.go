package sync

import (
	"database/sql"
	"testing"

	"github.com/clubvest/brokersync/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestRepo(t *testing.T) *PositionRepository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A second pool connection would see a different in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.Schema)
	require.NoError(t, err)

	return NewPositionRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
}

func testRows(account, date string, symbols ...string) []PositionRow {
	rows := make([]PositionRow, 0, len(symbols))
	for _, sym := range symbols {
		rows = append(rows, PositionRow{
			AccountNumber: account,
			AsOfDate:      date,
			Symbol:        sym,
			Quantity:      floatp(10),
		})
	}
	return rows
}

func TestReplaceForAccountDateIsIdempotent(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31",
		testRows("ACC-1", "2026-08-31", "AAPL", "MSFT")))
	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31",
		testRows("ACC-1", "2026-08-31", "AAPL", "MSFT")))

	stored, err := repo.GetForAccountDate("ACC-1", "2026-08-31")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReplaceDoesNotTouchOtherAccountsOrDates(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31",
		testRows("ACC-1", "2026-08-31", "AAPL")))
	require.NoError(t, repo.ReplaceForAccountDate("ACC-2", "2026-08-31",
		testRows("ACC-2", "2026-08-31", "GOOG")))
	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-30",
		testRows("ACC-1", "2026-08-30", "TSLA")))

	// Replace ACC-1 today with a new set
	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31",
		testRows("ACC-1", "2026-08-31", "NVDA")))

	today, err := repo.GetForAccountDate("ACC-1", "2026-08-31")
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "NVDA", today[0].Symbol)

	other, err := repo.GetForAccountDate("ACC-2", "2026-08-31")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	yesterday, err := repo.GetForAccountDate("ACC-1", "2026-08-30")
	require.NoError(t, err)
	assert.Len(t, yesterday, 1)
}

func TestReplaceRollsBackOnInsertFailure(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31",
		testRows("ACC-1", "2026-08-31", "AAPL", "MSFT")))

	// Duplicate symbols violate the unique index mid-insert; the whole
	// transaction must roll back, keeping the prior two rows.
	bad := testRows("ACC-1", "2026-08-31", "NVDA", "NVDA")
	err := repo.ReplaceForAccountDate("ACC-1", "2026-08-31", bad)
	require.Error(t, err)

	stored, err := repo.GetForAccountDate("ACC-1", "2026-08-31")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "AAPL", stored[0].Symbol)
	assert.Equal(t, "MSFT", stored[1].Symbol)
}

func TestReplaceWithEmptySetClearsRows(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31",
		testRows("ACC-1", "2026-08-31", "AAPL")))
	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31", nil))

	stored, err := repo.GetForAccountDate("ACC-1", "2026-08-31")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestNullableFieldsRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)

	row := PositionRow{
		AccountNumber: "ACC-1",
		AsOfDate:      "2026-08-31",
		Symbol:        "AAPL",
		Description:   "Apple Inc",
		MarketValue:   floatp(1234.5),
		RawPayload:    `{"symbol":"AAPL"}`,
	}
	require.NoError(t, repo.ReplaceForAccountDate("ACC-1", "2026-08-31", []PositionRow{row}))

	stored, err := repo.GetForAccountDate("ACC-1", "2026-08-31")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	got := stored[0]
	assert.Equal(t, "Apple Inc", got.Description)
	assert.Nil(t, got.Quantity)
	assert.Nil(t, got.CostBasis)
	require.NotNil(t, got.MarketValue)
	assert.Equal(t, 1234.5, *got.MarketValue)
	assert.Equal(t, `{"symbol":"AAPL"}`, got.RawPayload)
}
