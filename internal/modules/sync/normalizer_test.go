package sync

import (
	"testing"

	"github.com/clubvest/brokersync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatp(v float64) *float64 { return &v }

func TestResolveSymbolPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		position domain.BrokerPosition
		want     string
		usable   bool
	}{
		{
			name:     "symbol wins over everything",
			position: domain.BrokerPosition{Symbol: "aapl", CUSIP: "037833100", Description: "Apple Inc"},
			want:     "AAPL",
			usable:   true,
		},
		{
			name:     "cusip when symbol missing",
			position: domain.BrokerPosition{CUSIP: "037833100", Description: "Apple Inc"},
			want:     "037833100",
			usable:   true,
		},
		{
			name:     "description as last resort, case preserved",
			position: domain.BrokerPosition{Description: "Apple Inc"},
			want:     "Apple Inc",
			usable:   true,
		},
		{
			name:     "whitespace-only symbol falls through",
			position: domain.BrokerPosition{Symbol: "   ", CUSIP: "037833100"},
			want:     "037833100",
			usable:   true,
		},
		{
			name:     "nothing usable yields placeholder",
			position: domain.BrokerPosition{},
			want:     "UNKNOWN_7",
			usable:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, usable := resolveSymbol(tt.position, 7)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.usable, usable)
		})
	}
}

func TestReconcileQuantity(t *testing.T) {
	t.Run("net quantity wins", func(t *testing.T) {
		q := reconcileQuantity(domain.BrokerPosition{
			Quantity:     floatp(10),
			LongQuantity: floatp(99),
		})
		require.NotNil(t, q)
		assert.Equal(t, 10.0, *q)
	})

	t.Run("long minus short", func(t *testing.T) {
		q := reconcileQuantity(domain.BrokerPosition{
			LongQuantity:  floatp(100),
			ShortQuantity: floatp(30),
		})
		require.NotNil(t, q)
		assert.Equal(t, 70.0, *q)
	})

	t.Run("missing short leg counts as zero", func(t *testing.T) {
		q := reconcileQuantity(domain.BrokerPosition{LongQuantity: floatp(5)})
		require.NotNil(t, q)
		assert.Equal(t, 5.0, *q)
	})

	t.Run("missing long leg counts as zero", func(t *testing.T) {
		q := reconcileQuantity(domain.BrokerPosition{ShortQuantity: floatp(4)})
		require.NotNil(t, q)
		assert.Equal(t, -4.0, *q)
	})

	t.Run("no quantity information at all", func(t *testing.T) {
		q := reconcileQuantity(domain.BrokerPosition{})
		assert.Nil(t, q)
	})
}

func TestNormalizePositionsSkipsUnidentifiable(t *testing.T) {
	positions := []domain.BrokerPosition{
		{Symbol: "MSFT", Quantity: floatp(10)},
		{},
		{CUSIP: "594918104", Quantity: floatp(2)},
	}

	result := NormalizePositions("ACC-1", "2026-08-31", positions)

	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "MSFT", result.Rows[0].Symbol)
	assert.Equal(t, "594918104", result.Rows[1].Symbol)

	for _, row := range result.Rows {
		assert.Equal(t, "ACC-1", row.AccountNumber)
		assert.Equal(t, "2026-08-31", row.AsOfDate)
	}
}
