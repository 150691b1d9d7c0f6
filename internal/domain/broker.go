// Package domain contains broker-agnostic types shared across modules.
// The domain layer is pure: no infrastructure dependencies.
package domain

import "encoding/json"

// BrokerPosition is a single position as reported by the brokerage, before
// normalization into storage rows. Pointer fields distinguish "not reported"
// from zero.
type BrokerPosition struct {
	Symbol        string
	CUSIP         string
	Description   string
	AssetType     string
	Quantity      *float64 // net quantity, when the brokerage reports one
	LongQuantity  *float64
	ShortQuantity *float64
	AveragePrice  *float64
	MarketValue   *float64
	CostBasis     *float64
	DayProfitLoss *float64
	Raw           json.RawMessage
}

// BrokerBalances holds the balance figures reported for an account.
type BrokerBalances struct {
	LiquidationValue *float64
	CashBalance      *float64
	MoneyMarketValue *float64
	LongMarketValue  *float64
	Raw              json.RawMessage
}

// BrokerAccount is an account with its embedded positions and balances.
// Positions ride along with the accounts listing because the brokerage's
// per-account detail endpoint rejects calls for some pooled account types.
type BrokerAccount struct {
	AccountNumber string
	AccountType   string
	DisplayName   string
	Positions     []BrokerPosition
	Balances      BrokerBalances
	Raw           json.RawMessage
}

// BrokerClient is the contract the synchronization and snapshot services
// require from a brokerage integration.
type BrokerClient interface {
	// GetAccountsWithPositions lists all accounts with positions and
	// balances embedded.
	GetAccountsWithPositions() ([]BrokerAccount, error)
}
