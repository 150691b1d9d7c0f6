package brokerage

import (
	"encoding/json"

	"github.com/clubvest/brokersync/internal/domain"
)

// transformAccountsToDomain converts wire accounts into broker-agnostic
// domain values, preserving each raw element for storage.
func transformAccountsToDomain(accounts []AccountPayload) []domain.BrokerAccount {
	result := make([]domain.BrokerAccount, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, domain.BrokerAccount{
			AccountNumber: account.Number(),
			AccountType:   account.Type,
			DisplayName:   account.Nickname,
			Positions:     transformPositionsToDomain(account.Positions),
			Balances:      transformBalancesToDomain(account.CurrentBalances),
			Raw:           account.Raw,
		})
	}
	return result
}

func transformPositionsToDomain(positions []PositionPayload) []domain.BrokerPosition {
	result := make([]domain.BrokerPosition, 0, len(positions))
	for _, pos := range positions {
		raw, _ := json.Marshal(pos)
		result = append(result, domain.BrokerPosition{
			Symbol:        pos.Instrument.Symbol,
			CUSIP:         pos.Instrument.Cusip,
			Description:   pos.Instrument.Description,
			AssetType:     pos.Instrument.AssetType,
			Quantity:      pos.Quantity,
			LongQuantity:  pos.LongQuantity,
			ShortQuantity: pos.ShortQuantity,
			AveragePrice:  pos.AveragePrice,
			MarketValue:   pos.MarketValue,
			CostBasis:     pos.CostBasis,
			DayProfitLoss: pos.DayProfitLoss,
			Raw:           raw,
		})
	}
	return result
}

func transformBalancesToDomain(balances *BalancesPayload) domain.BrokerBalances {
	if balances == nil {
		return domain.BrokerBalances{}
	}
	raw, _ := json.Marshal(balances)
	return domain.BrokerBalances{
		LiquidationValue: balances.LiquidationValue,
		CashBalance:      balances.CashBalance,
		MoneyMarketValue: balances.MoneyMarketFund,
		LongMarketValue:  balances.LongMarketValue,
		Raw:              raw,
	}
}
