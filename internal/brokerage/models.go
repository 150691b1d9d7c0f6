package brokerage

import (
	"encoding/json"
	"fmt"
)

// Wire shapes for the brokerage's JSON payloads. Pointer numerics
// distinguish "field absent" from zero, which matters for quantity
// reconciliation downstream.

// InstrumentPayload identifies the security held in a position
type InstrumentPayload struct {
	Symbol      string `json:"symbol"`
	Cusip       string `json:"cusip"`
	Description string `json:"description"`
	AssetType   string `json:"assetType"`
}

// PositionPayload is one position inside an account listing
type PositionPayload struct {
	Instrument    InstrumentPayload `json:"instrument"`
	Quantity      *float64          `json:"quantity"`
	LongQuantity  *float64          `json:"longQuantity"`
	ShortQuantity *float64          `json:"shortQuantity"`
	AveragePrice  *float64          `json:"averagePrice"`
	MarketValue   *float64          `json:"marketValue"`
	CostBasis     *float64          `json:"costBasis"`
	DayProfitLoss *float64          `json:"currentDayProfitLoss"`
}

// BalancesPayload carries the account balance figures
type BalancesPayload struct {
	LiquidationValue *float64 `json:"liquidationValue"`
	CashBalance      *float64 `json:"cashBalance"`
	MoneyMarketFund  *float64 `json:"moneyMarketFund"`
	LongMarketValue  *float64 `json:"longMarketValue"`
}

// AccountPayload is the body of one account in the listing
type AccountPayload struct {
	AccountNumber   string            `json:"accountNumber"`
	AccountID       string            `json:"accountId"` // older payload revisions
	Type            string            `json:"type"`
	Nickname        string            `json:"nickname"`
	Positions       []PositionPayload `json:"positions"`
	CurrentBalances *BalancesPayload  `json:"currentBalances"`
	Raw             json.RawMessage   `json:"-"`
}

// Number returns the stable account identifier regardless of payload revision
func (a *AccountPayload) Number() string {
	if a.AccountNumber != "" {
		return a.AccountNumber
	}
	return a.AccountID
}

// accountEnvelope handles the wrapper some payload revisions put around the
// account body
type accountEnvelope struct {
	SecuritiesAccount *AccountPayload `json:"securitiesAccount"`
}

// accountsObject handles the object-with-accounts-key listing shape
type accountsObject struct {
	Accounts []json.RawMessage `json:"accounts"`
}

// DecodeAccounts normalizes the accounts listing payload into a flat list.
// The brokerage returns either a bare JSON array or an object with an
// "accounts" key, and each element may or may not be wrapped in
// "securitiesAccount". All shape branching is centralized here so network
// code and services never inspect raw payloads. An empty or null payload
// decodes to an empty list, not an error.
func DecodeAccounts(data []byte) ([]AccountPayload, error) {
	if len(data) == 0 {
		return []AccountPayload{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		var obj accountsObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("failed to parse accounts payload: %w", err)
		}
		elements = obj.Accounts
	}

	accounts := make([]AccountPayload, 0, len(elements))
	for i, element := range elements {
		account, err := decodeAccount(element)
		if err != nil {
			return nil, fmt.Errorf("failed to parse account at index %d: %w", i, err)
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// decodeAccount unwraps a single listing element
func decodeAccount(element json.RawMessage) (AccountPayload, error) {
	var envelope accountEnvelope
	if err := json.Unmarshal(element, &envelope); err == nil && envelope.SecuritiesAccount != nil {
		account := *envelope.SecuritiesAccount
		account.Raw = element
		return account, nil
	}

	var account AccountPayload
	if err := json.Unmarshal(element, &account); err != nil {
		return AccountPayload{}, err
	}
	account.Raw = element
	return account, nil
}

// QuotePayload is one entry in the quotes response
type QuotePayload struct {
	Symbol      string   `json:"symbol"`
	LastPrice   *float64 `json:"lastPrice"`
	BidPrice    *float64 `json:"bidPrice"`
	AskPrice    *float64 `json:"askPrice"`
	TotalVolume *int64   `json:"totalVolume"`
}

// CandlePayload is one OHLCV bar in the price history response
type CandlePayload struct {
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	Datetime int64   `json:"datetime"` // epoch millis
}

// priceHistoryPayload is the price history response envelope
type priceHistoryPayload struct {
	Symbol  string          `json:"symbol"`
	Candles []CandlePayload `json:"candles"`
	Empty   bool            `json:"empty"`
}

// TransactionPayload is one entry in the transactions response
type TransactionPayload struct {
	Type            string          `json:"type"`
	TransactionDate string          `json:"transactionDate"`
	NetAmount       *float64        `json:"netAmount"`
	Description     string          `json:"description"`
	Raw             json.RawMessage `json:"-"`
}
