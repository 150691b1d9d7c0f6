package brokerage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/clubvest/brokersync/internal/domain"
)

// GetAccountsWithPositions lists all accounts with positions and balances
// embedded. Positions are requested through the listing because the
// per-account detail endpoint rejects calls for some pooled account types.
func (c *Client) GetAccountsWithPositions() ([]domain.BrokerAccount, error) {
	q := url.Values{}
	q.Set("fields", "positions")

	data, err := c.get(context.Background(), "/accounts", q)
	if err != nil {
		return nil, err
	}

	accounts, err := DecodeAccounts(data)
	if err != nil {
		return nil, err
	}

	return transformAccountsToDomain(accounts), nil
}

// GetQuotes fetches quotes for multiple symbols in a single batch call
func (c *Client) GetQuotes(symbols []string) (map[string]QuotePayload, error) {
	if len(symbols) == 0 {
		return map[string]QuotePayload{}, nil
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))

	data, err := c.get(context.Background(), "/quotes", q)
	if err != nil {
		return nil, err
	}

	var result map[string]QuotePayload
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse quotes: %w", err)
	}

	return result, nil
}

// GetPriceHistory fetches daily OHLCV bars for a symbol
func (c *Client) GetPriceHistory(symbol string, periodDays int) ([]CandlePayload, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("periodType", "day")
	q.Set("period", fmt.Sprintf("%d", periodDays))
	q.Set("frequencyType", "daily")

	data, err := c.get(context.Background(), "/pricehistory", q)
	if err != nil {
		return nil, err
	}

	var result priceHistoryPayload
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse price history: %w", err)
	}
	if result.Empty {
		return []CandlePayload{}, nil
	}

	return result.Candles, nil
}

// GetTransactions fetches transactions for an account in a date range
// (dates in YYYY-MM-DD form)
func (c *Client) GetTransactions(accountNumber, startDate, endDate string) ([]TransactionPayload, error) {
	q := url.Values{}
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)

	data, err := c.get(context.Background(), "/accounts/"+url.PathEscape(accountNumber)+"/transactions", q)
	if err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}

	transactions := make([]TransactionPayload, 0, len(elements))
	for _, element := range elements {
		var txn TransactionPayload
		if err := json.Unmarshal(element, &txn); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		txn.Raw = element
		transactions = append(transactions, txn)
	}

	return transactions, nil
}
