package sync

import (
	"fmt"
	"strings"

	"github.com/clubvest/brokersync/internal/domain"
)

// NormalizeResult is the outcome of normalizing one account's positions
type NormalizeResult struct {
	Rows    []PositionRow
	Skipped int
}

// NormalizePositions converts brokerage-reported positions into canonical
// rows for (accountNumber, asOfDate). A position without any usable symbol
// is skipped, not written; the count of skipped entries is reported so the
// per-account result can surface them.
func NormalizePositions(accountNumber, asOfDate string, positions []domain.BrokerPosition) NormalizeResult {
	result := NormalizeResult{Rows: make([]PositionRow, 0, len(positions))}

	for i, pos := range positions {
		symbol, usable := resolveSymbol(pos, i)
		if !usable {
			result.Skipped++
			continue
		}

		result.Rows = append(result.Rows, PositionRow{
			AccountNumber: accountNumber,
			AsOfDate:      asOfDate,
			Symbol:        symbol,
			Description:   pos.Description,
			AssetType:     pos.AssetType,
			Quantity:      reconcileQuantity(pos),
			AveragePrice:  pos.AveragePrice,
			MarketValue:   pos.MarketValue,
			CostBasis:     pos.CostBasis,
			DayProfitLoss: pos.DayProfitLoss,
			RawPayload:    string(pos.Raw),
		})
	}

	return result
}

// resolveSymbol picks a display symbol with the precedence
// instrument symbol -> CUSIP -> description -> generated placeholder.
// The placeholder marks the position as unusable: it is reported but
// never written to storage.
func resolveSymbol(pos domain.BrokerPosition, index int) (string, bool) {
	if s := strings.TrimSpace(pos.Symbol); s != "" {
		return strings.ToUpper(s), true
	}
	if s := strings.TrimSpace(pos.CUSIP); s != "" {
		return strings.ToUpper(s), true
	}
	if s := strings.TrimSpace(pos.Description); s != "" {
		return s, true
	}
	return fmt.Sprintf("UNKNOWN_%d", index), false
}

// reconcileQuantity derives the net quantity. The brokerage either reports
// a net quantity directly or splits it into long/short legs; missing legs
// count as zero. When neither form is numeric the quantity is unknown.
func reconcileQuantity(pos domain.BrokerPosition) *float64 {
	if pos.Quantity != nil {
		return pos.Quantity
	}
	if pos.LongQuantity == nil && pos.ShortQuantity == nil {
		return nil
	}

	var long, short float64
	if pos.LongQuantity != nil {
		long = *pos.LongQuantity
	}
	if pos.ShortQuantity != nil {
		short = *pos.ShortQuantity
	}
	net := long - short
	return &net
}
