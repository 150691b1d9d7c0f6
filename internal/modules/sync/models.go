package sync

import "time"

// PositionRow is the canonical storage shape for one brokerage position.
// The natural key is (account_number, as_of_date, symbol); the row set for
// an (account_number, as_of_date) pair is always replaced as a unit.
type PositionRow struct {
	AccountNumber string
	AsOfDate      string // YYYY-MM-DD
	Symbol        string
	Description   string
	AssetType     string
	Quantity      *float64
	AveragePrice  *float64
	MarketValue   *float64
	CostBasis     *float64
	DayProfitLoss *float64
	RawPayload    string
}

// Account processing statuses reported per sync run
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// AccountResult is the per-account outcome within one sync run
type AccountResult struct {
	AccountNumber    string `json:"account_number"`
	Status           string `json:"status"`
	PositionsCount   int    `json:"positions_count"`
	SkippedPositions int    `json:"skipped_positions,omitempty"`
	Error            string `json:"error,omitempty"`
}

// SyncResult is the report produced by each synchronization run. It is
// returned to callers, never persisted.
type SyncResult struct {
	RunID            string          `json:"run_id"`
	OK               bool            `json:"ok"`
	AsOfDate         string          `json:"as_of_date"`
	LastSyncAt       time.Time       `json:"last_sync_at"`
	AccountsTotal    int             `json:"accounts_count"`
	AccountsSynced   int             `json:"accounts_synced"`
	PositionsWritten int             `json:"positions_written"`
	PerAccount       []AccountResult `json:"per_account"`
	Errors           []string        `json:"errors"`
}
