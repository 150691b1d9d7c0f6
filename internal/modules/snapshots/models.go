package snapshots

// Account is a registered brokerage account
type Account struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// SnapshotRecord is one end-of-day balance snapshot for an account.
// Snapshots are append-only: at most one row exists per
// (account, snapshot_date) and existing rows are never updated.
type SnapshotRecord struct {
	ID               int64    `json:"id"`
	AccountID        int64    `json:"account_id"`
	AccountNumber    string   `json:"account_number"`
	SnapshotDate     string   `json:"snapshot_date"` // YYYY-MM-DD
	LiquidationValue *float64 `json:"liquidation_value,omitempty"`
	CashBalance      *float64 `json:"cash_balance,omitempty"`
	MoneyMarketValue *float64 `json:"money_market_value,omitempty"`
	LongMarketValue  *float64 `json:"long_market_value,omitempty"`
	RawPayload       string   `json:"-"`
	CreatedAt        int64    `json:"created_at"`
}

// CaptureAccountResult is the per-account outcome within one capture run
type CaptureAccountResult struct {
	AccountNumber string `json:"account_number"`
	Status        string `json:"status"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Capture statuses
const (
	StatusCaptured  = "captured"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// CaptureResult is the report produced by each snapshot capture run
type CaptureResult struct {
	OK            bool                   `json:"ok"`
	SnapshotDate  string                 `json:"snapshot_date"`
	AccountsTotal int                    `json:"accounts_count"`
	Captured      int                    `json:"captured"`
	Duplicates    int                    `json:"duplicates"`
	PerAccount    []CaptureAccountResult `json:"per_account"`
	Errors        []string               `json:"errors"`
}
