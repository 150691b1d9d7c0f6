package database

// Schema is the full DDL for the brokersync database. Every statement is
// idempotent so the schema can be applied on each startup.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    description TEXT,
    updated_at  INTEGER NOT NULL
);

-- One live credential per integration. History rows are kept for audit;
-- the live row is the one with current = 1.
CREATE TABLE IF NOT EXISTS broker_tokens (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    access_token  TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    token_type    TEXT NOT NULL DEFAULT 'Bearer',
    scope         TEXT,
    expires_at    INTEGER NOT NULL,
    current       INTEGER NOT NULL DEFAULT 1,
    created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_broker_tokens_current ON broker_tokens(current);

-- Single-use CSRF states for the authorization flow.
CREATE TABLE IF NOT EXISTS oauth_states (
    state        TEXT PRIMARY KEY,
    redirect_uri TEXT NOT NULL,
    expires_at   INTEGER NOT NULL,
    created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    account_number TEXT NOT NULL UNIQUE,
    account_type   TEXT,
    display_name   TEXT,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    account_number  TEXT NOT NULL,
    as_of_date      TEXT NOT NULL,
    symbol          TEXT NOT NULL,
    description     TEXT,
    asset_type      TEXT,
    quantity        REAL,
    average_price   REAL,
    market_value    REAL,
    cost_basis      REAL,
    day_profit_loss REAL,
    raw_payload     TEXT,
    created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_account_date
    ON positions(account_number, as_of_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_account_date_symbol
    ON positions(account_number, as_of_date, symbol);

CREATE TABLE IF NOT EXISTS snapshots (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id         INTEGER NOT NULL REFERENCES accounts(id),
    snapshot_date      TEXT NOT NULL,
    liquidation_value  REAL,
    cash_balance       REAL,
    money_market_value REAL,
    long_market_value  REAL,
    raw_payload        TEXT,
    created_at         INTEGER NOT NULL,
    UNIQUE(account_id, snapshot_date)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_account_date
    ON snapshots(account_id, snapshot_date);
`
