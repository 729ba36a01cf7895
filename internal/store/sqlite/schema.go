// Package sqlite is the durable implementation of the store interfaces.
package sqlite

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Provider connections (one per linked institution login)
CREATE TABLE IF NOT EXISTS connections (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    access_token TEXT NOT NULL,
    institution_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Local ledger accounts, each linked to one external account
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    connection_id TEXT NOT NULL REFERENCES connections(id),
    external_account_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    account_type TEXT NOT NULL,        -- 'depository' or 'credit'
    last_synced_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_accounts_connection
    ON accounts(connection_id);

-- Materialized transactions; amount is always non-negative, the type
-- carries the direction; description is an encrypted envelope
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL REFERENCES accounts(id),
    user_id TEXT NOT NULL,
    txn_date TEXT NOT NULL,            -- YYYY-MM-DD
    amount REAL NOT NULL CHECK (amount >= 0),
    txn_type TEXT NOT NULL,            -- 'expense', 'income', 'transfer'
    category_id TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_date
    ON transactions(account_id, txn_date);

-- Dedup ledger: one row per materialized external record. The UNIQUE
-- constraint is what makes the final upsert race-safe.
CREATE TABLE IF NOT EXISTS sync_records (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL REFERENCES accounts(id),
    external_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL REFERENCES transactions(id),
    synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(account_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_sync_records_account
    ON sync_records(account_id);

-- Per-connection pagination cursor
CREATE TABLE IF NOT EXISTS sync_cursors (
    connection_id TEXT PRIMARY KEY REFERENCES connections(id),
    cursor TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.db.Exec(Schema); err != nil {
		return err
	}
	return nil
}
