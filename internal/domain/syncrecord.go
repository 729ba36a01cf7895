package domain

import "time"

// SyncRecord is the durable mapping external-id -> local-transaction-id,
// scoped to one account and unique on the external id. Its existence is the
// single source of truth for "already materialized"; the dedup guard never
// consults anything else.
type SyncRecord struct {
	ID            string
	AccountID     string
	ExternalID    string
	TransactionID string
	SyncedAt      time.Time
}

// SyncCursor is the provider-issued pagination token for one connection.
// It only advances after the page it covers has been durably applied.
type SyncCursor struct {
	ConnectionID string
	Cursor       string
	UpdatedAt    time.Time
}
