// Package store defines the persistence interfaces the sync engine depends
// on. Implementations: sqlite (durable) and inmemory (tests, local runs).
package store

import (
	"context"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// TransactionStore is the CRUD collaborator for the local ledger. The engine
// does not implement ownership checks; it passes the account's owning user
// id on create so server-driven writes bypass interactive-session checks.
type TransactionStore interface {
	// CreateTransaction persists a new transaction and returns nothing; the
	// caller supplies the id. Metadata is attached in a second write so the
	// dedup ledger entry is only created once the row is fully formed.
	CreateTransaction(ctx context.Context, tx *domain.Transaction, actingUserID string) error

	// AttachMetadata records the classification inputs and category scoring
	// results for a freshly created transaction.
	AttachMetadata(ctx context.Context, transactionID, metadata, categoryID string) error

	// UpdateTransaction rewrites a transaction in place when the provider
	// reclassifies a modified record.
	UpdateTransaction(ctx context.Context, transactionID string, patch domain.TransactionPatch) error

	DeleteTransaction(ctx context.Context, transactionID string) error

	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)

	ListTransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error)
}

// SyncRecordStore is the dedup ledger: the durable external-id to
// local-transaction-id mapping, unique on (account_id, external_id).
type SyncRecordStore interface {
	// GetByExternalID returns the mapping for (accountID, externalID), or
	// (nil, nil) when the record has not been materialized.
	GetByExternalID(ctx context.Context, accountID, externalID string) (*domain.SyncRecord, error)

	// ListByAccount returns all mappings for an account; the engine builds
	// its in-process dedup map from this at the start of a run.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.SyncRecord, error)

	// Upsert inserts the mapping, treating a unique-constraint conflict as
	// success: the returned record is the winner's (which may differ from
	// rec) and created reports whether rec won the insert.
	Upsert(ctx context.Context, rec *domain.SyncRecord) (winner *domain.SyncRecord, created bool, err error)

	// Touch refreshes the mapping's sync timestamp after a modified-record
	// update.
	Touch(ctx context.Context, recordID string, at time.Time) error

	Delete(ctx context.Context, accountID, externalID string) error
}

// CursorStore persists the per-connection pagination cursor.
type CursorStore interface {
	// GetCursor returns the stored cursor, or "" for a connection that has
	// never completed a page (full initial sync).
	GetCursor(ctx context.Context, connectionID string) (string, error)

	// SaveCursor advances the cursor with compare-and-set semantics: the
	// write only applies if the stored value still equals previous. A lost
	// race returns (false, nil); overlapping runs for one connection then
	// redo work already done by the other, which the dedup guard makes safe.
	SaveCursor(ctx context.Context, connectionID, previous, next string) (bool, error)
}

// AccountStore resolves local accounts and tracks sync completion.
type AccountStore interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateLastSyncedAt(ctx context.Context, accountID string, at time.Time) error
}

// ConnectionStore resolves provider connections (access tokens).
type ConnectionStore interface {
	GetConnection(ctx context.Context, connectionID string) (*domain.Connection, error)
}
