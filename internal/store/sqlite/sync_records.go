package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/store"
)

// SyncRecordStore is the SQLite-backed dedup ledger.
type SyncRecordStore struct {
	conn *Connection
}

// NewSyncRecordStore creates a new SyncRecordStore.
func NewSyncRecordStore(conn *Connection) *SyncRecordStore {
	return &SyncRecordStore{conn: conn}
}

// GetByExternalID returns the mapping for (accountID, externalID), or
// (nil, nil) when absent.
func (s *SyncRecordStore) GetByExternalID(ctx context.Context, accountID, externalID string) (*domain.SyncRecord, error) {
	query := `
		SELECT id, account_id, external_id, transaction_id, synced_at
		FROM sync_records
		WHERE account_id = ? AND external_id = ?
	`

	var rec domain.SyncRecord
	err := s.conn.db.QueryRowContext(ctx, query, accountID, externalID).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.ExternalID,
		&rec.TransactionID,
		&rec.SyncedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}

	return &rec, nil
}

// ListByAccount returns all dedup mappings for an account.
func (s *SyncRecordStore) ListByAccount(ctx context.Context, accountID string) ([]*domain.SyncRecord, error) {
	query := `
		SELECT id, account_id, external_id, transaction_id, synced_at
		FROM sync_records
		WHERE account_id = ?
	`

	rows, err := s.conn.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	defer rows.Close()

	var recs []*domain.SyncRecord
	for rows.Next() {
		var rec domain.SyncRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.ExternalID, &rec.TransactionID, &rec.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// Upsert inserts the mapping; a unique-constraint conflict is not an error
// but a lost race, and the winner's record is returned instead.
func (s *SyncRecordStore) Upsert(ctx context.Context, rec *domain.SyncRecord) (*domain.SyncRecord, bool, error) {
	query := `
		INSERT INTO sync_records (id, account_id, external_id, transaction_id, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, external_id) DO NOTHING
	`

	res, err := s.conn.db.ExecContext(ctx, query,
		rec.ID,
		rec.AccountID,
		rec.ExternalID,
		rec.TransactionID,
		rec.SyncedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert sync record: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		return rec, true, nil
	}

	// Lost the insert race: reuse the winning writer's mapping.
	winner, err := s.GetByExternalID(ctx, rec.AccountID, rec.ExternalID)
	if err != nil {
		return nil, false, err
	}
	if winner == nil {
		// Conflicted row deleted between the insert and the re-read; treat
		// as a transient write conflict for the caller to count.
		return nil, false, fmt.Errorf("sync record for %s/%s vanished after upsert conflict", rec.AccountID, rec.ExternalID)
	}

	return winner, false, nil
}

// Touch refreshes the mapping's sync timestamp.
func (s *SyncRecordStore) Touch(ctx context.Context, recordID string, at time.Time) error {
	_, err := s.conn.db.ExecContext(ctx, `UPDATE sync_records SET synced_at = ? WHERE id = ?`, at, recordID)
	if err != nil {
		return fmt.Errorf("failed to touch sync record: %w", err)
	}
	return nil
}

// Delete removes the mapping for (accountID, externalID).
func (s *SyncRecordStore) Delete(ctx context.Context, accountID, externalID string) error {
	_, err := s.conn.db.ExecContext(ctx, `DELETE FROM sync_records WHERE account_id = ? AND external_id = ?`, accountID, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete sync record: %w", err)
	}
	return nil
}

// Ensure SyncRecordStore implements the interface.
var _ store.SyncRecordStore = (*SyncRecordStore)(nil)
