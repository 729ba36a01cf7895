package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/ledger-sync/internal/store"
)

// CursorStore is the SQLite-backed pagination cursor store.
type CursorStore struct {
	conn *Connection
}

// NewCursorStore creates a new CursorStore.
func NewCursorStore(conn *Connection) *CursorStore {
	return &CursorStore{conn: conn}
}

// GetCursor returns the stored cursor for the connection, or "" if none.
func (s *CursorStore) GetCursor(ctx context.Context, connectionID string) (string, error) {
	var cursor string
	err := s.conn.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_cursors WHERE connection_id = ?`, connectionID).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return cursor, nil
}

// SaveCursor advances the cursor if the stored value still equals previous.
// Overlapping syncs for one connection race here; losing is harmless and
// reported as (false, nil).
func (s *CursorStore) SaveCursor(ctx context.Context, connectionID, previous, next string) (bool, error) {
	if previous == "" {
		// First cursor for the connection, or an initial sync racing a
		// concurrent one: only insert if no row exists yet.
		res, err := s.conn.db.ExecContext(ctx, `
			INSERT INTO sync_cursors (connection_id, cursor, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(connection_id) DO NOTHING
		`, connectionID, next)
		if err != nil {
			return false, fmt.Errorf("failed to save cursor: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to get rows affected: %w", err)
		}
		return rows > 0, nil
	}

	res, err := s.conn.db.ExecContext(ctx, `
		UPDATE sync_cursors
		SET cursor = ?, updated_at = CURRENT_TIMESTAMP
		WHERE connection_id = ? AND cursor = ?
	`, next, connectionID, previous)
	if err != nil {
		return false, fmt.Errorf("failed to save cursor: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// Ensure CursorStore implements the interface.
var _ store.CursorStore = (*CursorStore)(nil)
