package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/store"
)

// AccountStore is the SQLite-backed account store.
type AccountStore struct {
	conn *Connection
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(conn *Connection) *AccountStore {
	return &AccountStore{conn: conn}
}

// GetAccount retrieves an account by id. Returns (nil, nil) when absent.
func (s *AccountStore) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `
		SELECT id, user_id, connection_id, external_account_id, name, account_type, last_synced_at
		FROM accounts
		WHERE id = ?
	`

	var (
		acct       domain.Account
		typeStr    string
		lastSynced sql.NullTime
	)
	err := s.conn.db.QueryRowContext(ctx, query, accountID).Scan(
		&acct.ID,
		&acct.UserID,
		&acct.ConnectionID,
		&acct.ExternalAccountID,
		&acct.Name,
		&typeStr,
		&lastSynced,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	acct.Type = domain.AccountType(typeStr)
	if lastSynced.Valid {
		acct.LastSyncedAt = &lastSynced.Time
	}
	return &acct, nil
}

// UpdateLastSyncedAt records sync completion time for the account.
func (s *AccountStore) UpdateLastSyncedAt(ctx context.Context, accountID string, at time.Time) error {
	_, err := s.conn.db.ExecContext(ctx, `UPDATE accounts SET last_synced_at = ? WHERE id = ?`, at, accountID)
	if err != nil {
		return fmt.Errorf("failed to update last_synced_at: %w", err)
	}
	return nil
}

// ConnectionStore is the SQLite-backed provider connection store.
type ConnectionStore struct {
	conn *Connection
}

// NewConnectionStore creates a new ConnectionStore.
func NewConnectionStore(conn *Connection) *ConnectionStore {
	return &ConnectionStore{conn: conn}
}

// GetConnection retrieves a provider connection by id. Returns (nil, nil)
// when absent.
func (s *ConnectionStore) GetConnection(ctx context.Context, connectionID string) (*domain.Connection, error) {
	query := `
		SELECT id, user_id, access_token, institution_id, created_at
		FROM connections
		WHERE id = ?
	`

	var c domain.Connection
	err := s.conn.db.QueryRowContext(ctx, query, connectionID).Scan(
		&c.ID,
		&c.UserID,
		&c.AccessToken,
		&c.InstitutionID,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return &c, nil
}

// Ensure the stores implement their interfaces.
var (
	_ store.AccountStore    = (*AccountStore)(nil)
	_ store.ConnectionStore = (*ConnectionStore)(nil)
)
