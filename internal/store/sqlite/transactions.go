package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/store"
)

const dateFormat = "2006-01-02"

// TransactionStore is the SQLite-backed ledger transaction store.
type TransactionStore struct {
	conn *Connection
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(conn *Connection) *TransactionStore {
	return &TransactionStore{conn: conn}
}

// CreateTransaction persists a new transaction row.
func (s *TransactionStore) CreateTransaction(ctx context.Context, tx *domain.Transaction, actingUserID string) error {
	query := `
		INSERT INTO transactions (id, account_id, user_id, txn_date, amount, txn_type, category_id, description, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.conn.db.ExecContext(ctx, query,
		tx.ID,
		tx.AccountID,
		actingUserID,
		tx.Date.Format(dateFormat),
		tx.Amount,
		string(tx.Type),
		tx.CategoryID,
		tx.Description,
		tx.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// AttachMetadata records classification inputs and category scoring results.
func (s *TransactionStore) AttachMetadata(ctx context.Context, transactionID, metadata, categoryID string) error {
	query := `
		UPDATE transactions
		SET metadata = ?, category_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := s.conn.db.ExecContext(ctx, query, metadata, categoryID, transactionID)
	if err != nil {
		return fmt.Errorf("failed to attach metadata: %w", err)
	}

	return nil
}

// UpdateTransaction rewrites amount, date, type, description and metadata in
// place for a provider-modified record.
func (s *TransactionStore) UpdateTransaction(ctx context.Context, transactionID string, patch domain.TransactionPatch) error {
	query := `
		UPDATE transactions
		SET txn_date = ?, amount = ?, txn_type = ?, description = ?, metadata = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	res, err := s.conn.db.ExecContext(ctx, query,
		patch.Date.Format(dateFormat),
		patch.Amount,
		string(patch.Type),
		patch.Description,
		patch.Metadata,
		transactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction not found: %s", transactionID)
	}

	return nil
}

// DeleteTransaction removes a transaction row.
func (s *TransactionStore) DeleteTransaction(ctx context.Context, transactionID string) error {
	_, err := s.conn.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by id. Returns (nil, nil) when the
// row does not exist.
func (s *TransactionStore) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `
		SELECT id, account_id, user_id, txn_date, amount, txn_type, category_id, description, metadata, created_at, updated_at
		FROM transactions
		WHERE id = ?
	`

	tx, err := scanTransaction(s.conn.db.QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return tx, nil
}

// ListTransactionsByAccount returns all transactions for an account ordered
// by date.
func (s *TransactionStore) ListTransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	query := `
		SELECT id, account_id, user_id, txn_date, amount, txn_type, category_id, description, metadata, created_at, updated_at
		FROM transactions
		WHERE account_id = ?
		ORDER BY txn_date, created_at
	`

	rows, err := s.conn.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		dateStr  string
		typeStr  string
		created  time.Time
		updated  time.Time
	)

	if err := row.Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.UserID,
		&dateStr,
		&tx.Amount,
		&typeStr,
		&tx.CategoryID,
		&tx.Description,
		&tx.Metadata,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}

	date, err := time.ParseInLocation(dateFormat, dateStr, time.Local)
	if err != nil {
		return nil, fmt.Errorf("corrupt txn_date %q: %w", dateStr, err)
	}

	tx.Date = date
	tx.Type = domain.TransactionType(typeStr)
	tx.CreatedAt = created
	tx.UpdatedAt = updated
	return &tx, nil
}

// Ensure TransactionStore implements the interface.
var _ store.TransactionStore = (*TransactionStore)(nil)
