// Package inmemory provides map-backed implementations of the store
// interfaces. They are safe for concurrent use and lose data on restart;
// use the sqlite implementation for persistence. Tests use this package to
// exercise the engine, including the dedup race.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/store"
)

// Store implements all store interfaces over in-memory maps.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	syncRecords  map[string]*domain.SyncRecord // keyed accountID+"\x00"+externalID
	cursors      map[string]string
	accounts     map[string]*domain.Account
	connections  map[string]*domain.Connection
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]*domain.Transaction),
		syncRecords:  make(map[string]*domain.SyncRecord),
		cursors:      make(map[string]string),
		accounts:     make(map[string]*domain.Account),
		connections:  make(map[string]*domain.Connection),
	}
}

func recordKey(accountID, externalID string) string {
	return accountID + "\x00" + externalID
}

// SeedAccount registers an account (and is also used by tests).
func (s *Store) SeedAccount(acct *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *acct
	s.accounts[acct.ID] = &cp
}

// SeedConnection registers a provider connection.
func (s *Store) SeedConnection(c *domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.connections[c.ID] = &cp
}

// CreateTransaction implements store.TransactionStore.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction, actingUserID string) error {
	if tx.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	cp.UserID = actingUserID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.transactions[tx.ID] = &cp
	return nil
}

// AttachMetadata implements store.TransactionStore.
func (s *Store) AttachMetadata(ctx context.Context, transactionID, metadata, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction not found: %s", transactionID)
	}
	tx.Metadata = metadata
	tx.CategoryID = categoryID
	tx.UpdatedAt = time.Now()
	return nil
}

// UpdateTransaction implements store.TransactionStore.
func (s *Store) UpdateTransaction(ctx context.Context, transactionID string, patch domain.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction not found: %s", transactionID)
	}
	tx.Date = patch.Date
	tx.Amount = patch.Amount
	tx.Type = patch.Type
	tx.Description = patch.Description
	tx.Metadata = patch.Metadata
	tx.UpdatedAt = time.Now()
	return nil
}

// DeleteTransaction implements store.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, transactionID)
	return nil
}

// GetTransaction implements store.TransactionStore.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

// ListTransactionsByAccount implements store.TransactionStore.
func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []*domain.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			cp := *tx
			txs = append(txs, &cp)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	return txs, nil
}

// GetByExternalID implements store.SyncRecordStore.
func (s *Store) GetByExternalID(ctx context.Context, accountID, externalID string) (*domain.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.syncRecords[recordKey(accountID, externalID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// ListByAccount implements store.SyncRecordStore.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]*domain.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*domain.SyncRecord
	for _, rec := range s.syncRecords {
		if rec.AccountID == accountID {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	return recs, nil
}

// Upsert implements store.SyncRecordStore. The map write under one lock is
// the in-memory analogue of the unique-constraint upsert.
func (s *Store) Upsert(ctx context.Context, rec *domain.SyncRecord) (*domain.SyncRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(rec.AccountID, rec.ExternalID)
	if existing, ok := s.syncRecords[key]; ok {
		cp := *existing
		return &cp, false, nil
	}

	cp := *rec
	s.syncRecords[key] = &cp
	winner := cp
	return &winner, true, nil
}

// Touch implements store.SyncRecordStore.
func (s *Store) Touch(ctx context.Context, recordID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.syncRecords {
		if rec.ID == recordID {
			rec.SyncedAt = at
			return nil
		}
	}
	return fmt.Errorf("sync record not found: %s", recordID)
}

// Delete implements store.SyncRecordStore.
func (s *Store) Delete(ctx context.Context, accountID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.syncRecords, recordKey(accountID, externalID))
	return nil
}

// GetCursor implements store.CursorStore.
func (s *Store) GetCursor(ctx context.Context, connectionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[connectionID], nil
}

// SaveCursor implements store.CursorStore with compare-and-set semantics.
func (s *Store) SaveCursor(ctx context.Context, connectionID, previous, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursors[connectionID] != previous {
		return false, nil
	}
	s.cursors[connectionID] = next
	return true, nil
}

// GetAccount implements store.AccountStore.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

// UpdateLastSyncedAt implements store.AccountStore.
func (s *Store) UpdateLastSyncedAt(ctx context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account not found: %s", accountID)
	}
	t := at
	acct.LastSyncedAt = &t
	return nil
}

// GetConnection implements store.ConnectionStore.
func (s *Store) GetConnection(ctx context.Context, connectionID string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.connections[connectionID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Ensure Store implements all store interfaces.
var (
	_ store.TransactionStore = (*Store)(nil)
	_ store.SyncRecordStore  = (*Store)(nil)
	_ store.CursorStore      = (*Store)(nil)
	_ store.AccountStore     = (*Store)(nil)
	_ store.ConnectionStore  = (*Store)(nil)
)
