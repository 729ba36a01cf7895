package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

func openTestConn(t *testing.T) *Connection {
	t.Helper()

	conn, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func seedAccount(t *testing.T, conn *Connection) {
	t.Helper()
	ctx := context.Background()

	if _, err := conn.DB().ExecContext(ctx,
		`INSERT INTO connections (id, user_id, access_token) VALUES ('conn-1', 'user-1', 'token')`); err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	if _, err := conn.DB().ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, connection_id, external_account_id, name, account_type)
		VALUES ('acct-1', 'user-1', 'conn-1', 'ext-acct-1', 'Checking', 'depository')`); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func testTransaction(id string) *domain.Transaction {
	return &domain.Transaction{
		ID:          id,
		AccountID:   "acct-1",
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local),
		Amount:      42.50,
		Type:        domain.TypeExpense,
		Description: "sealed-envelope",
		Metadata:    `{"external_id":"ext-1"}`,
	}
}

func TestTransactionCRUD(t *testing.T) {
	conn := openTestConn(t)
	seedAccount(t, conn)
	ctx := context.Background()

	store := NewTransactionStore(conn)

	if err := store.CreateTransaction(ctx, testTransaction("tx-1"), "user-1"); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	got, err := store.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetTransaction() = nil for existing row")
	}
	if got.Amount != 42.50 || got.Type != domain.TypeExpense || got.UserID != "user-1" {
		t.Errorf("GetTransaction() = %+v", got)
	}
	if !got.Date.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)) {
		t.Errorf("Date = %v", got.Date)
	}

	if err := store.AttachMetadata(ctx, "tx-1", `{"k":"v"}`, "groceries"); err != nil {
		t.Fatalf("AttachMetadata() error = %v", err)
	}
	got, _ = store.GetTransaction(ctx, "tx-1")
	if got.CategoryID != "groceries" || got.Metadata != `{"k":"v"}` {
		t.Errorf("after AttachMetadata: %+v", got)
	}

	patch := domain.TransactionPatch{
		Date:        time.Date(2025, 3, 11, 0, 0, 0, 0, time.Local),
		Amount:      50.00,
		Type:        domain.TypeIncome,
		Description: "resealed",
		Metadata:    `{"k":"v2"}`,
	}
	if err := store.UpdateTransaction(ctx, "tx-1", patch); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}
	got, _ = store.GetTransaction(ctx, "tx-1")
	if got.Amount != 50.00 || got.Type != domain.TypeIncome || got.Description != "resealed" {
		t.Errorf("after UpdateTransaction: %+v", got)
	}

	if err := store.UpdateTransaction(ctx, "missing", patch); err == nil {
		t.Error("UpdateTransaction() for missing row: expected error")
	}

	if err := store.DeleteTransaction(ctx, "tx-1"); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	got, err = store.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetTransaction() after delete = %+v, want nil", got)
	}
}

func TestSyncRecordUpsertConflict(t *testing.T) {
	conn := openTestConn(t)
	seedAccount(t, conn)
	ctx := context.Background()

	txStore := NewTransactionStore(conn)
	if err := txStore.CreateTransaction(ctx, testTransaction("tx-1"), "user-1"); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if err := txStore.CreateTransaction(ctx, testTransaction("tx-2"), "user-1"); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	store := NewSyncRecordStore(conn)

	first := &domain.SyncRecord{
		ID:            "rec-1",
		AccountID:     "acct-1",
		ExternalID:    "ext-1",
		TransactionID: "tx-1",
		SyncedAt:      time.Now(),
	}
	winner, created, err := store.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !created || winner.TransactionID != "tx-1" {
		t.Errorf("first Upsert() = (%+v, %v)", winner, created)
	}

	// Same (account, external id) from a racing writer: the conflict is a
	// lost race, not an error, and the original mapping wins.
	second := &domain.SyncRecord{
		ID:            "rec-2",
		AccountID:     "acct-1",
		ExternalID:    "ext-1",
		TransactionID: "tx-2",
		SyncedAt:      time.Now(),
	}
	winner, created, err = store.Upsert(ctx, second)
	if err != nil {
		t.Fatalf("conflicting Upsert() error = %v", err)
	}
	if created {
		t.Error("conflicting Upsert() created = true, want false")
	}
	if winner.ID != "rec-1" || winner.TransactionID != "tx-1" {
		t.Errorf("conflicting Upsert() winner = %+v, want rec-1/tx-1", winner)
	}

	recs, err := store.ListByAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ListByAccount() error = %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("ListByAccount() = %d records, want 1", len(recs))
	}

	if err := store.Delete(ctx, "acct-1", "ext-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	rec, err := store.GetByExternalID(ctx, "acct-1", "ext-1")
	if err != nil {
		t.Fatalf("GetByExternalID() error = %v", err)
	}
	if rec != nil {
		t.Errorf("GetByExternalID() after delete = %+v, want nil", rec)
	}
}

func TestCursorCompareAndSet(t *testing.T) {
	conn := openTestConn(t)
	seedAccount(t, conn)
	ctx := context.Background()

	store := NewCursorStore(conn)

	cursor, err := store.GetCursor(ctx, "conn-1")
	if err != nil {
		t.Fatalf("GetCursor() error = %v", err)
	}
	if cursor != "" {
		t.Errorf("GetCursor() for new connection = %q, want empty", cursor)
	}

	saved, err := store.SaveCursor(ctx, "conn-1", "", "c1")
	if err != nil {
		t.Fatalf("SaveCursor() error = %v", err)
	}
	if !saved {
		t.Fatal("initial SaveCursor() = false, want true")
	}

	// A second initial save loses: the row already exists.
	saved, err = store.SaveCursor(ctx, "conn-1", "", "other")
	if err != nil {
		t.Fatalf("SaveCursor() error = %v", err)
	}
	if saved {
		t.Error("racing initial SaveCursor() = true, want false")
	}

	saved, err = store.SaveCursor(ctx, "conn-1", "c1", "c2")
	if err != nil {
		t.Fatalf("SaveCursor() error = %v", err)
	}
	if !saved {
		t.Error("SaveCursor() with matching previous = false, want true")
	}

	// Stale previous value loses the compare-and-set.
	saved, err = store.SaveCursor(ctx, "conn-1", "c1", "c3")
	if err != nil {
		t.Fatalf("SaveCursor() error = %v", err)
	}
	if saved {
		t.Error("SaveCursor() with stale previous = true, want false")
	}

	cursor, _ = store.GetCursor(ctx, "conn-1")
	if cursor != "c2" {
		t.Errorf("GetCursor() = %q, want c2", cursor)
	}
}

func TestAccountAndConnectionStores(t *testing.T) {
	conn := openTestConn(t)
	seedAccount(t, conn)
	ctx := context.Background()

	accounts := NewAccountStore(conn)
	connections := NewConnectionStore(conn)

	acct, err := accounts.GetAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if acct == nil || acct.Type != domain.AccountTypeDepository || acct.ConnectionID != "conn-1" {
		t.Errorf("GetAccount() = %+v", acct)
	}
	if acct.LastSyncedAt != nil {
		t.Errorf("LastSyncedAt = %v, want nil before first sync", acct.LastSyncedAt)
	}

	missing, err := accounts.GetAccount(ctx, "nope")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetAccount(missing) = %+v, want nil", missing)
	}

	now := time.Now()
	if err := accounts.UpdateLastSyncedAt(ctx, "acct-1", now); err != nil {
		t.Fatalf("UpdateLastSyncedAt() error = %v", err)
	}
	acct, _ = accounts.GetAccount(ctx, "acct-1")
	if acct.LastSyncedAt == nil {
		t.Error("LastSyncedAt still nil after update")
	}

	c, err := connections.GetConnection(ctx, "conn-1")
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if c == nil || c.AccessToken != "token" {
		t.Errorf("GetConnection() = %+v", c)
	}
}
