package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/dvloznov/ledger-sync/internal/classify"
	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/secure"
	storeinmemory "github.com/dvloznov/ledger-sync/internal/store/inmemory"
)

func newTestWriter(t *testing.T, st *storeinmemory.Store) *Writer {
	t.Helper()
	cipher, err := secure.NewCipher(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}
	return NewWriter(st, st, cipher, nil)
}

func testWriterAccount() *domain.Account {
	return &domain.Account{
		ID:                testAccountID,
		UserID:            testUserID,
		ConnectionID:      testConnectionID,
		ExternalAccountID: testExternalAcct,
		Type:              domain.AccountTypeDepository,
	}
}

func TestMaterializeOnce(t *testing.T) {
	st := storeinmemory.NewStore()
	writer := newTestWriter(t, st)
	acct := testWriterAccount()
	ctx := context.Background()

	rec := record("ext-1", -12.34)
	res, err := classify.NewEngine().Classify(rec, acct.Type)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	id1, created, err := writer.Materialize(ctx, acct, rec, res)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if !created {
		t.Error("first Materialize() created = false, want true")
	}

	id2, created, err := writer.Materialize(ctx, acct, rec, res)
	if err != nil {
		t.Fatalf("second Materialize() error = %v", err)
	}
	if created {
		t.Error("second Materialize() created = true, want false")
	}
	if id1 != id2 {
		t.Errorf("transaction ids differ: %q vs %q", id1, id2)
	}

	tx, err := st.GetTransaction(ctx, id1)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if tx == nil {
		t.Fatal("transaction not persisted")
	}
	if tx.Amount != 12.34 {
		t.Errorf("amount = %v, want 12.34", tx.Amount)
	}
	if tx.Description == "COFFEE SHOP" {
		t.Error("description stored in plaintext")
	}
	if tx.Metadata == "" {
		t.Error("metadata not attached")
	}
	if tx.UserID != testUserID {
		t.Errorf("user id = %q, want %q", tx.UserID, testUserID)
	}
}

func TestMaterializeSeesPriorRunRecords(t *testing.T) {
	st := storeinmemory.NewStore()
	acct := testWriterAccount()
	ctx := context.Background()

	rec := record("ext-1", -10.00)
	res, _ := classify.NewEngine().Classify(rec, acct.Type)

	first := newTestWriter(t, st)
	id1, _, err := first.Materialize(ctx, acct, rec, res)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	// A fresh writer with an empty in-process map still finds the durable
	// mapping via the point lookup.
	second := newTestWriter(t, st)
	id2, created, err := second.Materialize(ctx, acct, rec, res)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if created {
		t.Error("created = true, want false")
	}
	if id1 != id2 {
		t.Errorf("transaction ids differ: %q vs %q", id1, id2)
	}
}

func TestMaterializeConcurrent(t *testing.T) {
	st := storeinmemory.NewStore()
	acct := testWriterAccount()
	ctx := context.Background()

	rec := record("ext-race", -10.00)
	res, _ := classify.NewEngine().Classify(rec, acct.Type)

	// Two overlapping runs racing on the same record must yield exactly one
	// transaction, both reporting the same id.
	const racers = 8
	ids := make([]string, racers)
	createdCount := 0

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			writer := newTestWriter(t, st)
			id, created, err := writer.Materialize(ctx, acct, rec, res)
			if err != nil {
				t.Errorf("Materialize() error = %v", err)
				return
			}
			mu.Lock()
			ids[i] = id
			if created {
				createdCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if createdCount != 1 {
		t.Errorf("created count = %d, want 1", createdCount)
	}
	for i := 1; i < racers; i++ {
		if ids[i] != ids[0] {
			t.Errorf("racer %d got id %q, racer 0 got %q", i, ids[i], ids[0])
		}
	}

	txs, err := st.ListTransactionsByAccount(ctx, acct.ID)
	if err != nil {
		t.Fatalf("ListTransactionsByAccount() error = %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("transaction count = %d, want 1", len(txs))
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	st := storeinmemory.NewStore()
	writer := newTestWriter(t, st)

	deleted, err := writer.Remove(context.Background(), testAccountID, "never-seen")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if deleted {
		t.Error("deleted = true, want false")
	}
}
