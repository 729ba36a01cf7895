package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/ledger-sync/internal/classify"
	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/logger"
	"github.com/dvloznov/ledger-sync/internal/provider"
	"github.com/dvloznov/ledger-sync/internal/secure"
	"github.com/dvloznov/ledger-sync/internal/store"
	"github.com/dvloznov/ledger-sync/internal/suggest"
)

// Writer materializes external records into local transactions at most once
// per external id. Deduplication runs in three layers, cheapest first: an
// in-process map seeded for the run, a point lookup against the durable
// dedup ledger, and finally the ledger's upsert-on-conflict, whose lost race
// is treated as success referencing the winning writer's transaction.
type Writer struct {
	transactions store.TransactionStore
	records      store.SyncRecordStore
	cipher       *secure.Cipher
	suggester    suggest.Suggester

	mu   sync.Mutex
	seen map[string]string // external id -> local transaction id
}

// NewWriter creates a writer for one sync run. suggester may be nil when
// category suggestions are disabled.
func NewWriter(transactions store.TransactionStore, records store.SyncRecordStore, cipher *secure.Cipher, suggester suggest.Suggester) *Writer {
	return &Writer{
		transactions: transactions,
		records:      records,
		cipher:       cipher,
		suggester:    suggester,
		seen:         make(map[string]string),
	}
}

// Seed preloads the in-process dedup map from the account's existing ledger
// mappings, avoiding a point lookup per record.
func (w *Writer) Seed(recs []*domain.SyncRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rec := range recs {
		w.seen[rec.ExternalID] = rec.TransactionID
	}
}

// Materialize creates at most one local transaction for the external record.
// It returns the local transaction id and whether this call created it.
//
// Write protocol for a new record: the transaction row first, derived
// metadata second, the dedup ledger entry last. A crash between steps leaves
// an orphan transaction rather than a dangling ledger reference, and the next
// run's ledger lookup skips re-creating anything already mapped.
func (w *Writer) Materialize(ctx context.Context, acct *domain.Account, rec provider.Record, res classify.Result) (string, bool, error) {
	if id, ok := w.lookup(rec.ExternalID); ok {
		return id, false, nil
	}

	existing, err := w.records.GetByExternalID(ctx, acct.ID, rec.ExternalID)
	if err != nil {
		return "", false, fmt.Errorf("dedup lookup for %s: %w", rec.ExternalID, err)
	}
	if existing != nil {
		w.remember(rec.ExternalID, existing.TransactionID)
		return existing.TransactionID, false, nil
	}

	encrypted, err := w.cipher.Encrypt(rec.Description)
	if err != nil {
		return "", false, fmt.Errorf("encrypt description for %s: %w", rec.ExternalID, err)
	}

	metadata, err := encodeMetadata(rec, res)
	if err != nil {
		return "", false, err
	}

	txID := uuid.New().String()
	tx := &domain.Transaction{
		ID:          txID,
		AccountID:   acct.ID,
		Date:        res.Date,
		Amount:      res.Amount,
		Type:        res.Type,
		Description: encrypted,
	}
	if err := w.transactions.CreateTransaction(ctx, tx, acct.UserID); err != nil {
		return "", false, fmt.Errorf("create transaction for %s: %w", rec.ExternalID, err)
	}

	categoryID := w.suggestCategory(ctx, rec, res)
	if err := w.transactions.AttachMetadata(ctx, txID, metadata, categoryID); err != nil {
		return "", false, fmt.Errorf("attach metadata for %s: %w", rec.ExternalID, err)
	}

	winner, created, err := w.records.Upsert(ctx, &domain.SyncRecord{
		ID:            uuid.New().String(),
		AccountID:     acct.ID,
		ExternalID:    rec.ExternalID,
		TransactionID: txID,
		SyncedAt:      time.Now(),
	})
	if err != nil {
		return "", false, fmt.Errorf("record dedup mapping for %s: %w", rec.ExternalID, err)
	}

	if !created {
		// A concurrent run won the upsert; drop our orphan and reuse its
		// transaction.
		if delErr := w.transactions.DeleteTransaction(ctx, txID); delErr != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(delErr).Str("transaction_id", txID).Msg("failed to clean up orphan transaction after lost upsert race")
		}
		w.remember(rec.ExternalID, winner.TransactionID)
		return winner.TransactionID, false, nil
	}

	w.remember(rec.ExternalID, txID)
	return txID, true, nil
}

// UpdateExisting rewrites an already-materialized transaction in place for a
// provider-modified record and refreshes the ledger mapping's timestamp.
func (w *Writer) UpdateExisting(ctx context.Context, syncRec *domain.SyncRecord, rec provider.Record, res classify.Result) error {
	encrypted, err := w.cipher.Encrypt(rec.Description)
	if err != nil {
		return fmt.Errorf("encrypt description for %s: %w", rec.ExternalID, err)
	}

	metadata, err := encodeMetadata(rec, res)
	if err != nil {
		return err
	}

	patch := domain.TransactionPatch{
		Date:        res.Date,
		Amount:      res.Amount,
		Type:        res.Type,
		Description: encrypted,
		Metadata:    metadata,
	}
	if err := w.transactions.UpdateTransaction(ctx, syncRec.TransactionID, patch); err != nil {
		return fmt.Errorf("update transaction for %s: %w", rec.ExternalID, err)
	}

	if err := w.records.Touch(ctx, syncRec.ID, time.Now()); err != nil {
		return fmt.Errorf("touch dedup mapping for %s: %w", rec.ExternalID, err)
	}

	w.remember(rec.ExternalID, syncRec.TransactionID)
	return nil
}

// Remove deletes the local transaction and ledger mapping for a retracted
// external id. It reports whether anything was actually deleted; a retraction
// for an id never materialized is a no-op.
func (w *Writer) Remove(ctx context.Context, accountID, externalID string) (bool, error) {
	syncRec, err := w.records.GetByExternalID(ctx, accountID, externalID)
	if err != nil {
		return false, fmt.Errorf("dedup lookup for %s: %w", externalID, err)
	}
	if syncRec == nil {
		return false, nil
	}

	if err := w.transactions.DeleteTransaction(ctx, syncRec.TransactionID); err != nil {
		return false, fmt.Errorf("delete transaction for %s: %w", externalID, err)
	}
	if err := w.records.Delete(ctx, accountID, externalID); err != nil {
		return false, fmt.Errorf("delete dedup mapping for %s: %w", externalID, err)
	}

	w.forget(externalID)
	return true, nil
}

// suggestCategory asks the suggester for a category, best effort. Failures
// never block the write; the transaction is stored without a category.
func (w *Writer) suggestCategory(ctx context.Context, rec provider.Record, res classify.Result) string {
	if w.suggester == nil {
		return ""
	}

	categoryID, err := w.suggester.SuggestCategory(ctx, suggest.Input{
		Description: rec.Description,
		Merchant:    rec.MerchantName,
		Categories:  rec.Categories,
		Type:        string(res.Type),
		Amount:      res.Amount,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Debug().Err(err).Str("external_id", rec.ExternalID).Msg("category suggestion failed")
		return ""
	}
	return categoryID
}

func (w *Writer) lookup(externalID string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.seen[externalID]
	return id, ok
}

func (w *Writer) remember(externalID, transactionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[externalID] = transactionID
}

func (w *Writer) forget(externalID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.seen, externalID)
}

// recordMetadata preserves the classification-relevant provider signals as an
// opaque JSON blob for audit.
type recordMetadata struct {
	ExternalID      string   `json:"external_id"`
	RawAmount       float64  `json:"raw_amount"`
	MerchantName    string   `json:"merchant_name,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	TransactionType string   `json:"transaction_type,omitempty"`
	TransactionCode string   `json:"transaction_code,omitempty"`
	Pending         bool     `json:"pending"`
	IsTransfer      bool     `json:"is_transfer"`
}

func encodeMetadata(rec provider.Record, res classify.Result) (string, error) {
	blob, err := json.Marshal(recordMetadata{
		ExternalID:      rec.ExternalID,
		RawAmount:       rec.Amount,
		MerchantName:    rec.MerchantName,
		Categories:      rec.Categories,
		TransactionType: rec.TransactionType,
		TransactionCode: rec.TransactionCode,
		Pending:         rec.Pending,
		IsTransfer:      res.IsTransfer,
	})
	if err != nil {
		return "", fmt.Errorf("encode metadata for %s: %w", rec.ExternalID, err)
	}
	return string(blob), nil
}
