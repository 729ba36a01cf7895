// Package engine drives incremental ledger synchronization: it pulls the
// provider's change feed page by page, classifies each record, and
// materializes the results idempotently into the local ledger.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/ledger-sync/internal/classify"
	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/jobs"
	"github.com/dvloznov/ledger-sync/internal/logger"
	"github.com/dvloznov/ledger-sync/internal/provider"
	"github.com/dvloznov/ledger-sync/internal/secure"
	"github.com/dvloznov/ledger-sync/internal/store"
	"github.com/dvloznov/ledger-sync/internal/suggest"
)

const (
	// defaultBatchSize is how many records are applied between progress
	// updates and inter-batch delays.
	defaultBatchSize = 50
	// defaultBatchDelay bounds burst load on downstream systems. It is a
	// backpressure valve, not a correctness requirement.
	defaultBatchDelay = 100 * time.Millisecond
)

// ProviderClient pulls pages of the incremental change feed.
type ProviderClient interface {
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*provider.SyncPage, error)
}

// Summary is the aggregate outcome of one sync run.
type Summary struct {
	Synced         int `json:"synced"`
	Skipped        int `json:"skipped"`
	Errors         int `json:"errors"`
	TotalProcessed int `json:"total_processed"`
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Provider     ProviderClient
	Classifier   *classify.Engine
	Transactions store.TransactionStore
	Records      store.SyncRecordStore
	Cursors      store.CursorStore
	Accounts     store.AccountStore
	Connections  store.ConnectionStore
	Cipher       *secure.Cipher
	Suggester    suggest.Suggester
}

// Config tunes batching. Zero values use the defaults; a negative BatchDelay
// disables the inter-batch delay entirely.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Orchestrator runs sync attempts. Concurrent runs for the same account are
// safe: there is no per-account lock, the writer's dedup layers make
// overlapping materialization harmless and the cursor store's compare-and-set
// keeps the cursor consistent.
type Orchestrator struct {
	deps       Deps
	batchSize  int
	batchDelay time.Duration
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchDelay := cfg.BatchDelay
	if batchDelay == 0 {
		batchDelay = defaultBatchDelay
	}
	if batchDelay < 0 {
		batchDelay = 0
	}
	return &Orchestrator{deps: deps, batchSize: batchSize, batchDelay: batchDelay}
}

// Sync pulls the full change feed for one connection and applies the records
// belonging to the given local account. progress may be nil.
//
// Records are applied added first, then modified, then removed, so a record
// both added and later retracted in the same feed window resolves to absent.
// A per-record failure is counted and does not abort the run; only a provider
// error without the mutation-conflict code is fatal.
func (o *Orchestrator) Sync(ctx context.Context, connectionID, accountID, externalAccountID string, progress *ProgressTracker) (*Summary, error) {
	log := logger.FromContext(ctx)

	conn, err := o.deps.Connections.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("load connection %s: %w", connectionID, err)
	}
	if conn == nil {
		return nil, fmt.Errorf("connection not found: %s", connectionID)
	}

	acct, err := o.deps.Accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account not found: %s", accountID)
	}

	feed, err := o.pull(ctx, connectionID, conn.AccessToken)
	if err != nil {
		return nil, err
	}

	added := filterRecords(feed.added, externalAccountID)
	modified := filterRecords(feed.modified, externalAccountID)
	removed := filterRemoved(feed.removed, externalAccountID)

	progress.SetTotal(ctx, len(added)+len(modified)+len(removed))

	writer := NewWriter(o.deps.Transactions, o.deps.Records, o.deps.Cipher, o.deps.Suggester)
	existing, err := o.deps.Records.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load dedup ledger for %s: %w", accountID, err)
	}
	writer.Seed(existing)

	summary := &Summary{}

	err = applyBatched(ctx, o, summary, progress, len(added), func(ctx context.Context, i int) recordOutcome {
		return o.applyAdded(ctx, writer, acct, added[i])
	})
	if err != nil {
		return nil, err
	}

	err = applyBatched(ctx, o, summary, progress, len(modified), func(ctx context.Context, i int) recordOutcome {
		return o.applyModified(ctx, writer, acct, modified[i])
	})
	if err != nil {
		return nil, err
	}

	err = applyBatched(ctx, o, summary, progress, len(removed), func(ctx context.Context, i int) recordOutcome {
		return o.applyRemoved(ctx, writer, accountID, removed[i])
	})
	if err != nil {
		return nil, err
	}

	if err := o.deps.Accounts.UpdateLastSyncedAt(ctx, accountID, time.Now()); err != nil {
		log.Warn().Err(err).Str("account_id", accountID).Msg("failed to record last_synced_at")
	}

	log.Info().
		Str("connection_id", connectionID).
		Str("account_id", accountID).
		Int("synced", summary.Synced).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("sync completed")

	return summary, nil
}

// feed accumulates one attempt's records across all pages; final counts must
// reflect the whole attempt, not the last page.
type feed struct {
	added    []provider.Record
	modified []provider.Record
	removed  []provider.RemovedRecord
}

// pull drives the pagination loop. On a mutation-during-pagination error the
// accumulated records are discarded and the loop restarts from the cursor in
// effect when the provider first signaled more pages (falling back to the
// stored cursor). The restart is a protocol-level retry, not an error, and is
// unbounded: only the provider terminating cleanly ends it.
//
// The cursor is persisted after every page except while recovering from a
// conflict; the final cursor is persisted once pagination completes either
// way, so the stored cursor never advances past unmaterialized data by more
// than the in-flight attempt that will re-pull it.
func (o *Orchestrator) pull(ctx context.Context, connectionID, accessToken string) (*feed, error) {
	log := logger.FromContext(ctx)

	storedCursor, err := o.deps.Cursors.GetCursor(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("load cursor for %s: %w", connectionID, err)
	}

	var (
		acc            feed
		cursor         = storedCursor
		lastSaved      = storedCursor
		originalCursor string
		captured       bool
		recovering     bool
	)

	for {
		page, err := o.deps.Provider.SyncTransactions(ctx, accessToken, cursor)
		if err != nil {
			if provider.IsMutationConflict(err) {
				acc = feed{}
				if captured {
					cursor = originalCursor
				} else {
					cursor = storedCursor
				}
				recovering = true
				log.Warn().Str("connection_id", connectionID).Msg("feed mutated during pagination, restarting pull")
				continue
			}
			return nil, fmt.Errorf("provider sync for %s: %w", connectionID, err)
		}

		if page.HasMore && !captured {
			originalCursor = cursor
			captured = true
		}

		acc.added = append(acc.added, page.Added...)
		acc.modified = append(acc.modified, page.Modified...)
		acc.removed = append(acc.removed, page.Removed...)

		if !recovering {
			saved, err := o.deps.Cursors.SaveCursor(ctx, connectionID, lastSaved, page.NextCursor)
			if err != nil {
				return nil, fmt.Errorf("save cursor for %s: %w", connectionID, err)
			}
			if saved {
				lastSaved = page.NextCursor
			}
			// A lost compare-and-set means another run advanced the cursor;
			// redoing its work is safe under the dedup guard.
		}

		cursor = page.NextCursor
		if !page.HasMore {
			break
		}
	}

	if recovering && lastSaved != cursor {
		saved, err := o.deps.Cursors.SaveCursor(ctx, connectionID, lastSaved, cursor)
		if err != nil {
			return nil, fmt.Errorf("save cursor for %s: %w", connectionID, err)
		}
		if !saved {
			log.Warn().Str("connection_id", connectionID).Msg("lost cursor advance to a concurrent sync")
		}
	}

	return &acc, nil
}

type recordOutcome int

const (
	outcomeSynced recordOutcome = iota
	outcomeSkipped
	outcomeError
)

// applyBatched walks n records in fixed-size batches, folding outcomes into
// the summary and progress after each batch and yielding briefly between
// batches.
func applyBatched(ctx context.Context, o *Orchestrator, summary *Summary, progress *ProgressTracker, n int, apply func(ctx context.Context, i int) recordOutcome) error {
	for start := 0; start < n; start += o.batchSize {
		end := min(start+o.batchSize, n)

		var delta jobs.ProgressDelta
		for i := start; i < end; i++ {
			switch apply(ctx, i) {
			case outcomeSynced:
				delta.Synced++
			case outcomeSkipped:
				delta.Skipped++
			case outcomeError:
				delta.Errors++
			}
		}

		summary.Synced += delta.Synced
		summary.Skipped += delta.Skipped
		summary.Errors += delta.Errors
		summary.TotalProcessed += end - start
		progress.Record(ctx, delta)

		if end < n && o.batchDelay > 0 {
			select {
			case <-time.After(o.batchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (o *Orchestrator) applyAdded(ctx context.Context, writer *Writer, acct *domain.Account, rec provider.Record) recordOutcome {
	log := logger.FromContext(ctx)

	res, err := o.deps.Classifier.Classify(rec, acct.Type)
	if err != nil {
		log.Warn().Err(err).Str("external_id", rec.ExternalID).Msg("classification failed")
		return outcomeError
	}

	_, created, err := writer.Materialize(ctx, acct, rec, res)
	if err != nil {
		log.Warn().Err(err).Str("external_id", rec.ExternalID).Msg("failed to materialize record")
		return outcomeError
	}
	if !created {
		return outcomeSkipped
	}
	return outcomeSynced
}

// applyModified updates an already-materialized transaction in place; a
// modified record never seen before runs the added path instead.
func (o *Orchestrator) applyModified(ctx context.Context, writer *Writer, acct *domain.Account, rec provider.Record) recordOutcome {
	log := logger.FromContext(ctx)

	syncRec, err := o.deps.Records.GetByExternalID(ctx, acct.ID, rec.ExternalID)
	if err != nil {
		log.Warn().Err(err).Str("external_id", rec.ExternalID).Msg("dedup lookup failed")
		return outcomeError
	}
	if syncRec == nil {
		return o.applyAdded(ctx, writer, acct, rec)
	}

	res, err := o.deps.Classifier.Classify(rec, acct.Type)
	if err != nil {
		log.Warn().Err(err).Str("external_id", rec.ExternalID).Msg("classification failed")
		return outcomeError
	}

	if err := writer.UpdateExisting(ctx, syncRec, rec, res); err != nil {
		log.Warn().Err(err).Str("external_id", rec.ExternalID).Msg("failed to update record")
		return outcomeError
	}
	return outcomeSynced
}

func (o *Orchestrator) applyRemoved(ctx context.Context, writer *Writer, accountID string, rec provider.RemovedRecord) recordOutcome {
	log := logger.FromContext(ctx)

	deleted, err := writer.Remove(ctx, accountID, rec.ExternalID)
	if err != nil {
		log.Warn().Err(err).Str("external_id", rec.ExternalID).Msg("failed to remove record")
		return outcomeError
	}
	if !deleted {
		return outcomeSkipped
	}
	return outcomeSynced
}

func filterRecords(recs []provider.Record, externalAccountID string) []provider.Record {
	var out []provider.Record
	for _, rec := range recs {
		if rec.ExternalAccountID == externalAccountID {
			out = append(out, rec)
		}
	}
	return out
}

func filterRemoved(recs []provider.RemovedRecord, externalAccountID string) []provider.RemovedRecord {
	var out []provider.RemovedRecord
	for _, rec := range recs {
		if rec.ExternalAccountID == externalAccountID {
			out = append(out, rec)
		}
	}
	return out
}
