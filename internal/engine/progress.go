package engine

import (
	"context"

	"github.com/dvloznov/ledger-sync/internal/jobs"
	"github.com/dvloznov/ledger-sync/internal/logger"
)

// ProgressTracker surfaces a sync run's incremental counters through the job
// store so pollers can watch the run advance. A nil tracker is valid and
// discards all updates, which is how one-shot CLI runs operate.
type ProgressTracker struct {
	store jobs.JobStore
	jobID string
}

// NewProgressTracker links a sync run to its job record.
func NewProgressTracker(store jobs.JobStore, jobID string) *ProgressTracker {
	return &ProgressTracker{store: store, jobID: jobID}
}

// SetTotal records how many feed records the run will process.
func (p *ProgressTracker) SetTotal(ctx context.Context, total int) {
	if p == nil || p.store == nil {
		return
	}
	if err := p.store.SetTotalItems(ctx, p.jobID, total); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", p.jobID).Msg("failed to record total items")
	}
}

// Record folds a batch of per-record outcomes into the job's counters.
// Progress updates are best effort; a store failure never aborts the sync.
func (p *ProgressTracker) Record(ctx context.Context, delta jobs.ProgressDelta) {
	if p == nil || p.store == nil {
		return
	}
	if delta.Synced == 0 && delta.Skipped == 0 && delta.Errors == 0 {
		return
	}
	if _, err := p.store.IncrementProgress(ctx, p.jobID, delta); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", p.jobID).Msg("failed to record sync progress")
	}
}
