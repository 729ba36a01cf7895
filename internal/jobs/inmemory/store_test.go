package inmemory

import (
	"context"
	"sync"
	"testing"

	"github.com/dvloznov/ledger-sync/internal/jobs"
)

func TestStoreSaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.SyncAccountJob{
		JobID:     "job-1",
		AccountID: "acct-1",
		Status:    jobs.JobStatusPending,
	}

	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.AccountID != "acct-1" || got.Status != jobs.JobStatusPending {
		t.Errorf("GetJob() = %+v", got)
	}

	// Mutating the returned copy must not affect the stored job.
	got.Status = jobs.JobStatusFailed
	again, _ := store.GetJob(ctx, "job-1")
	if again.Status != jobs.JobStatusPending {
		t.Error("GetJob() returned a live reference, not a copy")
	}

	if _, err := store.GetJob(ctx, "missing"); err == nil {
		t.Error("GetJob() for missing job: expected error")
	}

	if err := store.SaveJob(ctx, &jobs.SyncAccountJob{}); err == nil {
		t.Error("SaveJob() without id: expected error")
	}
}

func TestStoreListJobsFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.SyncAccountJob{
		{JobID: "j1", AccountID: "a1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", AccountID: "a1", Status: jobs.JobStatusRunning},
		{JobID: "j3", AccountID: "a2", Status: jobs.JobStatusRunning},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob() error = %v", err)
		}
	}

	byAccount, err := store.ListJobs(ctx, jobs.JobFilter{AccountID: "a1"})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(byAccount) != 2 {
		t.Errorf("ListJobs(account a1) = %d jobs, want 2", len(byAccount))
	}

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusRunning})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(byStatus) != 2 {
		t.Errorf("ListJobs(status running) = %d jobs, want 2", len(byStatus))
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("ListJobs(limit 1) = %d jobs, want 1", len(limited))
	}
}

func TestStoreProgressCounters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.SaveJob(ctx, &jobs.SyncAccountJob{JobID: "job-1", Status: jobs.JobStatusRunning}); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}
	if err := store.SetTotalItems(ctx, "job-1", 10); err != nil {
		t.Fatalf("SetTotalItems() error = %v", err)
	}

	job, err := store.IncrementProgress(ctx, "job-1", jobs.ProgressDelta{Synced: 3, Skipped: 1, Errors: 1})
	if err != nil {
		t.Fatalf("IncrementProgress() error = %v", err)
	}

	if job.ProcessedItems != 5 {
		t.Errorf("ProcessedItems = %d, want 5", job.ProcessedItems)
	}
	if job.Progress != 50 {
		t.Errorf("Progress = %d, want 50", job.Progress)
	}

	job, err = store.IncrementProgress(ctx, "job-1", jobs.ProgressDelta{Synced: 5})
	if err != nil {
		t.Fatalf("IncrementProgress() error = %v", err)
	}
	if job.ProcessedItems != 10 || job.Progress != 100 {
		t.Errorf("job = %+v, want 10 processed at 100%%", job)
	}
	if job.ProcessedItems != job.SyncedItems+job.SkippedItems+job.ErrorItems {
		t.Errorf("counter invariant broken: %+v", job)
	}
}

func TestStoreProgressConcurrent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.SaveJob(ctx, &jobs.SyncAccountJob{JobID: "job-1", Status: jobs.JobStatusRunning}); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}
	if err := store.SetTotalItems(ctx, "job-1", 300); err != nil {
		t.Fatalf("SetTotalItems() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementProgress(ctx, "job-1", jobs.ProgressDelta{Synced: 1, Skipped: 1, Errors: 1}); err != nil {
				t.Errorf("IncrementProgress() error = %v", err)
			}
		}()
	}
	wg.Wait()

	job, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.ProcessedItems != 300 {
		t.Errorf("ProcessedItems = %d, want 300", job.ProcessedItems)
	}
	if job.ProcessedItems != job.SyncedItems+job.SkippedItems+job.ErrorItems {
		t.Errorf("counter invariant broken: %+v", job)
	}
	if job.Progress != 100 {
		t.Errorf("Progress = %d, want 100", job.Progress)
	}
}
