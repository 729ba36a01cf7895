package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSyncAccount represents an account synchronization job.
	JobTypeSyncAccount JobType = "sync_account"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// SyncAccountJob represents a job to synchronize one account against the
// provider feed. Its counters are the import progress visible to clients:
// ProcessedItems always equals SyncedItems + SkippedItems + ErrorItems.
type SyncAccountJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// ConnectionID is the provider connection to pull from.
	ConnectionID string `json:"connection_id"`

	// AccountID is the local account being synchronized.
	AccountID string `json:"account_id"`

	// ExternalAccountID is the provider-side account identifier.
	ExternalAccountID string `json:"external_account_id"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// TotalItems is the number of feed records discovered for this run.
	TotalItems int `json:"total_items"`

	// ProcessedItems is the number of records handled so far.
	ProcessedItems int `json:"processed_items"`

	// SyncedItems is the number of records that changed the ledger.
	SyncedItems int `json:"synced_items"`

	// SkippedItems is the number of records skipped as duplicates or no-ops.
	SkippedItems int `json:"skipped_items"`

	// ErrorItems is the number of records that failed individually.
	ErrorItems int `json:"error_items"`

	// Progress is the completion percentage, 0 to 100.
	Progress int `json:"progress"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SyncAccountJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SyncAccountJob) GetType() JobType {
	return JobTypeSyncAccount
}

// GetStatus implements the Job interface.
func (j *SyncAccountJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishSyncAccount publishes an account synchronization job.
	PublishSyncAccount(ctx context.Context, job *SyncAccountJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// ProgressDelta is a batch of per-record outcomes to fold into a job's
// counters. Each field is a count of records, not an absolute value.
type ProgressDelta struct {
	Synced  int
	Skipped int
	Errors  int
}

// JobStore defines the interface for storing and retrieving job status.
// This allows tracking job execution across service restarts.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SyncAccountJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SyncAccountJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncAccountJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error

	// SetTotalItems records how many feed records the run will process and
	// recomputes the percentage.
	SetTotalItems(ctx context.Context, jobID string, total int) error

	// IncrementProgress folds per-record outcomes into the job's counters
	// atomically, keeping processed = synced + skipped + errors.
	IncrementProgress(ctx context.Context, jobID string, delta ProgressDelta) (*SyncAccountJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// AccountID filters jobs by account ID.
	AccountID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
