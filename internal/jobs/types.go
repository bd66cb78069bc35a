package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIndexTransaction re-indexes a transaction whose indexing failed
	// when it was submitted.
	JobTypeIndexTransaction JobType = "index_transaction"
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
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Done reports whether a job in this status will not run again.
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IndexJob asks for one ledger transaction to be added to its owner's
// vector index.
type IndexJob struct {
	JobID         string     `json:"job_id"`
	UserID        string     `json:"user_id"`
	TransactionID string     `json:"transaction_id"`
	Text          string     `json:"-"`
	Status        JobStatus  `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *IndexJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *IndexJob) GetType() JobType {
	return JobTypeIndexTransaction
}

// GetStatus implements the Job interface.
func (j *IndexJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishIndex(ctx context.Context, job *IndexJob) error
	Close() error
}

// Consumer runs a handler for every job it receives.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible
// for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state so it can be inspected through the API.
type JobStore interface {
	SaveJob(ctx context.Context, job *IndexJob) error
	GetJob(ctx context.Context, jobID string) (*IndexJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IndexJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}
