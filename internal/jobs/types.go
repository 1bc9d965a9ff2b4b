package jobs

import (
	"context"
	"time"
)

// JobType identifies what kind of work a job carries.
type JobType string

const (
	// JobTypeIndexBuild rebuilds the embedding index from a spend data source.
	JobTypeIndexBuild JobType = "index_build"
)

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	// JobStatusPending means the job is queued and not yet picked up.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning means a worker is processing the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted means the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means the job exhausted its retry budget.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying means the last attempt failed and another is scheduled.
	JobStatusRetrying JobStatus = "retrying"
)

// IndexBuildJob asks for a full rebuild of the embedding index from a spend
// data source.
type IndexBuildJob struct {
	JobID string `json:"job_id"`

	// Source is the data source reference to index: empty for the
	// configured default, a local path, gs://bucket/object or bq://table.
	Source string `json:"source,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// RowsIndexed is how many rows the completed build embedded.
	RowsIndexed int `json:"rows_indexed"`

	// Warnings carries data quality warnings from the indexed dataset.
	Warnings []string `json:"warnings,omitempty"`

	// Error holds the last attempt's failure message, empty on success.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is the minimal surface the queue needs from any job type.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *IndexBuildJob) GetID() string        { return j.JobID }
func (j *IndexBuildJob) GetType() JobType     { return JobTypeIndexBuild }
func (j *IndexBuildJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs for asynchronous processing.
type Publisher interface {
	PublishIndexBuild(ctx context.Context, job *IndexBuildJob) error
	Close() error
}

// Consumer drains the queue. Start returns once workers are launched; Stop
// waits for in-flight jobs up to the context deadline.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the attempt failed
// and schedules a retry while attempts remain.
type JobHandler func(ctx context.Context, job Job) error

// JobStore records job state so the jobs API can report it.
type JobStore interface {
	SaveJob(ctx context.Context, job *IndexBuildJob) error
	GetJob(ctx context.Context, jobID string) (*IndexBuildJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IndexBuildJob, error)
}

// JobFilter narrows a ListJobs call. Zero fields match everything.
type JobFilter struct {
	Source string
	Status JobStatus
	Limit  int
	Offset int
}

// Matches reports whether the job passes the Source and Status filters.
// Limit and Offset are applied by the store after filtering.
func (f JobFilter) Matches(j *IndexBuildJob) bool {
	if f.Source != "" && j.Source != f.Source {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return true
}
