package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avlasov/spendlens/internal/jobs"
)

// waitForStatus polls the store until the job reaches want or the deadline
// passes.
func waitForStatus(t *testing.T, store jobs.JobStore, jobID string, want jobs.JobStatus) *jobs.IndexBuildJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last seen: %+v", jobID, want, job)
	return nil
}

func TestPublishIndexBuildDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	job := &jobs.IndexBuildJob{Source: "data/spend.csv"}
	if err := q.PublishIndexBuild(context.Background(), job); err != nil {
		t.Fatalf("PublishIndexBuild() error = %v", err)
	}

	if job.JobID == "" {
		t.Error("JobID not assigned")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", job.MaxRetries)
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if saved.Source != "data/spend.csv" {
		t.Errorf("saved Source = %q", saved.Source)
	}
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		build := job.(*jobs.IndexBuildJob)
		build.RowsIndexed = 7
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.IndexBuildJob{}
	if err := q.PublishIndexBuild(context.Background(), job); err != nil {
		t.Fatalf("PublishIndexBuild() error = %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RowsIndexed != 7 {
		t.Errorf("RowsIndexed = %d, want 7", done.RowsIndexed)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}
	if done.Error != "" {
		t.Errorf("Error = %q, want empty", done.Error)
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var calls atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) == 1 {
			return errors.New("transient embedding failure")
		}
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.IndexBuildJob{}
	if err := q.PublishIndexBuild(context.Background(), job); err != nil {
		t.Fatalf("PublishIndexBuild() error = %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", done.RetryCount)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("handler calls = %d, want 2", got)
	}
}

func TestQueueFailsAfterMaxRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		return errors.New("provider down")
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.IndexBuildJob{MaxRetries: 1}
	if err := q.PublishIndexBuild(context.Background(), job); err != nil {
		t.Fatalf("PublishIndexBuild() error = %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if done.Error != "provider down" {
		t.Errorf("Error = %q", done.Error)
	}
	if done.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", done.RetryCount)
	}
}

func TestPublishCoalescesPendingDuplicate(t *testing.T) {
	store := NewStore()
	// No Start: published jobs stay pending in the buffer.
	q := NewQueue(10, store)
	defer q.Close()

	first := &jobs.IndexBuildJob{Source: "data/spend.csv"}
	if err := q.PublishIndexBuild(context.Background(), first); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	second := &jobs.IndexBuildJob{Source: "data/spend.csv"}
	if err := q.PublishIndexBuild(context.Background(), second); err != nil {
		t.Fatalf("second publish: %v", err)
	}

	if second.JobID != first.JobID {
		t.Errorf("duplicate pending build got its own job %s, want %s", second.JobID, first.JobID)
	}
	all, err := store.ListJobs(context.Background(), jobs.JobFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("store holds %d jobs, want 1", len(all))
	}

	other := &jobs.IndexBuildJob{Source: "data/other.csv"}
	if err := q.PublishIndexBuild(context.Background(), other); err != nil {
		t.Fatalf("other publish: %v", err)
	}
	if other.JobID == first.JobID {
		t.Error("builds for different sources must not coalesce")
	}
}

func TestQueueRejectsPublishAfterStop(t *testing.T) {
	q := NewQueue(10, NewStore())

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := q.PublishIndexBuild(context.Background(), &jobs.IndexBuildJob{}); err == nil {
		t.Error("PublishIndexBuild() after Stop succeeded")
	}
	// Stopping twice is a no-op.
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
