package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avlasov/spendlens/internal/jobs"
)

const (
	// defaultMaxRetries bounds attempts for jobs that don't set their own.
	defaultMaxRetries = 3

	// workerCount stays at one: concurrent builds would race writing the
	// same artifact files and burn duplicate embedding calls.
	workerCount = 1
)

// Queue is a channel-backed implementation of jobs.Publisher and
// jobs.Consumer for a single process. Job state is mirrored into the
// JobStore so the jobs API can report progress. The Publisher and Consumer
// seams leave room for a broker-backed queue later.
type Queue struct {
	builds chan *jobs.IndexBuildJob
	quit   chan struct{}

	workers sync.WaitGroup
	mu      sync.RWMutex
	closed  bool

	store jobs.JobStore
}

// NewQueue creates a queue holding up to bufferSize unstarted builds before
// PublishIndexBuild blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		builds: make(chan *jobs.IndexBuildJob, bufferSize),
		quit:   make(chan struct{}),
		store:  store,
	}
}

// PublishIndexBuild enqueues a build. Fresh jobs get an ID, pending status,
// a creation time and the default retry budget filled in. A fresh build for
// a source that already has one pending coalesces onto the pending job: the
// passed job takes over its state and nothing new is enqueued, since both
// builds would read the same data.
func (q *Queue) PublishIndexBuild(ctx context.Context, job *jobs.IndexBuildJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		if dup := q.pendingFor(ctx, job.Source); dup != nil {
			*job = *dup
			return nil
		}
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.builds <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return fmt.Errorf("queue is closed")
	}
}

// pendingFor returns a pending job for the same source, if the store knows
// one. Best effort: a store error just disables coalescing for this call.
func (q *Queue) pendingFor(ctx context.Context, source string) *jobs.IndexBuildJob {
	if q.store == nil {
		return nil
	}
	pending, err := q.store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	if err != nil {
		return nil
	}
	for _, p := range pending {
		if p.Source == source {
			return p
		}
	}
	return nil
}

// Start launches the worker pool. It returns immediately; workers run until
// ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < workerCount; i++ {
		q.workers.Add(1)
		go q.run(ctx, handler)
	}
	return nil
}

func (q *Queue) run(ctx context.Context, handler jobs.JobHandler) {
	defer q.workers.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.quit:
			return
		case job := <-q.builds:
			q.execute(ctx, job, handler)
		}
	}
}

// execute runs one attempt and records the outcome. A failed attempt with
// retries left is re-enqueued after a backoff that grows with each attempt.
func (q *Queue) execute(ctx context.Context, job *jobs.IndexBuildJob, handler jobs.JobHandler) {
	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.save(ctx, job)

	err := handler(ctx, job)

	finished := time.Now()
	job.CompletedAt = &finished

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case job.RetryCount < job.MaxRetries:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		q.scheduleRetry(ctx, job)
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	}
	q.save(ctx, job)
}

func (q *Queue) scheduleRetry(ctx context.Context, job *jobs.IndexBuildJob) {
	backoff := time.Duration(job.RetryCount) * time.Second
	time.AfterFunc(backoff, func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		_ = q.PublishIndexBuild(ctx, job)
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.IndexBuildJob) {
	if q.store == nil {
		return
	}
	_ = q.store.SaveJob(ctx, job)
}

// Stop closes the queue and waits for workers to wind down, honoring the
// context deadline. Builds still sitting in the buffer stay pending in the
// store and are not processed.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
