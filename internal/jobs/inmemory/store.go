package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/avlasov/spendlens/internal/jobs"
)

// Store keeps job state in memory. It is safe for concurrent use; contents
// are lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.IndexBuildJob
}

// NewStore creates an empty in-memory job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.IndexBuildJob)}
}

// SaveJob inserts or replaces the stored state for job.JobID.
func (s *Store) SaveJob(ctx context.Context, job *jobs.IndexBuildJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy so later caller mutations don't bleed in.
	cp := *job
	s.jobs[cp.JobID] = &cp
	return nil
}

// GetJob returns a copy of the stored job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IndexBuildJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns matching jobs newest first, with offset and limit applied
// after sorting so pages are stable between calls.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IndexBuildJob, error) {
	s.mu.RLock()
	matched := lo.FilterMap(lo.Values(s.jobs), func(j *jobs.IndexBuildJob, _ int) (*jobs.IndexBuildJob, bool) {
		if !filter.Matches(j) {
			return nil, false
		}
		cp := *j
		return &cp, true
	})
	s.mu.RUnlock()

	sort.Slice(matched, func(i, k int) bool {
		if !matched[i].CreatedAt.Equal(matched[k].CreatedAt) {
			return matched[i].CreatedAt.After(matched[k].CreatedAt)
		}
		return matched[i].JobID < matched[k].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*jobs.IndexBuildJob{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

var _ jobs.JobStore = (*Store)(nil)
