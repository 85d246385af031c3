// Package memory provides an in-process RunRepository for tests and
// single-node deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sigmetapp/seohqs-sub000/internal/analyzer"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
)

// RunStore keeps runs and reports in maps guarded by a mutex.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]store.AnalysisRun
	results map[uuid.UUID]*analyzer.Result
}

// NewRunStore returns an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:    make(map[uuid.UUID]store.AnalysisRun),
		results: make(map[uuid.UUID]*analyzer.Result),
	}
}

// CreateRun registers the run in the running state. Re-registration of
// an existing run is a no-op so the progress sink and the API can race
// safely.
func (s *RunStore) CreateRun(_ context.Context, id uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; ok {
		return nil
	}
	s.runs[id] = store.AnalysisRun{
		ID:        id,
		StartedAt: startedAt.UTC(),
		Status:    store.RunRunning,
	}
	return nil
}

// UpdateProgress records the latest counters for a running run.
// Terminal runs ignore late ticks.
func (s *RunStore) UpdateProgress(_ context.Context, id uuid.UUID, percent int, lines, visits int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if run.Status != store.RunRunning {
		return nil
	}
	run.Percent = percent
	run.TotalLines = lines
	run.BotVisits = visits
	s.runs[id] = run
	return nil
}

// CompleteRun finalizes the run. The first terminal status wins; later
// transitions are ignored.
func (s *RunStore) CompleteRun(_ context.Context, id uuid.UUID, finishedAt time.Time, status store.RunStatus, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if run.Status != store.RunRunning {
		return nil
	}
	done := finishedAt.UTC()
	run.FinishedAt = &done
	run.Status = status
	run.ErrorMessage = errMsg
	if status == store.RunSuccess {
		run.Percent = 100
	}
	s.runs[id] = run
	return nil
}

// SaveResult stores the finished report for a run.
func (s *RunStore) SaveResult(_ context.Context, id uuid.UUID, result *analyzer.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return store.ErrNotFound
	}
	s.results[id] = result
	return nil
}

// GetRun returns the run row or store.ErrNotFound.
func (s *RunStore) GetRun(_ context.Context, id uuid.UUID) (store.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.AnalysisRun{}, store.ErrNotFound
	}
	return run, nil
}

// GetResult returns the stored report or store.ErrNotFound.
func (s *RunStore) GetResult(_ context.Context, id uuid.UUID) (*analyzer.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return res, nil
}

// ListRuns returns runs newest first, capped at limit. A non-positive
// limit returns everything.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]store.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]store.AnalysisRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID.String() < runs[j].ID.String()
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Close implements RunRepository; it performs no action.
func (s *RunStore) Close(context.Context) error {
	return nil
}
