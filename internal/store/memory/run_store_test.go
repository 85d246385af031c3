package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sigmetapp/seohqs-sub000/internal/analyzer"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
)

// TestRunLifecycle walks a run through create, progress, and completion.
func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	id := uuid.New()
	started := time.Now().UTC()

	require.NoError(t, s.CreateRun(ctx, id, started))
	require.NoError(t, s.UpdateProgress(ctx, id, 45, 4500, 120, started.Add(time.Second)))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, store.RunRunning, run.Status)
	require.Equal(t, 45, run.Percent)
	require.Equal(t, int64(4500), run.TotalLines)

	require.NoError(t, s.CompleteRun(ctx, id, started.Add(2*time.Second), store.RunSuccess, nil))
	run, err = s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, store.RunSuccess, run.Status)
	require.Equal(t, 100, run.Percent)
	require.NotNil(t, run.FinishedAt)
}

// TestCreateRunIdempotent preserves state when the same run registers twice.
func TestCreateRunIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	id := uuid.New()
	started := time.Now().UTC()

	require.NoError(t, s.CreateRun(ctx, id, started))
	require.NoError(t, s.UpdateProgress(ctx, id, 30, 100, 5, started))
	require.NoError(t, s.CreateRun(ctx, id, started.Add(time.Hour)))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 30, run.Percent)
	require.Equal(t, started, run.StartedAt)
}

// TestTerminalStateSticks ignores late ticks and repeated completion.
func TestTerminalStateSticks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	id := uuid.New()
	started := time.Now().UTC()
	msg := "scan aborted"

	require.NoError(t, s.CreateRun(ctx, id, started))
	require.NoError(t, s.CompleteRun(ctx, id, started, store.RunError, &msg))
	require.NoError(t, s.UpdateProgress(ctx, id, 99, 1, 1, started))
	require.NoError(t, s.CompleteRun(ctx, id, started, store.RunSuccess, nil))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, store.RunError, run.Status)
	require.Equal(t, 0, run.Percent)
	require.Equal(t, "scan aborted", *run.ErrorMessage)
}

// TestResultRoundTrip stores and retrieves a report for a known run.
func TestResultRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	id := uuid.New()

	require.ErrorIs(t, s.SaveResult(ctx, id, &analyzer.Result{}), store.ErrNotFound)
	require.NoError(t, s.CreateRun(ctx, id, time.Now()))

	res := &analyzer.Result{TotalGoogleVisits: 7}
	require.NoError(t, s.SaveResult(ctx, id, res))

	got, err := s.GetResult(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 7, got.TotalGoogleVisits)

	_, err = s.GetResult(ctx, uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestListRunsNewestFirst orders by start time descending and honors the cap.
func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	base := time.Now().UTC()
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, s.CreateRun(ctx, ids[i], base.Add(time.Duration(i)*time.Minute)))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, ids[2], runs[0].ID)
	require.Equal(t, ids[1], runs[1].ID)
}
