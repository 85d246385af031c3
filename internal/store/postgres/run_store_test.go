package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sigmetapp/seohqs-sub000/internal/analyzer"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
)

func newMockStore(t *testing.T) (*RunStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewRunStoreWithPool(mock, "analysis_runs")
	require.NoError(t, err)
	return s, mock
}

func TestCreateRunInsertsRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO analysis_runs").
		WithArgs(id, started, "running").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateRun(context.Background(), id, started))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgressGuardsRunning(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE analysis_runs SET percent").
		WithArgs(id, 45, int64(4500), int64(120), "running").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateProgress(context.Background(), id, 45, 4500, 120, time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRunWithError(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	finished := time.Unix(1700000100, 0).UTC()
	msg := "scan aborted"

	mock.ExpectExec("UPDATE analysis_runs SET finished_at").
		WithArgs(id, finished, "error", &msg, "running", "success").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteRun(context.Background(), id, finished, store.RunError, &msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResultRequiresRun(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	res := &analyzer.Result{TotalGoogleVisits: 3}
	payload, err := json.Marshal(res)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE analysis_runs SET result").
		WithArgs(id, payload).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, s.SaveResult(context.Background(), id, res), store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunMapsNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, started_at").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "started_at", "finished_at", "status",
			"percent", "total_lines", "bot_visits", "error_message",
		}))

	_, err := s.GetRun(context.Background(), id)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunScansRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT id, started_at").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "started_at", "finished_at", "status",
			"percent", "total_lines", "bot_visits", "error_message",
		}).AddRow(id, started, (*time.Time)(nil), "running", 45, int64(4500), int64(120), (*string)(nil)))

	run, err := s.GetRun(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, run.ID)
	require.Equal(t, store.RunRunning, run.Status)
	require.Equal(t, 45, run.Percent)
	require.Equal(t, int64(120), run.BotVisits)
	require.Nil(t, run.FinishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResultRoundTrip(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	payload, err := json.Marshal(&analyzer.Result{TotalGoogleVisits: 9, UniqueBots: 2})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT result FROM analysis_runs").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(payload))

	res, err := s.GetResult(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 9, res.TotalGoogleVisits)
	require.Equal(t, 2, res.UniqueBots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResultPendingRowIsNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT result FROM analysis_runs").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow([]byte(nil)))

	_, err := s.GetResult(context.Background(), id)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsScansAll(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	first := uuid.New()
	second := uuid.New()
	started := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT id, started_at").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "started_at", "finished_at", "status",
			"percent", "total_lines", "bot_visits", "error_message",
		}).
			AddRow(first, started, (*time.Time)(nil), "running", 10, int64(100), int64(5), (*string)(nil)).
			AddRow(second, started.Add(-time.Hour), (*time.Time)(nil), "success", 100, int64(900), int64(50), (*string)(nil)))

	runs, err := s.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, first, runs[0].ID)
	require.Equal(t, store.RunSuccess, runs[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidTableNameRejected(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRunStoreWithPool(mock, "runs; DROP TABLE runs")
	require.Error(t, err)
}
