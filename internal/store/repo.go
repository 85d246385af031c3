// Package store defines persistence contracts for analysis runs and
// their finished reports.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sigmetapp/seohqs-sub000/internal/analyzer"
)

// ErrNotFound is returned when a run or its result does not exist.
var ErrNotFound = errors.New("run not found")

// RunStatus enumerates the lifecycle states of an analysis run.
type RunStatus string

// Run lifecycle states.
const (
	RunRunning  RunStatus = "running"
	RunSuccess  RunStatus = "success"
	RunError    RunStatus = "error"
	RunCanceled RunStatus = "canceled"
)

// AnalysisRun is the persisted view of one log analysis.
type AnalysisRun struct {
	ID           uuid.UUID  `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       RunStatus  `json:"status"`
	Percent      int        `json:"percent"`
	TotalLines   int64      `json:"total_lines"`
	BotVisits    int64      `json:"bot_visits"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// RunRepository persists run lifecycle state and finished reports.
// Implementations must be safe for concurrent use.
type RunRepository interface {
	// CreateRun registers a new run in the running state.
	CreateRun(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	// UpdateProgress records the latest scan counters for a run.
	UpdateProgress(ctx context.Context, id uuid.UUID, percent int, lines, visits int64, at time.Time) error
	// CompleteRun finalizes a run with a terminal status and optional
	// failure message.
	CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// SaveResult stores the finished report for a run.
	SaveResult(ctx context.Context, id uuid.UUID, result *analyzer.Result) error
	// GetRun returns the run row or ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (AnalysisRun, error)
	// GetResult returns the stored report or ErrNotFound.
	GetResult(ctx context.Context, id uuid.UUID) (*analyzer.Result, error)
	// ListRuns returns runs ordered by start time descending, newest
	// first, capped at limit.
	ListRuns(ctx context.Context, limit int) ([]AnalysisRun, error)
	// Close releases underlying resources.
	Close(ctx context.Context) error
}
