package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigmetapp/seohqs-sub000/internal/progress"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
)

// StoreSink persists run lifecycle state via a store.RunRepository. Tick
// events are collapsed to the latest per run within a batch to reduce
// write amplification.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards lifecycle transitions and collapsed tick deltas to
// the repository. Repository errors abort the batch and are returned to
// the hub.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	latestTick := make(map[uuid.UUID]progress.Event)

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageAnalysisStart:
			if err := s.repo.CreateRun(ctx, runID, evt.TS); err != nil {
				return fmt.Errorf("create run: %w", err)
			}
		case progress.StageAnalysisTick:
			latestTick[runID] = evt
		case progress.StageAnalysisDone:
			delete(latestTick, runID)
			if err := s.completeRun(ctx, runID, evt, store.RunSuccess); err != nil {
				return err
			}
		case progress.StageAnalysisError:
			delete(latestTick, runID)
			if err := s.completeRun(ctx, runID, evt, store.RunError); err != nil {
				return err
			}
		}
	}

	for runID, evt := range latestTick {
		err := s.repo.UpdateProgress(ctx, runID, evt.Percent, evt.LinesProcessed, evt.BotVisits, evt.TS)
		if err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
	}
	return nil
}

// completeRun writes the terminal event's counters through first:
// CompleteRun records only status, so without this the row would keep
// whatever the last flushed tick carried.
func (s *StoreSink) completeRun(ctx context.Context, runID uuid.UUID, evt progress.Event, status store.RunStatus) error {
	err := s.repo.UpdateProgress(ctx, runID, evt.Percent, evt.LinesProcessed, evt.BotVisits, evt.TS)
	if err != nil {
		return fmt.Errorf("record final counters: %w", err)
	}
	var note *string
	if evt.Note != "" {
		note = &evt.Note
	}
	if err := s.repo.CompleteRun(ctx, runID, evt.TS, status, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
