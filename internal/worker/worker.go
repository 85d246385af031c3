// Package worker implements the analysis execution loop.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigmetapp/seohqs-sub000/internal/analyzer"
	"github.com/sigmetapp/seohqs-sub000/internal/clock"
	"github.com/sigmetapp/seohqs-sub000/internal/metrics"
	"github.com/sigmetapp/seohqs-sub000/internal/progress"
	"github.com/sigmetapp/seohqs-sub000/internal/publisher"
	"github.com/sigmetapp/seohqs-sub000/internal/queue"
	"github.com/sigmetapp/seohqs-sub000/internal/storage"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
)

// Config controls Worker behavior.
type Config struct {
	// Workers is the number of concurrent analysis goroutines (default 2).
	Workers int
	// Topic receives completion notifications.
	Topic string
	// ArchivePrefix is the object key prefix for archived reports.
	ArchivePrefix string
}

// CompletionMessage is the payload published when a run finishes.
type CompletionMessage struct {
	RunID      string  `json:"run_id"`
	Status     string  `json:"status"`
	TotalLines int64   `json:"total_lines"`
	BotVisits  int64   `json:"bot_visits"`
	ArchiveURI string  `json:"archive_uri,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// Worker consumes queued submissions and runs the analyzer on each.
type Worker struct {
	analyzer *analyzer.Analyzer
	queue    queue.Queue
	repo     store.RunRepository
	blobs    storage.BlobStore
	pub      publisher.Publisher
	hub      progress.Emitter
	clock    clock.Clock
	cfg      Config
	logger   *zap.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// New constructs a Worker. blobs and pub may be nil to disable
// archiving and notifications.
func New(
	an *analyzer.Analyzer,
	q queue.Queue,
	repo store.RunRepository,
	blobs storage.BlobStore,
	pub publisher.Publisher,
	hub progress.Emitter,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Topic == "" {
		cfg.Topic = "analysis-completions"
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "reports"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		analyzer: an,
		queue:    q,
		repo:     repo,
		blobs:    blobs,
		pub:      pub,
		hub:      hub,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Run blocks, consuming queue items until the context finishes. It
// spawns cfg.Workers goroutines and waits for all of them.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			return
		}
		w.logger.Debug("dequeued run", zap.String("run_id", item.RunID.String()))
		w.processRun(ctx, item)
	}
}

// Cancel aborts a running analysis. It reports whether the run was
// active on this worker.
func (w *Worker) Cancel(id uuid.UUID) bool {
	w.mu.Lock()
	cancel, ok := w.cancels[id]
	w.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (w *Worker) processRun(ctx context.Context, item queue.Item) {
	// The run may have been canceled while it sat in the queue. Drop
	// the item instead of scanning and publishing against a terminal
	// row.
	if run, err := w.repo.GetRun(ctx, item.RunID); err == nil && run.Status != store.RunRunning {
		w.logger.Info("dropping queued item for finished run",
			zap.String("run_id", item.RunID.String()),
			zap.String("status", string(run.Status)),
		)
		return
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancels[item.RunID] = cancel
	w.mu.Unlock()
	defer func() {
		cancel()
		w.mu.Lock()
		delete(w.cancels, item.RunID)
		w.mu.Unlock()
	}()

	started := w.clock.Now()
	runID := progress.UUIDToBytes(item.RunID)
	w.hub.Emit(progress.Event{RunID: runID, TS: started, Stage: progress.StageAnalysisStart})

	// The callback runs on this goroutine, so the counters below need
	// no locking. They hold the last snapshot when the scan dies early.
	var lines, visits int64
	var lastPercent int
	res, err := w.analyzer.Analyze(runCtx, item.Text, func(p analyzer.Progress) {
		lastPercent = p.Percent
		lines = p.Lines
		visits = p.BotVisits
		w.hub.Emit(progress.Event{
			RunID:          runID,
			TS:             w.clock.Now(),
			Stage:          progress.StageAnalysisTick,
			Percent:        p.Percent,
			LinesProcessed: p.Lines,
			BotVisits:      p.BotVisits,
		})
	})
	finished := w.clock.Now()
	dur := finished.Sub(started)
	if res != nil {
		lines = int64(res.DetailedAnalysis.Step1.TotalLines)
		visits = int64(res.TotalGoogleVisits)
	}

	if err != nil {
		w.finishWithError(ctx, item.RunID, runCtx, err, lastPercent, lines, visits, dur)
		return
	}

	if err := w.repo.SaveResult(ctx, item.RunID, res); err != nil {
		w.logger.Error("save result failed",
			zap.String("run_id", item.RunID.String()), zap.Error(err))
		w.finishWithError(ctx, item.RunID, nil, fmt.Errorf("persist report: %w", err), lastPercent, lines, visits, dur)
		return
	}

	archiveURI := w.archiveReport(ctx, item.RunID, res)

	w.hub.Emit(progress.Event{
		RunID:          runID,
		TS:             finished,
		Stage:          progress.StageAnalysisDone,
		Percent:        100,
		LinesProcessed: lines,
		BotVisits:      visits,
		Dur:            dur,
	})
	w.publishCompletion(ctx, CompletionMessage{
		RunID:      item.RunID.String(),
		Status:     string(store.RunSuccess),
		TotalLines: lines,
		BotVisits:  visits,
		ArchiveURI: archiveURI,
	})
	w.logger.Info("analysis complete",
		zap.String("run_id", item.RunID.String()),
		zap.Int64("lines", lines),
		zap.Int64("bot_visits", visits),
		zap.Duration("dur", dur),
	)
}

// finishWithError maps cancellation and scan faults to terminal states.
// Cancellation is recorded directly because the canceled status is not
// part of the event vocabulary; the partial counters are written first
// so the row reflects how far the scan got.
func (w *Worker) finishWithError(ctx context.Context, id uuid.UUID, runCtx context.Context, scanErr error, percent int, lines, visits int64, dur time.Duration) {
	runID := progress.UUIDToBytes(id)
	status := store.RunError
	if runCtx != nil && runCtx.Err() != nil && ctx.Err() == nil {
		status = store.RunCanceled
	}
	msg := scanErr.Error()

	if status == store.RunCanceled {
		if err := w.repo.UpdateProgress(ctx, id, percent, lines, visits, w.clock.Now()); err != nil {
			w.logger.Error("record partial progress failed",
				zap.String("run_id", id.String()), zap.Error(err))
		}
		if err := w.repo.CompleteRun(ctx, id, w.clock.Now(), store.RunCanceled, &msg); err != nil {
			w.logger.Error("record cancellation failed",
				zap.String("run_id", id.String()), zap.Error(err))
		}
	} else {
		w.hub.Emit(progress.Event{
			RunID:          runID,
			TS:             w.clock.Now(),
			Stage:          progress.StageAnalysisError,
			Percent:        percent,
			LinesProcessed: lines,
			BotVisits:      visits,
			Dur:            dur,
			Note:           msg,
		})
	}
	w.publishCompletion(ctx, CompletionMessage{
		RunID:      id.String(),
		Status:     string(status),
		TotalLines: lines,
		BotVisits:  visits,
		Error:      &msg,
	})
	w.logger.Warn("analysis did not complete",
		zap.String("run_id", id.String()),
		zap.String("status", string(status)),
		zap.Error(scanErr),
	)
}

// archiveReport uploads the report JSON and returns its URI, or empty
// when archiving is disabled or fails. Archive failures do not fail the
// run; the report is already persisted in the store.
func (w *Worker) archiveReport(ctx context.Context, id uuid.UUID, res *analyzer.Result) string {
	if w.blobs == nil {
		return ""
	}
	payload, err := json.Marshal(res)
	if err != nil {
		w.logger.Error("marshal report for archive failed",
			zap.String("run_id", id.String()), zap.Error(err))
		return ""
	}
	key := path.Join(w.cfg.ArchivePrefix, id.String()+".json")
	uri, err := w.blobs.PutObject(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		w.logger.Error("archive report failed",
			zap.String("run_id", id.String()), zap.Error(err))
		return ""
	}
	return uri
}

func (w *Worker) publishCompletion(ctx context.Context, msg CompletionMessage) {
	if w.pub == nil {
		return
	}
	if _, err := w.pub.Publish(ctx, w.cfg.Topic, msg); err != nil {
		w.logger.Error("publish completion failed",
			zap.String("run_id", msg.RunID), zap.Error(err))
	}
}
