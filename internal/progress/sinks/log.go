// Package sinks provides progress.Sink implementations for logging,
// metrics export, and durable run state.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/sigmetapp/seohqs-sub000/internal/progress"
)

// LogSink emits structured logs for progress streams. Useful during
// development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("progress event",
			zap.ByteString("run_id", evt.RunID[:]),
			zap.String("stage", string(evt.Stage)),
			zap.Int("percent", evt.Percent),
			zap.Int64("lines_processed", evt.LinesProcessed),
			zap.Int64("bot_visits", evt.BotVisits),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
