// Package sinks provides Sink implementations for the progress hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/progress"
)

// LogSink emits structured logs for progress streams. This is the closest
// analogue of the original UI's progress bar: one line per page with the
// clamped fraction.
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

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	s.logger.Info("harvest progress",
		zap.String("harvest_id", evt.HarvestUUID().String()),
		zap.String("stage", string(evt.Stage)),
		zap.Int("page", evt.Page),
		zap.Int("page_hits", evt.PageHits),
		zap.Int("fetched", evt.Fetched),
		zap.Float64("fraction", evt.Fraction()),
		zap.Duration("dur", evt.Dur),
		zap.String("note", evt.Note),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
