package sinks

import (
	"context"

	"github.com/Shamim-Fav/lvmh/internal/metrics"
	"github.com/Shamim-Fav/lvmh/internal/progress"
)

// PrometheusSink forwards progress milestones to the metrics collectors.
type PrometheusSink struct{}

// NewPrometheusSink ensures the collectors exist and returns the sink.
func NewPrometheusSink() *PrometheusSink {
	metrics.Init()
	return &PrometheusSink{}
}

// Consume translates events into counter/histogram observations.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StagePageDone:
		metrics.ObservePage(evt.PageHits)
	case progress.StageHarvestDone:
		metrics.ObserveHarvest("succeeded", evt.Dur)
	case progress.StageHarvestError:
		metrics.ObserveHarvest("partial", evt.Dur)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
