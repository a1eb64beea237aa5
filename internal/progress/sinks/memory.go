package sinks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Shamim-Fav/lvmh/internal/progress"
)

// MemorySink keeps the most recent event per harvest so the API can answer
// progress polls while a run is underway.
type MemorySink struct {
	mu     sync.RWMutex
	latest map[uuid.UUID]progress.Event
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{latest: make(map[uuid.UUID]progress.Event)}
}

// Consume replaces the stored event for the harvest.
func (s *MemorySink) Consume(_ context.Context, evt progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[evt.HarvestUUID()] = evt
	return nil
}

// Latest returns the newest event recorded for the harvest.
func (s *MemorySink) Latest(id uuid.UUID) (progress.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evt, ok := s.latest[id]
	return evt, ok
}

// Close implements the Sink interface; it performs no action.
func (s *MemorySink) Close(context.Context) error {
	return nil
}
