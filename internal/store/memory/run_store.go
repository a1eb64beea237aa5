// Package memory provides the in-memory run store. The service keeps no
// persistence; results live for the lifetime of the process.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
)

// RunStore is a mutex-guarded implementation of harvest.Store.
type RunStore struct {
	mu     sync.RWMutex
	runs   map[string]harvest.Run
	tables map[string]harvest.RawTable
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:   make(map[string]harvest.Run),
		tables: make(map[string]harvest.RawTable),
	}
}

// CreateRun records a new run. The ID must be unused.
func (s *RunStore) CreateRun(_ context.Context, run harvest.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	s.runs[run.ID] = run
	return nil
}

// FinishRun stores the run's terminal state together with its table. The
// table is kept even for partial runs so a degraded harvest still exports.
func (s *RunStore) FinishRun(_ context.Context, run harvest.Run, raw harvest.RawTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return harvest.ErrRunNotFound
	}
	s.runs[run.ID] = run
	s.tables[run.ID] = append(harvest.RawTable(nil), raw...)
	return nil
}

// GetRun fetches run metadata by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (harvest.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return harvest.Run{}, harvest.ErrRunNotFound
	}
	return run, nil
}

// GetTable fetches the harvested table for a finished run.
func (s *RunStore) GetTable(_ context.Context, id string) (harvest.RawTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[id]
	if !ok {
		return nil, harvest.ErrRunNotFound
	}
	out := make(harvest.RawTable, len(table))
	copy(out, table)
	return out, nil
}
