package harvest

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned by a Store when no run carries the given ID.
var ErrRunNotFound = errors.New("run not found")

// PageFetcher fetches one page of search results.
type PageFetcher interface {
	FetchPage(ctx context.Context, regions []Region, keyword string, page int) (SearchResponse, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Store keeps completed harvest runs and their tables for later export.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run, raw RawTable) error
	GetRun(ctx context.Context, id string) (Run, error)
	GetTable(ctx context.Context, id string) (RawTable, error)
}
