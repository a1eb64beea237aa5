// Package harvester drives the page fetcher across increasing page indexes
// until exhaustion or the safety cap, accumulating the raw record table.
package harvester

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
	"github.com/Shamim-Fav/lvmh/internal/progress"
)

// Config controls loop bounds.
type Config struct {
	// MaxRecords is the safety cap: the loop stops once the total exceeds
	// it, because empty-page termination is the only other bound and a
	// misbehaving upstream might never produce one. Default 5000.
	MaxRecords int
	// PageDelay is the mandatory courtesy pause between successive page
	// fetches. Default 500ms.
	PageDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRecords <= 0 {
		c.MaxRecords = 5000
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 500 * time.Millisecond
	}
	return c
}

// Harvester executes sequential harvest runs. Pagination is strictly
// sequential by contract with the upstream API; nothing here is concurrent.
type Harvester struct {
	fetcher harvest.PageFetcher
	cfg     Config
	clock   harvest.Clock
	emitter progress.Emitter
	logger  *zap.Logger
}

// New constructs a Harvester. Emitter and logger may be nil.
func New(fetcher harvest.PageFetcher, cfg Config, clock harvest.Clock, emitter progress.Emitter, logger *zap.Logger) *Harvester {
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		clock:   clock,
		emitter: emitter,
		logger:  logger,
	}
}

// Harvest accumulates every hit for the query, page by page, until the
// upstream returns an empty page or the safety cap trips. On a fetch error
// the partial table gathered so far is returned alongside the error rather
// than discarded.
func (h *Harvester) Harvest(ctx context.Context, id uuid.UUID, query harvest.Query) (harvest.RawTable, error) {
	regions := query.EffectiveRegions()
	eventID := progress.UUIDToBytes(id)
	start := time.Now()

	h.emitter.Emit(progress.Event{
		HarvestID: eventID,
		TS:        h.clock.Now(),
		Stage:     progress.StageHarvestStart,
		Note:      query.Keyword,
	})

	// Burst 1 makes the first Wait free and spaces every later fetch by
	// PageDelay, including the probe that discovers the empty page.
	limiter := rate.NewLimiter(rate.Every(h.cfg.PageDelay), 1)

	var records harvest.RawTable
	total := 0
	for page := 0; ; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return records, fmt.Errorf("courtesy delay wait: %w", err)
		}

		pageStart := time.Now()
		resp, err := h.fetcher.FetchPage(ctx, regions, query.Keyword, page)
		if err != nil {
			h.logger.Error("page fetch failed, keeping partial results",
				zap.Int("page", page),
				zap.Int("fetched", total),
				zap.Error(err),
			)
			h.emitter.Emit(progress.Event{
				HarvestID: eventID,
				TS:        h.clock.Now(),
				Stage:     progress.StageHarvestError,
				Page:      page,
				Fetched:   total,
				Dur:       time.Since(start),
				Note:      err.Error(),
			})
			return records, err
		}

		hits := resp.Hits()
		if len(hits) == 0 {
			break
		}
		records = append(records, hits...)
		total += len(hits)

		h.emitter.Emit(progress.Event{
			HarvestID: eventID,
			TS:        h.clock.Now(),
			Stage:     progress.StagePageDone,
			Page:      page,
			PageHits:  len(hits),
			Fetched:   total,
			Dur:       time.Since(pageStart),
		})

		if total > h.cfg.MaxRecords {
			h.logger.Warn("safety cap reached, stopping harvest",
				zap.Int("fetched", total),
				zap.Int("cap", h.cfg.MaxRecords),
			)
			break
		}
	}

	h.emitter.Emit(progress.Event{
		HarvestID: eventID,
		TS:        h.clock.Now(),
		Stage:     progress.StageHarvestDone,
		Fetched:   total,
		Dur:       time.Since(start),
	})
	return records, nil
}
