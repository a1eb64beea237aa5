// Package api exposes the HTTP interface for the harvester service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/cache"
	"github.com/Shamim-Fav/lvmh/internal/config"
	"github.com/Shamim-Fav/lvmh/internal/export"
	"github.com/Shamim-Fav/lvmh/internal/harvest"
	"github.com/Shamim-Fav/lvmh/internal/metrics"
	"github.com/Shamim-Fav/lvmh/internal/normalize"
	"github.com/Shamim-Fav/lvmh/internal/progress"
)

// Runner executes one harvest run against the upstream.
type Runner interface {
	Harvest(ctx context.Context, id uuid.UUID, query harvest.Query) (harvest.RawTable, error)
}

// ProgressSource answers progress polls for in-flight harvests.
type ProgressSource interface {
	Latest(id uuid.UUID) (progress.Event, bool)
}

// harvestTimeout bounds a synchronous run end to end; a full harvest at the
// default courtesy delay needs a few minutes.
const harvestTimeout = 10 * time.Minute

// Server wires HTTP handlers to the harvest pipeline and the run store.
type Server struct {
	router     chi.Router
	runner     Runner
	store      harvest.Store
	cache      *cache.Cache
	normalizer *normalize.Normalizer
	progressor ProgressSource
	clock      harvest.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. Cache and
// progress may be nil to disable memoization and progress polling.
func NewServer(
	runner Runner,
	store harvest.Store,
	resultCache *cache.Cache,
	normalizer *normalize.Normalizer,
	progressor ProgressSource,
	clock harvest.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:     runner,
		store:      store,
		cache:      resultCache,
		normalizer: normalizer,
		progressor: progressor,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(harvestTimeout))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/harvests", func(r chi.Router) {
			r.Post("/", s.createHarvest)
			r.Route("/{harvest_id}", func(r chi.Router) {
				r.Get("/", s.getHarvest)
				r.Get("/progress", s.getProgress)
				r.Get("/raw.csv", s.getRawCSV)
				r.Get("/normalized.csv", s.getNormalizedCSV)
				r.Get("/archive.zip", s.getArchive)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createHarvestRequest struct {
	Keyword string   `json:"keyword"`
	Regions []string `json:"regions"`
}

type createHarvestResponse struct {
	HarvestID string         `json:"harvest_id"`
	Status    harvest.Status `json:"status"`
	Records   int            `json:"records"`
	Pages     int            `json:"pages"`
	Cached    bool           `json:"cached"`
}

func (s *Server) createHarvest(w http.ResponseWriter, r *http.Request) {
	var req createHarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	query, err := toQuery(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	run := harvest.Run{
		ID:      id,
		Query:   query,
		Status:  harvest.StatusRunning,
		Started: s.clock.Now(),
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		s.writeError(w, http.StatusInternalServerError, "create run")
		return
	}

	if s.cache != nil {
		if table, ok := s.cache.Get(query); ok {
			run = s.finishRun(r.Context(), run, table, nil)
			s.writeJSON(w, http.StatusCreated, createHarvestResponse{
				HarvestID: id,
				Status:    run.Status,
				Records:   run.Records,
				Pages:     run.Pages,
				Cached:    true,
			})
			return
		}
	}

	table, harvestErr := s.runner.Harvest(r.Context(), uuid.MustParse(id), query)
	run = s.finishRun(r.Context(), run, table, harvestErr)

	if s.cache != nil && harvestErr == nil {
		s.cache.Put(query, table)
	}

	s.writeJSON(w, http.StatusCreated, createHarvestResponse{
		HarvestID: id,
		Status:    run.Status,
		Records:   run.Records,
		Pages:     run.Pages,
	})
}

// finishRun records the terminal state of a run and keeps whatever table
// was gathered, including a partial one.
func (s *Server) finishRun(ctx context.Context, run harvest.Run, table harvest.RawTable, harvestErr error) harvest.Run {
	run.Status = harvest.StatusSucceeded
	if harvestErr != nil {
		run.Status = harvest.StatusPartial
		if len(table) == 0 {
			run.Status = harvest.StatusFailed
		}
		run.ErrorText = harvestErr.Error()
	}
	run.Records = len(table)
	run.Pages = pageCount(len(table), s.cfg.Upstream.HitsPerPage)
	run.Finished = s.clock.Now()

	if err := s.store.FinishRun(ctx, run, table); err != nil {
		s.logger.Error("finish run failed", zap.String("harvest_id", run.ID), zap.Error(err))
	}
	return run
}

func (s *Server) getHarvest(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

type progressResponse struct {
	HarvestID string    `json:"harvest_id"`
	Stage     string    `json:"stage"`
	Page      int       `json:"page"`
	Fetched   int       `json:"fetched"`
	Fraction  float64   `json:"fraction"`
	Note      string    `json:"note,omitempty"`
	TS        time.Time `json:"ts"`
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	if s.progressor == nil {
		s.writeError(w, http.StatusNotFound, "progress tracking disabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "harvest_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed harvest id")
		return
	}
	evt, ok := s.progressor.Latest(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no progress recorded")
		return
	}
	s.writeJSON(w, http.StatusOK, progressResponse{
		HarvestID: id.String(),
		Stage:     string(evt.Stage),
		Page:      evt.Page,
		Fetched:   evt.Fetched,
		Fraction:  evt.Fraction(),
		Note:      evt.Note,
		TS:        evt.TS,
	})
}

func (s *Server) getRawCSV(w http.ResponseWriter, r *http.Request) {
	table, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	metrics.ObserveExport("raw_csv")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.RawCSVName+`"`)
	if err := export.WriteRawCSV(w, table); err != nil {
		s.logger.Error("raw csv export failed", zap.Error(err))
	}
}

func (s *Server) getNormalizedCSV(w http.ResponseWriter, r *http.Request) {
	table, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	metrics.ObserveExport("normalized_csv")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.NormalizedCSVName+`"`)
	if err := export.WriteNormalizedCSV(w, s.normalizer.Normalize(table)); err != nil {
		s.logger.Error("normalized csv export failed", zap.Error(err))
	}
}

func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	table, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	metrics.ObserveExport("archive_zip")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="lvmh_jobs.zip"`)
	if err := export.WriteArchive(w, table, s.normalizer.Normalize(table)); err != nil {
		s.logger.Error("archive export failed", zap.Error(err))
	}
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (harvest.Run, bool) {
	id := chi.URLParam(r, "harvest_id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, harvest.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, "harvest not found")
		} else {
			s.writeError(w, http.StatusInternalServerError, "fetch run")
		}
		return harvest.Run{}, false
	}
	return run, true
}

func (s *Server) lookupTable(w http.ResponseWriter, r *http.Request) (harvest.RawTable, bool) {
	id := chi.URLParam(r, "harvest_id")
	table, err := s.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, harvest.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, "harvest not found")
		} else {
			s.writeError(w, http.StatusInternalServerError, "fetch table")
		}
		return nil, false
	}
	return table, true
}

func toQuery(req createHarvestRequest) (harvest.Query, error) {
	q := harvest.Query{Keyword: req.Keyword}
	for _, raw := range req.Regions {
		region, ok := harvest.ParseRegion(raw)
		if !ok {
			return harvest.Query{}, fmt.Errorf("unknown region %q", raw)
		}
		q.Regions = append(q.Regions, region)
	}
	return q, nil
}

// pageCount estimates consumed pages from the record count; the upstream
// fills every page except the last.
func pageCount(records, hitsPerPage int) int {
	if records <= 0 || hitsPerPage <= 0 {
		return 0
	}
	return (records + hitsPerPage - 1) / hitsPerPage
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
