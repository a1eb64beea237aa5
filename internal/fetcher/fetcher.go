// Package fetcher issues one upstream search request per result page.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
	"github.com/Shamim-Fav/lvmh/internal/metrics"
	"github.com/Shamim-Fav/lvmh/internal/session"
)

// SessionSource yields the active upstream session.
type SessionSource interface {
	Get(ctx context.Context) (*session.Session, error)
}

// Config controls how search requests are built.
type Config struct {
	Endpoint          string
	IndexName         string
	HitsPerPage       int
	MaxValuesPerFacet int
	HighlightPreTag   string
	HighlightPostTag  string
}

func (c Config) withDefaults() Config {
	if c.HitsPerPage <= 0 {
		c.HitsPerPage = 50
	}
	if c.MaxValuesPerFacet <= 0 {
		c.MaxValuesPerFacet = 100
	}
	if c.HighlightPreTag == "" {
		c.HighlightPreTag = "__ais-highlight__"
	}
	if c.HighlightPostTag == "" {
		c.HighlightPostTag = "__/ais-highlight__"
	}
	return c
}

// facetList is requested on every search so the upstream returns its filter
// taxonomy alongside the hits.
var facetList = []string{
	"businessGroupFilter",
	"cityFilter",
	"contractFilter",
	"countryRegionFilter",
}

// Fetcher implements harvest.PageFetcher against the upstream search API.
type Fetcher struct {
	cfg      Config
	sessions SessionSource
	logger   *zap.Logger
}

// New builds a Fetcher. The logger may be nil.
func New(cfg Config, sessions SessionSource, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg.withDefaults(), sessions: sessions, logger: logger}
}

type searchPayload struct {
	Queries []searchQuery `json:"queries"`
}

type searchQuery struct {
	IndexName string       `json:"indexName"`
	Params    searchParams `json:"params"`
}

type searchParams struct {
	FacetFilters      [][]string `json:"facetFilters"`
	Facets            []string   `json:"facets"`
	Filters           string     `json:"filters"`
	HighlightPostTag  string     `json:"highlightPostTag"`
	HighlightPreTag   string     `json:"highlightPreTag"`
	HitsPerPage       int        `json:"hitsPerPage"`
	MaxValuesPerFacet int        `json:"maxValuesPerFacet"`
	Page              int        `json:"page"`
	Query             string     `json:"query"`
}

// FetchPage posts one search request for the given page index. The filter is
// a single OR-group over the selected regions conjoined with the fixed
// category:job constraint.
func (f *Fetcher) FetchPage(ctx context.Context, regions []harvest.Region, keyword string, page int) (harvest.SearchResponse, error) {
	sess, err := f.sessions.Get(ctx)
	if err != nil {
		var bootErr *harvest.BootstrapError
		if !errors.As(err, &bootErr) || sess == nil {
			return harvest.SearchResponse{}, &harvest.HTTPError{Err: err}
		}
		// Bootstrap failure is non-fatal; the search may still succeed.
		f.logger.Warn("continuing with degraded session", zap.Error(err))
	}

	body, err := json.Marshal(f.buildPayload(regions, keyword, page))
	if err != nil {
		return harvest.SearchResponse{}, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return harvest.SearchResponse{}, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := sess.Client().Do(req)
	if err != nil {
		metrics.ObserveSearchRequest(0, time.Since(start))
		return harvest.SearchResponse{}, &harvest.HTTPError{URL: f.cfg.Endpoint, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	metrics.ObserveSearchRequest(resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return harvest.SearchResponse{}, &harvest.HTTPError{StatusCode: resp.StatusCode, URL: f.cfg.Endpoint}
	}

	return parseResponse(resp.Body)
}

func (f *Fetcher) buildPayload(regions []harvest.Region, keyword string, page int) searchPayload {
	orGroup := make([]string, 0, len(regions))
	for _, r := range regions {
		orGroup = append(orGroup, "geographicAreaFilter:"+string(r))
	}
	return searchPayload{
		Queries: []searchQuery{{
			IndexName: f.cfg.IndexName,
			Params: searchParams{
				FacetFilters:      [][]string{orGroup},
				Facets:            facetList,
				Filters:           "category:job",
				HighlightPostTag:  f.cfg.HighlightPostTag,
				HighlightPreTag:   f.cfg.HighlightPreTag,
				HitsPerPage:       f.cfg.HitsPerPage,
				MaxValuesPerFacet: f.cfg.MaxValuesPerFacet,
				Page:              page,
				Query:             keyword,
			},
		}},
	}
}

// parseResponse decodes the body, distinguishing invalid JSON and a missing
// results key from an ordinary empty page.
func parseResponse(body io.Reader) (harvest.SearchResponse, error) {
	var envelope struct {
		Results *[]harvest.PageResult `json:"results"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return harvest.SearchResponse{}, &harvest.MalformedResponseError{Err: fmt.Errorf("decode body: %w", err)}
	}
	if envelope.Results == nil {
		return harvest.SearchResponse{}, &harvest.MalformedResponseError{Err: errors.New("response lacks results key")}
	}
	return harvest.SearchResponse{Results: *envelope.Results}, nil
}
