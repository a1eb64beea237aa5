package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
	"github.com/Shamim-Fav/lvmh/internal/session"
)

type staticClock struct{ now time.Time }

func (c staticClock) Now() time.Time { return c.now }

// newTestFetcher points both the bootstrap and search traffic at srv.
func newTestFetcher(t *testing.T, srv *httptest.Server) *Fetcher {
	t.Helper()
	provider := session.NewProvider(session.Config{
		BootstrapURL: srv.URL + "/en/join-us/our-job-offers",
		Origin:       srv.URL,
		UserAgent:    "test-agent",
		MaxAttempts:  2,
		BackoffBase:  time.Millisecond,
	}, staticClock{now: time.Now()}, nil)
	return New(Config{
		Endpoint:  srv.URL + "/api/search",
		IndexName: "PRD-en-us-timestamp-desc",
	}, provider, nil)
}

func TestFetchPageBuildsSearchRequest(t *testing.T) {
	t.Parallel()
	payloadCh := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			return // bootstrap
		}
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		payloadCh <- payload
		_, _ = w.Write([]byte(`{"results":[{"hits":[]}]}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.FetchPage(context.Background(), []harvest.Region{harvest.RegionEurope, harvest.RegionAmerica}, "sales", 3)
	require.NoError(t, err)

	payload := <-payloadCh
	queries := payload["queries"].([]any)
	require.Len(t, queries, 1)
	query := queries[0].(map[string]any)
	require.Equal(t, "PRD-en-us-timestamp-desc", query["indexName"])

	params := query["params"].(map[string]any)
	require.Equal(t, "category:job", params["filters"])
	require.Equal(t, float64(50), params["hitsPerPage"])
	require.Equal(t, float64(100), params["maxValuesPerFacet"])
	require.Equal(t, float64(3), params["page"])
	require.Equal(t, "sales", params["query"])
	require.Equal(t, "__ais-highlight__", params["highlightPreTag"])
	require.Equal(t, "__/ais-highlight__", params["highlightPostTag"])

	// One OR-group holding every selected region.
	facetFilters := params["facetFilters"].([]any)
	require.Len(t, facetFilters, 1)
	orGroup := facetFilters[0].([]any)
	require.ElementsMatch(t, []any{
		"geographicAreaFilter:Europe",
		"geographicAreaFilter:America",
	}, orGroup)
}

func TestFetchPageParsesHits(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"hits":[{"name":"Sales Associate"},{"name":"Boutique Manager"}]}]}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv)
	resp, err := f.FetchPage(context.Background(), harvest.AllRegions(), "", 0)
	require.NoError(t, err)

	hits := resp.Hits()
	require.Len(t, hits, 2)
	require.Equal(t, "Sales Associate", hits[0].String("name"))
}

func TestFetchPageNonRetryableStatusIsHTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.FetchPage(context.Background(), harvest.AllRegions(), "", 0)

	var httpErr *harvest.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusForbidden, httpErr.StatusCode)
}

func TestFetchPageExhaustedRetriesIsHTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.FetchPage(context.Background(), harvest.AllRegions(), "", 0)

	var httpErr *harvest.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestFetchPageInvalidJSONIsMalformedResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			return
		}
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.FetchPage(context.Background(), harvest.AllRegions(), "", 0)

	var malformed *harvest.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestFetchPageMissingResultsKeyIsMalformedResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			return
		}
		_, _ = w.Write([]byte(`{"message":"unexpected shape"}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv)
	_, err := f.FetchPage(context.Background(), harvest.AllRegions(), "", 0)

	var malformed *harvest.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestFetchPageContinuesOnDegradedSession(t *testing.T) {
	t.Parallel()
	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"hits":[{"name":"Clienteling Advisor"}]}]}`))
	}))
	defer searchSrv.Close()

	// Bootstrap target is unreachable, so the provider hands back a
	// degraded session alongside a BootstrapError.
	deadSrv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	deadSrv.Close()

	provider := session.NewProvider(session.Config{
		BootstrapURL: deadSrv.URL + "/en/join-us/our-job-offers",
		UserAgent:    "test-agent",
		MaxAttempts:  2,
		BackoffBase:  time.Millisecond,
	}, staticClock{now: time.Now()}, nil)
	f := New(Config{Endpoint: searchSrv.URL + "/api/search"}, provider, nil)

	resp, err := f.FetchPage(context.Background(), harvest.AllRegions(), "", 0)
	require.NoError(t, err)
	require.Len(t, resp.Hits(), 1)
}
