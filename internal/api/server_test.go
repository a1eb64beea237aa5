package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/cache"
	"github.com/Shamim-Fav/lvmh/internal/config"
	"github.com/Shamim-Fav/lvmh/internal/harvest"
	"github.com/Shamim-Fav/lvmh/internal/normalize"
	"github.com/Shamim-Fav/lvmh/internal/progress"
	"github.com/Shamim-Fav/lvmh/internal/progress/sinks"
	"github.com/Shamim-Fav/lvmh/internal/store/memory"
)

type staticClock struct{ now time.Time }

func (c staticClock) Now() time.Time { return c.now }

type stubRunner struct {
	mu    sync.Mutex
	table harvest.RawTable
	err   error
	calls int
}

func (r *stubRunner) Harvest(_ context.Context, _ uuid.UUID, _ harvest.Query) (harvest.RawTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.table, r.err
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testConfig() config.Config {
	return config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Upstream: config.UpstreamConfig{HitsPerPage: 50},
	}
}

func newTestServer(t *testing.T, runner Runner, resultCache *cache.Cache, cfg config.Config) *httptest.Server {
	return newTestServerWithProgress(t, runner, resultCache, cfg, nil)
}

func newTestServerWithProgress(t *testing.T, runner Runner, resultCache *cache.Cache, cfg config.Config, progressSink ProgressSource) *httptest.Server {
	t.Helper()
	s := NewServer(
		runner,
		memory.NewRunStore(),
		resultCache,
		normalize.New(normalize.Config{}),
		progressSink,
		staticClock{now: time.Now().UTC()},
		cfg,
		zap.NewNop(),
	)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postHarvest(t *testing.T, srv *httptest.Server, body string) (*http.Response, createHarvestResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/harvests", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	var out createHarvestResponse
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &stubRunner{}, nil, testConfig())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateHarvestHappyPath(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{table: harvest.RawTable{
		{"name": "Sales Associate", "maison": "Dior", "city": "Paris"},
		{"name": "Client Advisor", "maison": "Fendi", "city": "Roma"},
	}}
	srv := newTestServer(t, runner, nil, testConfig())

	resp, out := postHarvest(t, srv, `{"keyword":"sales","regions":["Europe"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, harvest.StatusSucceeded, out.Status)
	require.Equal(t, 2, out.Records)
	require.Equal(t, 1, out.Pages)
	require.False(t, out.Cached)
	_, err := uuid.Parse(out.HarvestID)
	require.NoError(t, err)
}

func TestCreateHarvestRejectsBadInput(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &stubRunner{}, nil, testConfig())

	resp, _ := postHarvest(t, srv, `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postHarvest(t, srv, `{"keyword":"x","regions":["Atlantis"]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateHarvestPartialRun(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{
		table: harvest.RawTable{{"name": "A"}},
		err:   &harvest.HTTPError{StatusCode: 503, URL: "upstream"},
	}
	srv := newTestServer(t, runner, nil, testConfig())

	resp, out := postHarvest(t, srv, `{"keyword":"sales"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, harvest.StatusPartial, out.Status)
	require.Equal(t, 1, out.Records)

	// The partial table still exports.
	csvResp, err := http.Get(srv.URL + "/v1/harvests/" + out.HarvestID + "/raw.csv")
	require.NoError(t, err)
	defer csvResp.Body.Close()
	require.Equal(t, http.StatusOK, csvResp.StatusCode)
}

func TestCreateHarvestFailedRun(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{err: &harvest.HTTPError{StatusCode: 500, URL: "upstream"}}
	srv := newTestServer(t, runner, nil, testConfig())

	resp, out := postHarvest(t, srv, `{"keyword":"sales"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, harvest.StatusFailed, out.Status)
	require.Zero(t, out.Records)
}

func TestGetHarvestReturnsRunMetadata(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{table: harvest.RawTable{{"name": "A"}}}
	srv := newTestServer(t, runner, nil, testConfig())

	_, out := postHarvest(t, srv, `{"keyword":"sales"}`)

	resp, err := http.Get(srv.URL + "/v1/harvests/" + out.HarvestID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run harvest.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	require.Equal(t, out.HarvestID, run.ID)
	require.Equal(t, harvest.StatusSucceeded, run.Status)
	require.Equal(t, "sales", run.Query.Keyword)
}

func TestGetHarvestUnknownID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &stubRunner{}, nil, testConfig())

	for _, path := range []string{"", "/raw.csv", "/normalized.csv", "/archive.zip"} {
		resp, err := http.Get(srv.URL + "/v1/harvests/" + uuid.NewString() + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestRawCSVExport(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{table: harvest.RawTable{{"name": "Sales Associate", "maison": "Dior"}}}
	srv := newTestServer(t, runner, nil, testConfig())
	_, out := postHarvest(t, srv, `{"keyword":"sales"}`)

	resp, err := http.Get(srv.URL + "/v1/harvests/" + out.HarvestID + "/raw.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "lvmh_jobs_raw.csv")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\xef\xbb\xbf")))
	require.Contains(t, buf.String(), "Sales Associate")
}

func TestNormalizedCSVExport(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{table: harvest.RawTable{
		{"name": "Sales Associate", "maison": "Dior", "city": "Paris"},
	}}
	srv := newTestServer(t, runner, nil, testConfig())
	_, out := postHarvest(t, srv, `{"keyword":"sales"}`)

	resp, err := http.Get(srv.URL + "/v1/harvests/" + out.HarvestID + "/normalized.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Name,Slug,Collection ID")
	require.Contains(t, buf.String(), "dior-sales-associate-paris")
}

func TestArchiveExport(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{table: harvest.RawTable{{"name": "A"}}}
	srv := newTestServer(t, runner, nil, testConfig())
	_, out := postHarvest(t, srv, `{"keyword":"sales"}`)

	resp, err := http.Get(srv.URL + "/v1/harvests/" + out.HarvestID + "/archive.zip")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/zip", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	// ZIP magic.
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")))
}

func TestCacheShortCircuitsRepeatedQuery(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{table: harvest.RawTable{{"name": "A"}}}
	resultCache := cache.New(time.Minute, staticClock{now: time.Now()})
	srv := newTestServer(t, runner, resultCache, testConfig())

	_, first := postHarvest(t, srv, `{"keyword":"sales","regions":["Europe","America"]}`)
	require.False(t, first.Cached)

	// Region order must not defeat the cache.
	_, second := postHarvest(t, srv, `{"keyword":"sales","regions":["America","Europe"]}`)
	require.True(t, second.Cached)
	require.Equal(t, first.Records, second.Records)
	require.NotEqual(t, first.HarvestID, second.HarvestID)
	require.Equal(t, 1, runner.callCount())
}

func TestPartialRunNotCached(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{
		table: harvest.RawTable{{"name": "A"}},
		err:   &harvest.HTTPError{StatusCode: 503, URL: "upstream"},
	}
	resultCache := cache.New(time.Minute, staticClock{now: time.Now()})
	srv := newTestServer(t, runner, resultCache, testConfig())

	postHarvest(t, srv, `{"keyword":"sales"}`)
	postHarvest(t, srv, `{"keyword":"sales"}`)
	require.Equal(t, 2, runner.callCount())
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "sesame"}
	srv := newTestServer(t, &stubRunner{}, nil, cfg)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "sesame")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetProgress(t *testing.T) {
	t.Parallel()
	sink := sinks.NewMemorySink()
	srv := newTestServerWithProgress(t, &stubRunner{}, nil, testConfig(), sink)

	id := uuid.New()
	require.NoError(t, sink.Consume(context.Background(), progress.Event{
		HarvestID: progress.UUIDToBytes(id),
		TS:        time.Now().UTC(),
		Stage:     progress.StagePageDone,
		Page:      3,
		PageHits:  50,
		Fetched:   200,
	}))

	resp, err := http.Get(srv.URL + "/v1/harvests/" + id.String() + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "PAGE_DONE", out["stage"])
	require.Equal(t, float64(200), out["fetched"])
	require.InDelta(t, 0.08, out["fraction"], 1e-9)

	// Unknown harvest has no recorded progress.
	resp, err = http.Get(srv.URL + "/v1/harvests/" + uuid.NewString() + "/progress")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetProgressDisabled(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &stubRunner{}, nil, testConfig())

	resp, err := http.Get(srv.URL + "/v1/harvests/" + uuid.NewString() + "/progress")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &stubRunner{}, nil, testConfig())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	_, err = uuid.Parse(resp.Header.Get("X-Request-ID"))
	require.NoError(t, err)
}
