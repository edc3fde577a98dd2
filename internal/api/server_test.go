package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/fingerprint"
	"github.com/newsgrab/newsgrab/internal/metrics"
	"github.com/newsgrab/newsgrab/internal/scraper"
	"github.com/newsgrab/newsgrab/internal/storage/memory"
)

type fakeClock struct{}

func (fakeClock) Now() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n), nil
}

type staticUnits struct {
	units []scraper.ExecutionUnit
}

func (s *staticUnits) Units() []scraper.ExecutionUnit { return s.units }

func newTestServer(t *testing.T, units UnitLister) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore(fakeClock{}, &seqIDs{})
	srv := httptest.NewServer(NewServer(store, units, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	var body map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &body))
	require.Equal(t, "ok", body["status"])
}

func TestStatusReportsUnits(t *testing.T) {
	t.Parallel()

	units := &staticUnits{units: []scraper.ExecutionUnit{
		{JobID: "job-1", BatchID: 0, Status: scraper.UnitStatusRunning},
	}}
	srv, _ := newTestServer(t, units)

	var body struct {
		Units []scraper.ExecutionUnit `json:"units"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/status", &body))
	require.Len(t, body.Units, 1)
	require.Equal(t, "job-1", body.Units[0].JobID)
}

func TestStatusWithoutOrchestrator(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	var body struct {
		Units []scraper.ExecutionUnit `json:"units"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/status", &body))
	require.Empty(t, body.Units)
}

func TestSeedsRoundTrip(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/v1/seeds/", "application/json",
		strings.NewReader(`{"url":"https://example.com/news","label":"front","priority":5}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Seeds []scraper.ManagedSeed `json:"seeds"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/seeds/", &body))
	require.Len(t, body.Seeds, 1)
	require.Equal(t, "https://example.com/news", body.Seeds[0].URL)
	require.Equal(t, 5, body.Seeds[0].Priority)
}

func TestAddSeedRejectsMissingURL(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/v1/seeds/", "application/json", strings.NewReader(`{"label":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, nil)
	_, err := store.StoreRecord(t.Context(), &scraper.Record{URL: "https://example.com/a", Content: "x"}, "p")
	require.NoError(t, err)

	var body struct {
		WindowDays int              `json:"window_days"`
		Stats      map[string]int64 `json:"stats"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/stats?days=3", &body))
	require.Equal(t, 3, body.WindowDays)
	require.Equal(t, int64(1), body.Stats["articles_scraped"])
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, nil)
	_, err := store.StoreRecord(t.Context(), &scraper.Record{URL: "https://example.com/a", Content: "x"}, "p")
	require.NoError(t, err)

	hash := fingerprint.URLHash("https://example.com/a")
	var body struct {
		History []scraper.HistoryEntry `json:"history"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/history/"+hash, &body))
	require.Len(t, body.History, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.Init()
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
