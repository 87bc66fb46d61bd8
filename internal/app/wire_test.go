package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
	"github.com/attaboy/sportsbet/internal/guard"
	"github.com/attaboy/sportsbet/internal/infra"
	"github.com/attaboy/sportsbet/internal/repository/repotest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps(store *repotest.Store) RouterDeps {
	reg := prometheus.NewRegistry()
	return RouterDeps{
		Store: store,
		Repos: store.Set(),
		Keys:  guard.NewMemoryKeyStore(nil),
		Config: &infra.Config{
			CORSAllowedOrigins:  "*",
			PlacementRateLimit:  10,
			PlacementRateWindow: time.Minute,
			IdempotencyTTL:      time.Second,
			SettlementBatchSize: 10,
		},
		Gatherer: reg,
		Metrics:  infra.NewMetrics(reg),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRouter_PlaceThenSettle(t *testing.T) {
	store := repotest.New()
	deps := testDeps(store)
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	user := store.AddProfile("100")
	match := store.AddMatch("Home", "Away")

	body := `{"user_id":"` + user.String() + `","match_id":"` + match.String() + `","stake":50,"odds":2.0,"selection":"home_team"}`
	resp, err := http.Post(srv.URL+"/bets", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "50", store.Balance(user).String())

	store.FinishMatch(match, domain.ResultHomeWin)
	worker := NewSettlementWorker(store, deps.Repos, deps.Config, deps.Metrics, deps.Logger)
	report, err := worker.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.BetsSettled)
	assert.Equal(t, "150", store.Balance(user).String())
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(NewRouter(testDeps(repotest.New())))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "sportsbet_settlement_winnings_total")
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := httptest.NewServer(NewRouter(testDeps(repotest.New())))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/bets")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
