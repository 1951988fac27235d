package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/game"
	"idlerealm/internal/logger"
	"idlerealm/internal/quest"
	"idlerealm/internal/runner"
	"idlerealm/internal/save"
	"idlerealm/internal/telemetry"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	handler http.Handler
	runner  *runner.Runner
	clock   *game.FakeClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := config.Defaults()
	reg := catalog.MustDefault()
	clock := game.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))

	repo, err := save.NewFileRepo(t.TempDir())
	require.NoError(t, err)
	store := save.Store{Repo: repo, Catalog: reg, Balance: cfg.Balance}

	r := runner.New(runner.Options{
		Engine: game.Engine{Catalog: reg, Balance: cfg.Balance, Loc: time.UTC},
		Clock:  clock,
		Saver:  store,
		Slot:   cfg.Save.Slot,
	})
	h, err := NewHandler(Options{
		Config: cfg,
		Runner: r,
		Saves:  repo,
		Clock:  clock,
		Log:    logger.Discard(),
	})
	require.NoError(t, err)
	return &testApp{handler: h, runner: r, clock: clock}
}

func (a *testApp) request(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewHandler_RequiresDeps(t *testing.T) {
	_, err := NewHandler(Options{})
	assert.Error(t, err)
	_, err = NewHandler(Options{Config: config.Defaults()})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rec := app.request(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCommand_ChangesState(t *testing.T) {
	app := newTestApp(t)

	rec := app.request(http.MethodPost, "/api/commands", map[string]any{
		"type": "select_action", "playerId": "1", "actionId": "woodcutting",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[game.State](t, rec)
	assert.Equal(t, catalog.ActionID("woodcutting"), st.Players["1"].SelectedActionID)

	rec = app.request(http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[game.State](t, rec)
	assert.Equal(t, catalog.ActionID("woodcutting"), st.Players["1"].SelectedActionID)
}

func TestCommand_Errors(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		body any
		code int
	}{
		{"malformed", "not a command", http.StatusBadRequest},
		{"unknown type", map[string]any{"type": "dance"}, http.StatusBadRequest},
		{"unknown player", map[string]any{"type": "select_action", "playerId": "7", "actionId": "mining"}, http.StatusNotFound},
		{"no run", map[string]any{"type": "dungeon_stop"}, http.StatusNotFound},
		{"bad action", map[string]any{"type": "select_action", "playerId": "1", "actionId": "juggling"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.request(http.MethodPost, "/api/commands", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]any](t, rec), "error")
		})
	}
}

func TestTickAndStats(t *testing.T) {
	app := newTestApp(t)
	app.request(http.MethodPost, "/api/commands", map[string]any{
		"type": "select_action", "playerId": "1", "actionId": "woodcutting",
	})

	rec := app.request(http.MethodPost, "/api/tick", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	app.clock.Advance(10 * time.Second)
	rec = app.request(http.MethodPost, "/api/tick", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[game.TickSummary](t, rec)
	assert.Equal(t, int64(10_000), sum.DeltaMs)
	assert.Equal(t, 5, sum.Players[0].Completions)

	rec = app.request(http.MethodGet, "/api/telemetry/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[telemetry.Stats](t, rec)
	assert.Equal(t, 2, stats.Ticks)
	assert.Equal(t, int64(10_000), stats.SimulatedMs)

	rec = app.request(http.MethodGet, "/api/telemetry/stats?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuests(t *testing.T) {
	app := newTestApp(t)
	rec := app.request(http.MethodGet, "/api/quests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]quest.Progress](t, rec)
	assert.Len(t, list, len(catalog.MustDefault().Quests()))
}

func TestRoutesAndStatusPage(t *testing.T) {
	app := newTestApp(t)

	rec := app.request(http.MethodGet, "/api/routes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	routes := decode[[]RouteDoc](t, rec)
	var patterns []string
	for _, r := range routes {
		patterns = append(patterns, r.Method+" "+r.Pattern)
	}
	assert.Contains(t, patterns, "POST /api/commands")
	assert.Contains(t, patterns, "GET /ws")

	rec = app.request(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Adventurer")
	assert.Contains(t, rec.Body.String(), "/api/commands")

	rec = app.request(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaves(t *testing.T) {
	app := newTestApp(t)

	rec := app.request(http.MethodPost, "/api/saves", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.request(http.MethodGet, "/api/saves", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]save.SlotInfo](t, rec)
	require.Len(t, slots, 1)
	assert.Equal(t, "default", slots[0].Slot)
	assert.Equal(t, game.SaveVersion, slots[0].Version)
}

func TestStream_PushesTickSummaries(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered after the upgrade; keep ticking until
	// a summary arrives
	got := make(chan game.TickSummary, 1)
	go func() {
		var sum game.TickSummary
		if err := conn.ReadJSON(&sum); err == nil {
			got <- sum
		}
	}()
	deadline := time.After(2 * time.Second)
	for {
		app.runner.Tick(app.clock.Now())
		select {
		case sum := <-got:
			assert.NotZero(t, sum.Timestamp)
			return
		case <-deadline:
			t.Fatal("no summary received")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
