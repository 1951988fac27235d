// Package server exposes a running game over HTTP and websocket.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"idlerealm/internal/config"
	"idlerealm/internal/game"
	"idlerealm/internal/httpmw"
	"idlerealm/internal/logger"
	"idlerealm/internal/runner"
	"idlerealm/internal/save"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Config *config.Config
	Runner *runner.Runner
	// Saves is optional; without it the save routes are not mounted.
	Saves save.Repository
	Clock game.Clock
	Log   logrus.FieldLogger
}

type API struct {
	cfg    *config.Config
	runner *runner.Runner
	saves  save.Repository
	clock  game.Clock
	routes *RouteRegistry
	log    logrus.FieldLogger
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if opts.Clock == nil {
		opts.Clock = game.RealClock{}
	}
	api := &API{
		cfg:    opts.Config,
		runner: opts.Runner,
		saves:  opts.Saves,
		clock:  opts.Clock,
		routes: &RouteRegistry{},
		log:    logger.Component(opts.Log, "server"),
	}

	mux := http.NewServeMux()
	rr := api.routes
	Handle(mux, rr, "GET /healthz", "Liveness probe", "", api.Health)
	Handle(mux, rr, "GET /api/state", "Current game state", "", api.State)
	Handle(mux, rr, "GET /api/quests", "Quest progress", "", api.Quests)
	Handle(mux, rr, "POST /api/commands", "Apply a command between ticks", `{"type":"select_action","playerId":"1","actionId":"woodcutting"}`, api.Command)
	Handle(mux, rr, "POST /api/tick", "Tick now and return the summary", "", api.Tick)
	Handle(mux, rr, "GET /api/telemetry/stats", "Aggregated telemetry; ?since=RFC3339", "", api.Stats)
	Handle(mux, rr, "GET /api/routes", "This list", "", api.Routes)
	if api.saves != nil {
		Handle(mux, rr, "GET /api/saves", "Stored save slots", "", api.ListSaves)
		Handle(mux, rr, "POST /api/saves", "Save the running game now", "", api.SaveNow)
	}
	Handle(mux, rr, "GET /ws", "Websocket stream of tick summaries", "", api.Stream)
	Handle(mux, rr, "GET /{$}", "Status page", "", api.StatusPage)

	return httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Log),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Log),
	), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "idlerealm",
		"catalog": a.runner.Engine().Catalog.Version(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
