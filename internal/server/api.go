package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"idlerealm/internal/dungeon"
	"idlerealm/internal/game"
	"idlerealm/internal/quest"
	"idlerealm/internal/telemetry"

	"github.com/sirupsen/logrus"
)

const maxCommandBytes = 1 << 20

func (a *API) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.runner.State())
}

func (a *API) Quests(w http.ResponseWriter, r *http.Request) {
	st := a.runner.State()
	writeJSON(w, http.StatusOK, quest.List(a.runner.Engine().Catalog, st.Quests, st.Players))
}

func (a *API) Command(w http.ResponseWriter, r *http.Request) {
	var cmd game.Command
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCommandBytes))
	if err := dec.Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode command: %w", err))
		return
	}
	st, err := a.runner.Do(cmd)
	if err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	a.log.WithFields(logrus.Fields{"command": cmd.Type, "player": cmd.PlayerID}).Debug("command applied")
	writeJSON(w, http.StatusOK, st)
}

// commandStatus maps rejected commands onto HTTP codes.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownCommand),
		errors.Is(err, game.ErrMissingState):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrUnknownPlayer),
		errors.Is(err, dungeon.ErrUnknownPlayer),
		errors.Is(err, dungeon.ErrUnknownDungeon),
		errors.Is(err, dungeon.ErrNoActiveRun):
		return http.StatusNotFound
	case errors.Is(err, game.ErrLocked),
		errors.Is(err, dungeon.ErrRunActive),
		errors.Is(err, dungeon.ErrPlayerLocked):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *API) Tick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.runner.Tick(a.clock.Now()))
}

func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	since := a.clock.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("since: %w", err))
			return
		}
		since = t
	}
	events, err := a.runner.Events().GetEvents(since, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	stats, err := telemetry.CalculateStats(events, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) Routes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.routes.List())
}

func (a *API) ListSaves(w http.ResponseWriter, r *http.Request) {
	slots, err := a.saves.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (a *API) SaveNow(w http.ResponseWriter, r *http.Request) {
	if err := a.runner.Save(r.Context()); err != nil {
		a.log.WithError(err).Warn("manual save failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "slot": a.cfg.Save.Slot})
}
