package game

import (
	"sort"
	"strconv"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/dungeon"
	"idlerealm/internal/inventory"
	"idlerealm/internal/player"
	"idlerealm/internal/progression"
	"idlerealm/internal/quest"
)

// SaveVersion tags documents written by this build.
const SaveVersion = "1"

// State is the root snapshot. Operations never modify a State in place;
// they return a new one.
type State struct {
	Version        string                   `json:"version"`
	Players        map[string]player.Player `json:"players"`
	Roster         []string                 `json:"roster"`
	RosterLimit    int                      `json:"rosterLimit"`
	Inventory      inventory.Inventory      `json:"inventory"`
	Quests         quest.State              `json:"quests"`
	Dungeon        dungeon.State            `json:"dungeon"`
	Progression    progression.State        `json:"progression"`
	LastTick       *int64                   `json:"lastTick"`
	LastHiddenAt   *int64                   `json:"lastHiddenAt"`
	ActivePlayerID string                   `json:"activePlayerId,omitempty"`
}

// NewState returns a fresh save with a single player.
func NewState(reg *catalog.Registry, b config.Balance) State {
	p := player.New("1", "Adventurer", reg, b)
	return State{
		Version:        SaveVersion,
		Players:        map[string]player.Player{p.ID: p},
		Roster:         []string{p.ID},
		RosterLimit:    b.RosterLimit,
		Inventory:      inventory.Inventory{},
		Quests:         quest.NewState(),
		Dungeon:        dungeon.NewState(),
		ActivePlayerID: p.ID,
	}
}

func (s State) Clone() State {
	out := s
	out.Players = make(map[string]player.Player, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p.Clone()
	}
	out.Roster = append([]string(nil), s.Roster...)
	out.Inventory = s.Inventory.Clone()
	out.Quests = s.Quests.Clone()
	out.Dungeon = s.Dungeon.Clone()
	out.Progression = s.Progression.Clone()
	out.LastTick = cloneTime(s.LastTick)
	out.LastHiddenAt = cloneTime(s.LastHiddenAt)
	return out
}

func cloneTime(t *int64) *int64 {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// PlayerIDs returns player ids in ascending numeric order.
func (s State) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return player.Less(ids[i], ids[j]) })
	return ids
}

func (s State) nextPlayerID() string {
	next := 1
	for id := range s.Players {
		if n, err := strconv.Atoi(id); err == nil && n >= next {
			next = n + 1
		}
	}
	return strconv.Itoa(next)
}

// Normalize repairs a state from an untrusted source. Clone already
// replaces nil collections with empty ones; players are repaired, the roster is reconciled with the player
// map and dungeon runs referencing unknown players are dropped.
func Normalize(s State, reg *catalog.Registry, b config.Balance) State {
	out := s.Clone()
	if out.Version == "" {
		out.Version = SaveVersion
	}
	if out.RosterLimit <= 0 {
		out.RosterLimit = b.RosterLimit
	}
	for id, p := range out.Players {
		if !player.ValidID(id) {
			delete(out.Players, id)
			continue
		}
		p.ID = id
		out.Players[id] = player.Repair(p, reg, b)
	}
	if len(out.Players) == 0 {
		fresh := NewState(reg, b)
		out.Players = fresh.Players
	}

	seen := map[string]bool{}
	roster := make([]string, 0, len(out.Players))
	for _, id := range out.Roster {
		if _, ok := out.Players[id]; ok && !seen[id] {
			seen[id] = true
			roster = append(roster, id)
		}
	}
	for _, id := range out.PlayerIDs() {
		if !seen[id] {
			roster = append(roster, id)
		}
	}
	out.Roster = roster

	if _, ok := out.Players[out.ActivePlayerID]; !ok {
		out.ActivePlayerID = out.Roster[0]
	}
	for id, r := range out.Dungeon.Runs {
		for _, m := range r.Party {
			if _, ok := out.Players[m.PlayerID]; !ok {
				delete(out.Dungeon.Runs, id)
				break
			}
		}
	}
	if _, ok := out.Dungeon.Runs[out.Dungeon.ActiveRunID]; !ok {
		out.Dungeon.ActiveRunID = ""
	}
	return out
}

func (s State) world() dungeon.World {
	return dungeon.World{Dungeon: s.Dungeon, Players: s.Players, Inventory: s.Inventory}
}

// withWorld returns a copy of s carrying w. w must already be a fresh copy.
func (s State) withWorld(w dungeon.World) State {
	out := s
	out.Roster = append([]string(nil), s.Roster...)
	out.Quests = s.Quests.Clone()
	out.Progression = s.Progression.Clone()
	out.LastTick = cloneTime(s.LastTick)
	out.LastHiddenAt = cloneTime(s.LastHiddenAt)
	out.Dungeon, out.Players, out.Inventory = w.Dungeon, w.Players, w.Inventory
	return out
}
