// Package dungeon runs the automatic party-vs-enemies battles behind a
// reagent-gated dungeon entry.
package dungeon

import (
	"errors"

	"idlerealm/internal/catalog"
	"idlerealm/internal/inventory"
	"idlerealm/internal/player"
)

var (
	ErrUnknownDungeon      = errors.New("unknown dungeon")
	ErrPartySize           = errors.New("wrong party size")
	ErrDuplicateMember     = errors.New("duplicate party member")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrPlayerLocked        = errors.New("player is in a dungeon run")
	ErrInsufficientReagent = errors.New("insufficient reagent")
	ErrRunActive           = errors.New("a dungeon run is already active")
	ErrNoActiveRun         = errors.New("no active dungeon run")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusVictory Status = "victory"
	StatusDefeat  Status = "defeat"
	StatusStopped Status = "stopped"
)

type Member struct {
	PlayerID       string `json:"playerId"`
	HP             int    `json:"hp"`
	HPMax          int    `json:"hpMax"`
	HealCooldownMs int64  `json:"healCooldownMs"`
	Damage         int    `json:"damage"`
	Defense        int    `json:"defense"`
}

func (m Member) Alive() bool { return m.HP > 0 }

type Enemy struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	HP             int              `json:"hp"`
	HPMax          int              `json:"hpMax"`
	Damage         int              `json:"damage"`
	Mechanic       catalog.Mechanic `json:"mechanic,omitempty"`
	MechanicDamage int              `json:"mechanicDamage,omitempty"`
	Boss           bool             `json:"boss,omitempty"`
}

func (e Enemy) Alive() bool { return e.HP > 0 }

type Run struct {
	ID            string            `json:"id"`
	DungeonID     catalog.DungeonID `json:"dungeonId"`
	Party         []Member          `json:"party"`
	Enemies       []Enemy           `json:"enemies"`
	Floor         int               `json:"floor"`
	FloorCount    int               `json:"floorCount"`
	Status        Status            `json:"status"`
	TargetEnemyID string            `json:"targetEnemyId,omitempty"`
	RestartAt     *int64            `json:"restartAt"`

	Events          []Event             `json:"events"`
	TruncatedEvents int                 `json:"truncatedEvents"`
	StartInventory  inventory.Inventory `json:"startInventory"`

	StartedAt       int64 `json:"startedAt"`
	EndedAt         int64 `json:"endedAt,omitempty"`
	RoundProgressMs int64 `json:"roundProgressMs"`
	RoundsElapsed   int   `json:"roundsElapsed"`
	GoldEarned      int   `json:"goldEarned"`
	Kills           int   `json:"kills"`
	Clears          int   `json:"clears"`
}

// PartyIDs returns member player ids in party order.
func (r Run) PartyIDs() []string {
	ids := make([]string, len(r.Party))
	for i, m := range r.Party {
		ids[i] = m.PlayerID
	}
	return ids
}

// Active reports whether the run still holds its party: running, or won and
// waiting for its restart.
func (r Run) Active() bool {
	return r.Status == StatusRunning || (r.Status == StatusVictory && r.RestartAt != nil)
}

func (r Run) Clone() Run {
	out := r
	out.Party = append([]Member(nil), r.Party...)
	out.Enemies = append([]Enemy(nil), r.Enemies...)
	out.Events = append([]Event(nil), r.Events...)
	out.StartInventory = r.StartInventory.Clone()
	if r.RestartAt != nil {
		at := *r.RestartAt
		out.RestartAt = &at
	}
	return out
}

func (r Run) livingMembers() int {
	n := 0
	for _, m := range r.Party {
		if m.Alive() {
			n++
		}
	}
	return n
}

// target returns the index of the first living enemy in spawn order, or -1.
func (r Run) target() int {
	for i, e := range r.Enemies {
		if e.Alive() {
			return i
		}
	}
	return -1
}

// frontline returns the index of the first living member, or -1.
func (r Run) frontline() int {
	for i, m := range r.Party {
		if m.Alive() {
			return i
		}
	}
	return -1
}

// State is the persisted dungeon section of the game state.
type State struct {
	Runs         map[string]Run `json:"runs"`
	ActiveRunID  string         `json:"activeRunId,omitempty"`
	LatestReplay *Replay        `json:"latestReplay,omitempty"`
	Seq          uint64         `json:"seq"`
}

func NewState() State {
	return State{Runs: map[string]Run{}}
}

func (s State) Clone() State {
	out := State{
		Runs:        make(map[string]Run, len(s.Runs)),
		ActiveRunID: s.ActiveRunID,
		Seq:         s.Seq,
	}
	for id, r := range s.Runs {
		out.Runs[id] = r.Clone()
	}
	if s.LatestReplay != nil {
		rp := s.LatestReplay.Clone()
		out.LatestReplay = &rp
	}
	return out
}

// ActiveRun returns the run referenced by ActiveRunID.
func (s State) ActiveRun() (Run, bool) {
	if s.ActiveRunID == "" {
		return Run{}, false
	}
	r, ok := s.Runs[s.ActiveRunID]
	return r, ok
}

// Locked returns the players held by the active run.
func (s State) Locked() map[string]bool {
	out := map[string]bool{}
	r, ok := s.ActiveRun()
	if !ok || !r.Active() {
		return out
	}
	for _, m := range r.Party {
		out[m.PlayerID] = true
	}
	return out
}

// World is the slice of game state a dungeon operation reads and writes.
type World struct {
	Dungeon   State
	Players   map[string]player.Player
	Inventory inventory.Inventory
}

func (w World) Clone() World {
	out := World{
		Dungeon:   w.Dungeon.Clone(),
		Players:   make(map[string]player.Player, len(w.Players)),
		Inventory: w.Inventory.Clone(),
	}
	for id, p := range w.Players {
		out.Players[id] = p.Clone()
	}
	return out
}

// SplitGold divides total evenly across ids; the remainder is handed out
// one unit at a time in order.
func SplitGold(total int, ids []string) map[string]int {
	out := make(map[string]int, len(ids))
	if total <= 0 || len(ids) == 0 {
		return out
	}
	base, rem := total/len(ids), total%len(ids)
	for i, id := range ids {
		share := base
		if i < rem {
			share++
		}
		if share > 0 {
			out[id] += share
		}
	}
	return out
}
