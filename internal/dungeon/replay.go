package dungeon

import (
	"idlerealm/internal/catalog"
	"idlerealm/internal/inventory"
)

type EventKind string

const (
	EventRunStart   EventKind = "run_start"
	EventFloorStart EventKind = "floor_start"
	EventAttack     EventKind = "attack"
	EventEnemyHit   EventKind = "enemy_attack"
	EventPoison     EventKind = "poison"
	EventBurst      EventKind = "burst"
	EventHeal       EventKind = "heal"
	EventEnemyDown  EventKind = "enemy_defeated"
	EventMemberDown EventKind = "member_down"
	EventVictory    EventKind = "victory"
	EventDefeat     EventKind = "defeat"
	EventStopped    EventKind = "stopped"
	EventRestart    EventKind = "restart"
)

type Event struct {
	At     int64          `json:"at"`
	Round  int            `json:"round"`
	Floor  int            `json:"floor"`
	Kind   EventKind      `json:"kind"`
	Source string         `json:"source,omitempty"`
	Target string         `json:"target,omitempty"`
	Amount int            `json:"amount,omitempty"`
	Item   catalog.ItemID `json:"item,omitempty"`
}

// record appends ev, dropping the oldest events past limit.
func (r *Run) record(limit int, ev Event) {
	if ev.Floor == 0 {
		ev.Floor = r.Floor
	}
	if ev.Round == 0 {
		ev.Round = r.RoundsElapsed
	}
	r.Events = append(r.Events, ev)
	if limit <= 0 || len(r.Events) <= limit {
		return
	}
	drop := len(r.Events) - limit
	copy(r.Events, r.Events[drop:])
	r.Events = r.Events[:limit]
	r.TruncatedEvents += drop
}

// Replay is the summary kept after a run ends.
type Replay struct {
	ID        string            `json:"runId"`
	DungeonID catalog.DungeonID `json:"dungeonId"`
	Status    Status            `json:"status"`
	Events    []Event           `json:"events"`
	Truncated bool              `json:"truncated"`
	// FallbackCriticalOnly is carried for save compatibility and is never set.
	FallbackCriticalOnly bool                `json:"fallbackCriticalOnly"`
	Team                 []Member            `json:"team"`
	StartInventory       inventory.Inventory `json:"startInventory"`
	EndInventory         inventory.Inventory `json:"endInventory"`
	StartedAt            int64               `json:"startedAt"`
	EndedAt              int64               `json:"endedAt"`
	Floor                int                 `json:"floor"`
	FloorCount           int                 `json:"floorCount"`
	GoldEarned           int                 `json:"goldEarned"`
	Kills                int                 `json:"kills"`
}

func (rp Replay) Clone() Replay {
	out := rp
	out.Events = append([]Event(nil), rp.Events...)
	out.Team = append([]Member(nil), rp.Team...)
	out.StartInventory = rp.StartInventory.Clone()
	out.EndInventory = rp.EndInventory.Clone()
	return out
}

func buildReplay(r Run, limit int, end inventory.Inventory) Replay {
	events := r.Events
	truncated := r.TruncatedEvents > 0
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
		truncated = true
	}
	return Replay{
		ID:             r.ID,
		DungeonID:      r.DungeonID,
		Status:         r.Status,
		Events:         append([]Event(nil), events...),
		Truncated:      truncated,
		Team:           append([]Member(nil), r.Party...),
		StartInventory: r.StartInventory.Clone(),
		EndInventory:   end.Clone(),
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		Floor:          r.Floor,
		FloorCount:     r.FloorCount,
		GoldEarned:     r.GoldEarned,
		Kills:          r.Kills,
	}
}
