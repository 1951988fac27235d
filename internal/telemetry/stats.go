package telemetry

import (
	"encoding/json"
	"time"
)

type Stats struct {
	Period          string            `json:"period"`
	EventCounts     map[EventType]int `json:"event_counts"`
	Ticks           int               `json:"ticks"`
	SimulatedMs     int64             `json:"simulated_ms"`
	XP              int               `json:"xp"`
	Gold            int               `json:"gold"`
	XPPerHour       float64           `json:"xp_per_hour"`
	GoldPerHour     float64           `json:"gold_per_hour"`
	ActionClears    int               `json:"action_clears"`
	QuestsCompleted int               `json:"quests_completed"`
	Victories       int               `json:"victories"`
	Defeats         int               `json:"defeats"`
	Stops           int               `json:"stops"`
	ClearsByDungeon map[string]int    `json:"clears_by_dungeon"`
	ClearsBySkill   map[string]int    `json:"action_clears_by_skill"`
}

// CalculateStats computes balance stats from events
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:          since.Format("2006-01-02"),
		EventCounts:     make(map[EventType]int),
		ClearsByDungeon: make(map[string]int),
		ClearsBySkill:   make(map[string]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}

		switch event.Type {
		case EventTickApplied:
			stats.Ticks++
			stats.SimulatedMs += int64(number(metadata["delta_ms"]))
			stats.XP += int(number(metadata["xp"]))
			stats.Gold += int(number(metadata["gold"]))
		case EventActionCleared:
			stats.ActionClears++
			if skill, ok := metadata["skill"].(string); ok {
				stats.ClearsBySkill[skill]++
			}
		case EventQuestCompleted:
			stats.QuestsCompleted++
		case EventDungeonVictory:
			stats.Victories++
			if d, ok := metadata["dungeon"].(string); ok {
				stats.ClearsByDungeon[d]++
			}
		case EventDungeonDefeat:
			stats.Defeats++
		case EventDungeonStopped:
			stats.Stops++
		}
	}

	if stats.SimulatedMs > 0 {
		hours := float64(stats.SimulatedMs) / float64(time.Hour/time.Millisecond)
		stats.XPPerHour = float64(stats.XP) / hours
		stats.GoldPerHour = float64(stats.Gold) / hours
	}

	return stats, nil
}

// number reads a JSON number decoded into interface{}.
func number(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
