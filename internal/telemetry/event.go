package telemetry

import "time"

type EventType string

const (
	EventTickApplied    EventType = "tick_applied"
	EventActionCleared  EventType = "action_cleared"
	EventQuestCompleted EventType = "quest_completed"
	EventDungeonVictory EventType = "dungeon_victory"
	EventDungeonDefeat  EventType = "dungeon_defeat"
	EventDungeonStopped EventType = "dungeon_stopped"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
