// Package save converts game state to and from the persisted document and
// stores documents in named slots.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/dungeon"
	"idlerealm/internal/game"
	"idlerealm/internal/inventory"
	"idlerealm/internal/player"
	"idlerealm/internal/progression"
	"idlerealm/internal/quest"
)

var ErrCorrupt = errors.New("save document is not a JSON object")

// Document is the on-disk schema. Every field is optional on read.
type Document struct {
	Version        string                   `json:"version"`
	Players        map[string]player.Player `json:"players"`
	Roster         []string                 `json:"roster,omitempty"`
	LastTick       *int64                   `json:"lastTick"`
	LastHiddenAt   *int64                   `json:"lastHiddenAt"`
	ActivePlayerID *string                  `json:"activePlayerId"`
	RosterLimit    int                      `json:"rosterLimit"`
	Inventory      map[catalog.ItemID]int   `json:"inventory"`
	Quests         quest.State              `json:"quests"`
	Dungeon        dungeon.State            `json:"dungeon"`
	Progression    progression.State        `json:"progression"`
}

func ToDocument(s game.State) Document {
	s = s.Clone()
	doc := Document{
		Version:      s.Version,
		Players:      s.Players,
		Roster:       s.Roster,
		LastTick:     s.LastTick,
		LastHiddenAt: s.LastHiddenAt,
		RosterLimit:  s.RosterLimit,
		Inventory:    map[catalog.ItemID]int(s.Inventory),
		Quests:       s.Quests,
		Dungeon:      s.Dungeon,
		Progression:  s.Progression,
	}
	if doc.Version == "" {
		doc.Version = game.SaveVersion
	}
	if s.ActivePlayerID != "" {
		id := s.ActivePlayerID
		doc.ActivePlayerID = &id
	}
	return doc
}

// Encode serialises s as a save document.
func Encode(s game.State) ([]byte, error) {
	b, err := json.MarshalIndent(ToDocument(s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode save: %w", err)
	}
	return b, nil
}

// Decode reads a save document. Each section is decoded on its own: a
// section with the wrong shape falls back to its default instead of failing
// the whole load. Only a body that is not a JSON object is an error.
func Decode(data []byte, reg *catalog.Registry, b config.Balance) (game.State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return game.State{}, ErrCorrupt
	}

	s := game.NewState(reg, b)
	section(raw, "version", &s.Version)
	if n, ok := number(raw["rosterLimit"]); ok && n > 0 {
		s.RosterLimit = int(n)
	}
	s.LastTick = timestamp(raw["lastTick"])
	s.LastHiddenAt = timestamp(raw["lastHiddenAt"])

	var active string
	if section(raw, "activePlayerId", &active) {
		s.ActivePlayerID = active
	}

	if players := decodePlayers(raw["players"]); len(players) > 0 {
		s.Players = players
		s.Roster = nil
	}
	var roster []string
	if section(raw, "roster", &roster) {
		s.Roster = roster
	}

	s.Inventory = decodeInventory(raw["inventory"])

	var q quest.State
	if section(raw, "quests", &q) {
		s.Quests = q
	}
	var d dungeon.State
	if section(raw, "dungeon", &d) {
		s.Dungeon = d
	}
	var p progression.State
	if section(raw, "progression", &p) {
		s.Progression = p
	}

	return game.Normalize(s, reg, b), nil
}

// section decodes raw[key] into dst and reports success. dst is left alone
// on failure.
func section[T any](raw map[string]json.RawMessage, key string, dst *T) bool {
	msg, ok := raw[key]
	if !ok || len(msg) == 0 || string(msg) == "null" {
		return false
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

func number(msg json.RawMessage) (float64, bool) {
	var f float64
	if len(msg) == 0 || json.Unmarshal(msg, &f) != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func timestamp(msg json.RawMessage) *int64 {
	f, ok := number(msg)
	if !ok || f < 0 {
		return nil
	}
	v := int64(f)
	return &v
}

// decodePlayers keeps every player entry that decodes; broken ones are dropped.
func decodePlayers(msg json.RawMessage) map[string]player.Player {
	var raw map[string]json.RawMessage
	if len(msg) == 0 || json.Unmarshal(msg, &raw) != nil {
		return nil
	}
	out := make(map[string]player.Player, len(raw))
	for id, pm := range raw {
		var p player.Player
		if err := json.Unmarshal(pm, &p); err != nil {
			continue
		}
		out[id] = p
	}
	return out
}

// decodeInventory keeps non-negative whole counts of known shape.
func decodeInventory(msg json.RawMessage) inventory.Inventory {
	out := inventory.Inventory{}
	var raw map[string]json.RawMessage
	if len(msg) == 0 || json.Unmarshal(msg, &raw) != nil {
		return out
	}
	for id, v := range raw {
		f, ok := number(v)
		if !ok || f <= 0 || f != math.Trunc(f) {
			continue
		}
		out[catalog.ItemID(id)] = int(f)
	}
	return out
}

// peekVersion reads the version field without decoding the rest.
func peekVersion(body []byte) string {
	var v struct {
		Version string `json:"version"`
	}
	_ = json.Unmarshal(body, &v)
	return v.Version
}
