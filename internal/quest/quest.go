// Package quest tracks the cumulative counters quests are measured against
// and marks quests complete the first time their target is reached.
package quest

import (
	"idlerealm/internal/catalog"
	"idlerealm/internal/inventory"
	"idlerealm/internal/player"
)

// Counters are cumulative and only ever grow.
type Counters struct {
	Craft          map[catalog.ItemID]int                     `json:"craft"`
	Collect        map[catalog.ItemID]int                     `json:"collect"`
	CollectBySkill map[catalog.SkillID]map[catalog.ItemID]int `json:"collectBySkill"`
	DungeonClears  map[catalog.DungeonID]int                  `json:"dungeonClears"`
}

// State is the persisted quest section: completion flags plus counters.
// Numeric progress is derived and never stored.
type State struct {
	Completed map[catalog.QuestID]bool `json:"completed"`
	Counters  Counters                 `json:"counters"`
}

func NewState() State {
	return State{
		Completed: map[catalog.QuestID]bool{},
		Counters: Counters{
			Craft:          map[catalog.ItemID]int{},
			Collect:        map[catalog.ItemID]int{},
			CollectBySkill: map[catalog.SkillID]map[catalog.ItemID]int{},
			DungeonClears:  map[catalog.DungeonID]int{},
		},
	}
}

func (s State) Clone() State {
	out := NewState()
	for k, v := range s.Completed {
		if v {
			out.Completed[k] = true
		}
	}
	for k, v := range s.Counters.Craft {
		out.Counters.Craft[k] = v
	}
	for k, v := range s.Counters.Collect {
		out.Counters.Collect[k] = v
	}
	for sk, m := range s.Counters.CollectBySkill {
		cp := make(map[catalog.ItemID]int, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out.Counters.CollectBySkill[sk] = cp
	}
	for k, v := range s.Counters.DungeonClears {
		out.Counters.DungeonClears[k] = v
	}
	return out
}

// RecordItems counts the positive entries of gains. Items produced by a
// craft skill count as crafted; everything else counts as collected, and
// also under skill when one is given.
func (s *State) RecordItems(skill catalog.SkillID, craft bool, gains inventory.Delta) {
	for id, n := range gains {
		if n <= 0 {
			continue
		}
		if craft {
			s.Counters.Craft[id] += n
			continue
		}
		s.Counters.Collect[id] += n
		if skill == "" {
			continue
		}
		m := s.Counters.CollectBySkill[skill]
		if m == nil {
			m = map[catalog.ItemID]int{}
			s.Counters.CollectBySkill[skill] = m
		}
		m[id] += n
	}
}

func (s *State) RecordClear(id catalog.DungeonID) {
	s.Counters.DungeonClears[id]++
}

type Progress struct {
	ID         catalog.QuestID   `json:"id"`
	Name       string            `json:"name"`
	Kind       catalog.QuestKind `json:"kind"`
	Current    int               `json:"current"`
	Target     int               `json:"target"`
	Completed  bool              `json:"completed"`
	GoldReward int               `json:"goldReward"`
}

// Current computes a quest's counter from state and the roster.
func Current(q catalog.Quest, s State, players map[string]player.Player) int {
	switch q.Kind {
	case catalog.QuestSkillLevel:
		best := 0
		for _, p := range players {
			if lvl := p.Level(q.SkillID); lvl > best {
				best = lvl
			}
		}
		return best
	case catalog.QuestCraft:
		return s.Counters.Craft[q.ItemID]
	case catalog.QuestCollect:
		if q.SkillID != "" {
			return s.Counters.CollectBySkill[q.SkillID][q.ItemID]
		}
		return s.Counters.Collect[q.ItemID]
	case catalog.QuestDungeonClear:
		if q.DungeonID != "" {
			return s.Counters.DungeonClears[q.DungeonID]
		}
		total := 0
		for _, n := range s.Counters.DungeonClears {
			total += n
		}
		return total
	}
	return 0
}

// Evaluate marks every quest whose target is met and that was not already
// complete. It returns the new state, the newly completed quests in catalog
// order and the total gold they award.
func Evaluate(reg *catalog.Registry, s State, players map[string]player.Player) (State, []catalog.Quest, int) {
	out := s.Clone()
	var done []catalog.Quest
	gold := 0
	for _, q := range reg.Quests() {
		if out.Completed[q.ID] {
			continue
		}
		if Current(q, out, players) < q.Target {
			continue
		}
		out.Completed[q.ID] = true
		done = append(done, q)
		gold += q.GoldReward
	}
	return out, done, gold
}

// List reports progress for every catalog quest.
func List(reg *catalog.Registry, s State, players map[string]player.Player) []Progress {
	qs := reg.Quests()
	out := make([]Progress, 0, len(qs))
	for _, q := range qs {
		cur := Current(q, s, players)
		out = append(out, Progress{
			ID:         q.ID,
			Name:       q.Name,
			Kind:       q.Kind,
			Current:    min(cur, q.Target),
			Target:     q.Target,
			Completed:  s.Completed[q.ID],
			GoldReward: q.GoldReward,
		})
	}
	return out
}
