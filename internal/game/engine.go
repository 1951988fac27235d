package game

import (
	"math/rand"
	"time"

	"idlerealm/internal/action"
	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/dungeon"
	"idlerealm/internal/inventory"
	"idlerealm/internal/logger"
	"idlerealm/internal/progression"
	"idlerealm/internal/quest"

	"github.com/sirupsen/logrus"
)

// Engine applies ticks and commands to State. It holds no state of its own
// and is safe to share.
type Engine struct {
	Catalog *catalog.Registry
	Balance config.Balance
	// Rand overrides the rare-reward source. When nil each tick seeds its
	// own source from the tick timestamp.
	Rand action.Rand
	Loc  *time.Location
	Log  logrus.FieldLogger
}

func (e Engine) log() logrus.FieldLogger {
	return logger.Component(e.Log, "game")
}

func (e Engine) location() *time.Location {
	if e.Loc == nil {
		return time.Local
	}
	return e.Loc
}

func (e Engine) rng(timestamp int64) action.Rand {
	if e.Rand != nil {
		return e.Rand
	}
	return rand.New(rand.NewSource(timestamp))
}

func (e Engine) dungeon() dungeon.Engine {
	return dungeon.Engine{Catalog: e.Catalog, Balance: e.Balance, Log: e.Log}
}

type PlayerSummary struct {
	PlayerID     string           `json:"playerId"`
	SkillID      catalog.SkillID  `json:"skillId,omitempty"`
	RecipeID     catalog.RecipeID `json:"recipeId,omitempty"`
	Completions  int              `json:"completions"`
	XP           int              `json:"xp"`
	RecipeXP     int              `json:"recipeXp"`
	Gold         int              `json:"gold"`
	DungeonXP    int              `json:"dungeonXp,omitempty"`
	DungeonGold  int              `json:"dungeonGold,omitempty"`
	LevelsGained int              `json:"levelsGained,omitempty"`
	ActiveMs     int64            `json:"activeMs"`
	IdleMs       int64            `json:"idleMs"`
	Cleared      bool             `json:"cleared,omitempty"`
	Locked       bool             `json:"locked,omitempty"`
}

// TickSummary is everything one tick changed, for observers.
type TickSummary struct {
	DeltaMs         int64             `json:"deltaMs"`
	Timestamp       int64             `json:"timestamp"`
	Players         []PlayerSummary   `json:"players"`
	ItemDeltas      inventory.Delta   `json:"itemDeltas"`
	XP              int               `json:"xp"`
	Gold            int               `json:"gold"`
	ActiveMs        int64             `json:"activeMs"`
	IdleMs          int64             `json:"idleMs"`
	DungeonRounds   int               `json:"dungeonRounds"`
	DungeonFinished []dungeon.Replay  `json:"dungeonFinished,omitempty"`
	QuestsCompleted []catalog.QuestID `json:"questsCompleted,omitempty"`
	QuestGold       int               `json:"questGold,omitempty"`
}

// ApplyTick advances s by deltaMs ending at timestamp (unix millis).
// Players act in ascending numeric id order; players held by a dungeon run
// sit out the action step and fight instead.
func (e Engine) ApplyTick(s State, deltaMs, timestamp int64) (State, TickSummary) {
	if deltaMs < 0 {
		deltaMs = 0
	}
	out := s.Clone()
	sum := TickSummary{DeltaMs: deltaMs, Timestamp: timestamp, ItemDeltas: inventory.Delta{}}
	ledger := progression.Delta{SkillActiveMs: map[catalog.SkillID]float64{}}
	rng := e.rng(timestamp)
	locked := out.Dungeon.Locked()

	index := map[string]int{}
	for _, id := range out.PlayerIDs() {
		ps := PlayerSummary{PlayerID: id}
		if locked[id] {
			ps.Locked = true
			ps.SkillID = catalog.CombatSkill
			ps.ActiveMs = deltaMs
			ledger.SkillActiveMs[catalog.CombatSkill] += float64(deltaMs)
			out.Players[id] = action.Regenerate(e.Catalog, e.Balance, out.Players[id], deltaMs)
			index[id] = len(sum.Players)
			sum.Players = append(sum.Players, ps)
			continue
		}

		res := action.Apply(e.Catalog, e.Balance, out.Players[id], out.Inventory, deltaMs, rng)
		out.Players[id] = res.Player
		out.Inventory = res.Inventory
		if res.Completions > 0 {
			out.Quests.RecordItems(res.SkillID, e.Catalog.IsCraft(res.SkillID), res.ItemDeltas.Gains())
		}
		sum.ItemDeltas.Merge(res.ItemDeltas)

		ps.SkillID, ps.RecipeID = res.SkillID, res.RecipeID
		ps.Completions = res.Completions
		ps.XP, ps.RecipeXP, ps.Gold = res.XPGained, res.RecipeXPGained, res.GoldGained
		ps.LevelsGained = res.LevelsGained
		ps.ActiveMs, ps.IdleMs = res.ActiveMs, res.IdleMs
		ps.Cleared = res.Cleared
		if res.SkillID != "" && res.ActiveMs > 0 {
			ledger.SkillActiveMs[res.SkillID] += float64(res.ActiveMs)
		}
		if res.Cleared {
			e.log().WithFields(logrus.Fields{"player": id, "skill": res.SkillID}).Debug("action cleared: inputs exhausted")
		}
		index[id] = len(sum.Players)
		sum.Players = append(sum.Players, ps)
	}

	w, oc := e.dungeon().Tick(dungeon.World{Dungeon: out.Dungeon, Players: out.Players, Inventory: out.Inventory}, deltaMs, timestamp)
	out.Dungeon, out.Players, out.Inventory = w.Dungeon, w.Players, w.Inventory
	sum.DungeonRounds = oc.Rounds
	sum.DungeonFinished = oc.Finished
	sum.ItemDeltas.Merge(oc.ItemDeltas)
	out.Quests.RecordItems("", false, oc.ItemDeltas.Gains())
	for _, id := range oc.Clears {
		out.Quests.RecordClear(id)
	}
	for pid, xp := range oc.XPByPlayer {
		p, ok := out.Players[pid]
		if !ok {
			continue
		}
		sp, ups := p.Skills[catalog.CombatSkill].Gain(e.Balance, xp)
		p.Skills[catalog.CombatSkill] = sp
		out.Players[pid] = p
		if i, ok := index[pid]; ok {
			sum.Players[i].DungeonXP += xp
			sum.Players[i].LevelsGained += ups
		}
	}
	for pid, g := range oc.GoldByPlayer {
		if i, ok := index[pid]; ok {
			sum.Players[i].DungeonGold += g
		}
	}

	var done []catalog.Quest
	out.Quests, done, sum.QuestGold = quest.Evaluate(e.Catalog, out.Quests, out.Players)
	if sum.QuestGold > 0 {
		out.Inventory.Add(catalog.Gold, sum.QuestGold)
		sum.ItemDeltas.Add(catalog.Gold, sum.QuestGold)
	}
	for _, q := range done {
		sum.QuestsCompleted = append(sum.QuestsCompleted, q.ID)
	}

	for _, ps := range sum.Players {
		sum.XP += ps.XP + ps.DungeonXP
		sum.Gold += ps.Gold + ps.DungeonGold
		sum.ActiveMs += ps.ActiveMs
		sum.IdleMs += ps.IdleMs
	}
	sum.Gold += sum.QuestGold
	ledger.XP = float64(sum.XP)
	ledger.Gold = float64(sum.Gold)
	ledger.ActiveMs = float64(sum.ActiveMs)
	ledger.IdleMs = float64(sum.IdleMs)
	out.Progression = progression.ApplyDelta(out.Progression, ledger, timestamp, e.location())

	out.LastTick = &timestamp

	e.log().WithFields(logrus.Fields{
		"delta_ms": deltaMs,
		"xp":       sum.XP,
		"gold":     sum.Gold,
		"rounds":   sum.DungeonRounds,
		"quests":   len(sum.QuestsCompleted),
	}).Debug("tick applied")
	return out, sum
}
