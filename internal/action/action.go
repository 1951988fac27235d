// Package action resolves a player's selected skill action over an elapsed
// duration in closed form.
package action

import (
	"math"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/inventory"
	"idlerealm/internal/player"
)

// Rand is the uniform [0,1) source used for rare reward rolls.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

type Result struct {
	Player    player.Player
	Inventory inventory.Inventory

	SkillID  catalog.SkillID
	RecipeID catalog.RecipeID

	ItemDeltas     inventory.Delta
	XPGained       int
	RecipeXPGained int
	GoldGained     int
	LevelsGained   int
	Completions    int
	ActiveMs       int64
	IdleMs         int64

	// Cleared is set when the selection was dropped because its item inputs
	// could no longer be paid.
	Cleared bool
}

// Apply advances p's selected action by deltaMs against the shared inventory.
// The inputs are not modified.
func Apply(reg *catalog.Registry, b config.Balance, p player.Player, inv inventory.Inventory, deltaMs int64, rng Rand) Result {
	if deltaMs < 0 {
		deltaMs = 0
	}
	res := Result{
		Player:     p.Clone(),
		Inventory:  inv.Clone(),
		ItemDeltas: inventory.Delta{},
	}
	if deltaMs == 0 {
		return res
	}
	res.IdleMs = deltaMs
	resolve(reg, b, p, deltaMs, rng, &res)
	res.Player = Regenerate(reg, b, res.Player, deltaMs)
	return res
}

func resolve(reg *catalog.Registry, b config.Balance, p player.Player, deltaMs int64, rng Rand, res *Result) {
	act, ok := reg.Action(p.SelectedActionID)
	if !ok {
		return
	}
	res.SkillID = act.SkillID
	rec, ok := selectedRecipe(reg, p, act.SkillID)
	if !ok {
		return
	}
	res.RecipeID = rec.ID

	afford := res.Inventory.Affordable(rec.Inputs)
	if afford == 0 {
		res.Player.SelectedActionID = ""
		res.Player.ActionProgress = 0
		res.Cleared = true
		return
	}

	stats := p.Effective(reg)
	interval := Interval(b, act, stats)
	cost := player.Percent(act.StaminaCost, 100-clampPct(stats.Strength))
	if cost > 0 && res.Player.Stamina < cost {
		res.Player.ActionProgress = 0
		return
	}

	prior := int64(math.Round(p.ActionProgress * float64(interval) / 100))
	if prior < 0 || prior > interval {
		prior = 0
	}
	total := prior + deltaMs
	byTime := int(total / interval)

	n := byTime
	if cost > 0 {
		n = min(n, res.Player.Stamina/cost)
	}
	itemBound := false
	if afford < n {
		n = afford
		itemBound = true
	}

	if n < byTime {
		res.Player.ActionProgress = 0
		res.ActiveMs = int64(n)*interval - prior
		if res.ActiveMs < 0 {
			res.ActiveMs = 0
		}
	} else {
		rem := total - int64(n)*interval
		res.Player.ActionProgress = float64(rem) * 100 / float64(interval)
		res.ActiveMs = deltaMs
	}
	res.IdleMs = deltaMs - res.ActiveMs

	if n > 0 {
		complete(reg, b, res, rec, stats, cost, n, rng)
	}
	if itemBound {
		res.Player.SelectedActionID = ""
		res.Player.ActionProgress = 0
		res.Cleared = true
	}
}

// Interval is the effective completion time: base reduced by agility,
// floored at the configured minimum.
func Interval(b config.Balance, act catalog.Action, stats catalog.Stats) int64 {
	iv := int64(math.Round(float64(act.BaseIntervalMs) * float64(100-clampPct(stats.Agility)) / 100))
	if iv < b.MinActionIntervalMs {
		iv = b.MinActionIntervalMs
	}
	if iv < 1 {
		iv = 1
	}
	return iv
}

func selectedRecipe(reg *catalog.Registry, p player.Player, skill catalog.SkillID) (catalog.Recipe, bool) {
	level := p.Level(skill)
	id := p.Skills[skill].SelectedRecipeID
	if id == "" {
		return reg.DefaultRecipe(skill, level)
	}
	rec, ok := reg.Recipe(id)
	if !ok || rec.SkillID != skill || rec.UnlockLevel > level {
		return catalog.Recipe{}, false
	}
	return rec, true
}

func complete(reg *catalog.Registry, b config.Balance, res *Result, rec catalog.Recipe, stats catalog.Stats, cost, n int, rng Rand) {
	res.Completions = n
	res.Player.Stamina -= cost * n

	for _, in := range rec.Inputs {
		res.ItemDeltas.Add(in.Item, -in.Amount*n)
	}
	for _, out := range rec.Outputs {
		res.ItemDeltas.Add(out.Item, out.Amount*n)
	}
	if rec.Gold > 0 {
		res.GoldGained = rec.Gold * n
		res.ItemDeltas.Add(catalog.Gold, res.GoldGained)
	}
	if rng != nil {
		luck := 1 + float64(max(stats.Luck, 0))/100
		for _, rr := range rec.Rare {
			p := rr.Chance * luck
			for i := 0; i < n; i++ {
				if rng.Float64() < p {
					res.ItemDeltas.Add(rr.Item, rr.Amount)
				}
			}
		}
	}
	// Deltas are bounded by Affordable so the strict apply cannot fail.
	res.Inventory = res.Inventory.ApplyClamped(res.ItemDeltas)

	xp, rxp := rec.XP*n, rec.RecipeXP*n
	if reg.IsCraft(rec.SkillID) {
		bonus := 100 + max(stats.Intellect, 0)
		xp = player.Percent(xp, bonus)
		rxp = player.Percent(rxp, bonus)
	}
	res.XPGained, res.RecipeXPGained = xp, rxp

	sp := res.Player.Skills[rec.SkillID]
	if sp.Level == 0 {
		sp = player.NewSkillProgress(b)
	}
	sp, res.LevelsGained = sp.Gain(b, xp)
	res.Player.Skills[rec.SkillID] = sp

	rp, ok := res.Player.Recipes[rec.ID]
	if !ok {
		rp = player.RecipeProgress{Level: 1, XPNext: player.Threshold(b, 1)}
	}
	rp, _ = rp.Gain(b, rxp)
	res.Player.Recipes[rec.ID] = rp
}

// Regenerate adds one stamina point per StaminaRegenMs, carrying the
// remainder, up to the endurance-boosted cap. It runs whether or not the
// player acted, including while a dungeon run holds them.
func Regenerate(reg *catalog.Registry, b config.Balance, p player.Player, deltaMs int64) player.Player {
	if deltaMs <= 0 {
		return p
	}
	capacity := p.StaminaCap(reg)
	if p.Stamina >= capacity {
		p.StaminaRegenMs = 0
		return p
	}
	acc := p.StaminaRegenMs + deltaMs
	points := acc / b.StaminaRegenMs
	p.StaminaRegenMs = acc % b.StaminaRegenMs
	if int64(capacity-p.Stamina) <= points {
		p.Stamina = capacity
		p.StaminaRegenMs = 0
		return p
	}
	p.Stamina += int(points)
	return p
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
