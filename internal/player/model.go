package player

import (
	"math"
	"strconv"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
)

const (
	DefaultHPMax      = 100
	DefaultStaminaMax = 100
)

type SkillProgress struct {
	XP               int              `json:"xp"`
	Level            int              `json:"level"`
	XPNext           int              `json:"xpNext"`
	SelectedRecipeID catalog.RecipeID `json:"selectedRecipeId,omitempty"`
}

type RecipeProgress struct {
	XP     int `json:"xp"`
	Level  int `json:"level"`
	XPNext int `json:"xpNext"`
}

type Player struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	HP             int    `json:"hp"`
	HPMax          int    `json:"hpMax"`
	Stamina        int    `json:"stamina"`
	StaminaMax     int    `json:"staminaMax"`
	StaminaRegenMs int64  `json:"staminaRegenMs,omitempty"`

	Stats     catalog.Stats                  `json:"stats"`
	Equipment map[catalog.Slot]catalog.ItemID `json:"equipment"`

	Skills  map[catalog.SkillID]SkillProgress   `json:"skills"`
	Recipes map[catalog.RecipeID]RecipeProgress `json:"recipes,omitempty"`

	SelectedActionID catalog.ActionID `json:"selectedActionId,omitempty"`
	ActionProgress   float64          `json:"actionProgress"`
	CreatedAt        int64            `json:"createdAt,omitempty"`
}

// New builds a level 1 player with every catalog skill initialised.
func New(id, name string, reg *catalog.Registry, b config.Balance) Player {
	p := Player{
		ID:         id,
		Name:       name,
		HP:         DefaultHPMax,
		HPMax:      DefaultHPMax,
		Stamina:    DefaultStaminaMax,
		StaminaMax: DefaultStaminaMax,
		Equipment:  map[catalog.Slot]catalog.ItemID{},
		Skills:     map[catalog.SkillID]SkillProgress{},
		Recipes:    map[catalog.RecipeID]RecipeProgress{},
	}
	for _, s := range reg.Skills() {
		p.Skills[s.ID] = NewSkillProgress(b)
	}
	return p
}

func NewSkillProgress(b config.Balance) SkillProgress {
	return SkillProgress{Level: 1, XPNext: Threshold(b, 1)}
}

// Threshold returns the cumulative xp required to reach level+1.
// Step cost for level L is round(XPBase * XPGrowth^(L-1)).
func Threshold(b config.Balance, level int) int {
	if level < 1 {
		level = 1
	}
	total := 0
	for l := 1; l <= level; l++ {
		total += stepCost(b, l)
	}
	return total
}

func stepCost(b config.Balance, level int) int {
	c := int(math.Round(float64(b.XPBase) * math.Pow(b.XPGrowth, float64(level-1))))
	if c < 1 {
		c = 1
	}
	return c
}

// gain adds xp and levels up while the cumulative threshold is met. XP is
// never reset, so overflow carries into the next level.
func gain(b config.Balance, xp, level, next, add int) (int, int, int, int) {
	if level < 1 {
		level = 1
	}
	if next <= 0 {
		next = Threshold(b, level)
	}
	if add > 0 {
		xp += add
	}
	ups := 0
	for xp >= next {
		level++
		ups++
		next += stepCost(b, level)
	}
	return xp, level, next, ups
}

// Gain returns the progress after adding xp and the number of levels gained.
func (sp SkillProgress) Gain(b config.Balance, xp int) (SkillProgress, int) {
	var ups int
	sp.XP, sp.Level, sp.XPNext, ups = gain(b, sp.XP, sp.Level, sp.XPNext, xp)
	return sp, ups
}

func (rp RecipeProgress) Gain(b config.Balance, xp int) (RecipeProgress, int) {
	var ups int
	rp.XP, rp.Level, rp.XPNext, ups = gain(b, rp.XP, rp.Level, rp.XPNext, xp)
	return rp, ups
}

// Level returns the player's level in a skill, 1 if untrained.
func (p Player) Level(id catalog.SkillID) int {
	if sp, ok := p.Skills[id]; ok && sp.Level > 0 {
		return sp.Level
	}
	return 1
}

// Effective returns base stats plus equipped item stats.
func (p Player) Effective(reg *catalog.Registry) catalog.Stats {
	s := p.Stats
	for _, slot := range catalog.Slots {
		id, ok := p.Equipment[slot]
		if !ok || id == "" {
			continue
		}
		if it, ok := reg.Item(id); ok {
			s = s.Add(it.Stats)
		}
	}
	return s
}

// StaminaCap is StaminaMax boosted by endurance.
func (p Player) StaminaCap(reg *catalog.Registry) int {
	return Percent(p.StaminaMax, 100+p.Effective(reg).Endurance)
}

// Percent returns v*pct/100 rounded to nearest.
func Percent(v, pct int) int {
	if pct < 0 {
		pct = 0
	}
	return int(math.Round(float64(v) * float64(pct) / 100))
}

func (p Player) Clone() Player {
	out := p
	out.Equipment = make(map[catalog.Slot]catalog.ItemID, len(p.Equipment))
	for k, v := range p.Equipment {
		out.Equipment[k] = v
	}
	out.Skills = make(map[catalog.SkillID]SkillProgress, len(p.Skills))
	for k, v := range p.Skills {
		out.Skills[k] = v
	}
	out.Recipes = make(map[catalog.RecipeID]RecipeProgress, len(p.Recipes))
	for k, v := range p.Recipes {
		out.Recipes[k] = v
	}
	return out
}

// Repair fills missing maps and fixes out-of-range numbers on a player read
// from an untrusted document. Unknown skills, items and recipes are dropped.
func Repair(p Player, reg *catalog.Registry, b config.Balance) Player {
	out := p.Clone()
	if out.HPMax <= 0 {
		out.HPMax = DefaultHPMax
	}
	out.HP = clamp(out.HP, 0, out.HPMax)
	if out.StaminaMax <= 0 {
		out.StaminaMax = DefaultStaminaMax
	}
	if out.StaminaRegenMs < 0 || out.StaminaRegenMs >= b.StaminaRegenMs {
		out.StaminaRegenMs = 0
	}
	for slot, id := range out.Equipment {
		it, ok := reg.Item(id)
		if !ok || it.Slot != slot {
			delete(out.Equipment, slot)
		}
	}
	out.Stamina = clamp(out.Stamina, 0, out.StaminaCap(reg))

	skills := make(map[catalog.SkillID]SkillProgress, len(reg.Skills()))
	for _, s := range reg.Skills() {
		sp, ok := out.Skills[s.ID]
		if !ok {
			skills[s.ID] = NewSkillProgress(b)
			continue
		}
		if sp.Level < 1 {
			sp.Level = 1
		}
		if sp.XP < 0 {
			sp.XP = 0
		}
		if sp.XPNext <= 0 {
			sp.XPNext = Threshold(b, sp.Level)
		}
		if rec, ok := reg.Recipe(sp.SelectedRecipeID); !ok || rec.SkillID != s.ID {
			sp.SelectedRecipeID = ""
		}
		skills[s.ID] = sp
	}
	out.Skills = skills

	for id, rp := range out.Recipes {
		if _, ok := reg.Recipe(id); !ok {
			delete(out.Recipes, id)
			continue
		}
		if rp.Level < 1 {
			rp.Level = 1
		}
		if rp.XP < 0 {
			rp.XP = 0
		}
		if rp.XPNext <= 0 {
			rp.XPNext = Threshold(b, rp.Level)
		}
		out.Recipes[id] = rp
	}

	if _, ok := reg.Action(out.SelectedActionID); !ok {
		out.SelectedActionID = ""
	}
	if math.IsNaN(out.ActionProgress) || out.ActionProgress < 0 || out.ActionProgress > 100 {
		out.ActionProgress = 0
	}
	return out
}

// ValidID reports whether id is a positive decimal player id.
func ValidID(id string) bool {
	n, err := strconv.Atoi(id)
	return err == nil && n > 0 && strconv.Itoa(n) == id
}

// Less orders player ids numerically.
func Less(a, b string) bool {
	na, ea := strconv.Atoi(a)
	nb, eb := strconv.Atoi(b)
	if ea == nil && eb == nil && na != nb {
		return na < nb
	}
	if (ea == nil) != (eb == nil) {
		return ea == nil
	}
	return a < b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
