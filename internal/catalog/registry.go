package catalog

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrInvalidContent = errors.New("invalid catalog content")

// Registry is the read-only definitions catalog plus lookup tables derived
// once at construction. It is safe for concurrent readers.
type Registry struct {
	version string

	skills   map[SkillID]Skill
	items    map[ItemID]Item
	actions  map[ActionID]Action
	recipes  map[RecipeID]Recipe
	dungeons map[DungeonID]Dungeon
	quests   []Quest

	skillOrder    []SkillID
	actionBySkill map[SkillID]ActionID
	bySkill       map[SkillID][]Recipe
	unlockLevels  map[SkillID][]int
	rewardLevels  map[ItemID]int
	healItems     []Item
}

// Parse decodes YAML content and builds a Registry.
func Parse(r io.Reader) (*Registry, error) {
	var c Content
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(c)
}

// New validates content references and derives lookup tables.
func New(c Content) (*Registry, error) {
	reg := &Registry{
		version:       c.Version,
		skills:        make(map[SkillID]Skill, len(c.Skills)),
		items:         make(map[ItemID]Item, len(c.Items)),
		actions:       make(map[ActionID]Action, len(c.Actions)),
		recipes:       make(map[RecipeID]Recipe, len(c.Recipes)),
		dungeons:      make(map[DungeonID]Dungeon, len(c.Dungeons)),
		actionBySkill: make(map[SkillID]ActionID),
		bySkill:       make(map[SkillID][]Recipe),
		unlockLevels:  make(map[SkillID][]int),
		rewardLevels:  make(map[ItemID]int),
	}

	for _, s := range c.Skills {
		if _, dup := reg.skills[s.ID]; dup || s.ID == "" {
			return nil, fmt.Errorf("%w: skill %q", ErrInvalidContent, s.ID)
		}
		reg.skills[s.ID] = s
		reg.skillOrder = append(reg.skillOrder, s.ID)
	}
	for _, it := range c.Items {
		if _, dup := reg.items[it.ID]; dup || it.ID == "" {
			return nil, fmt.Errorf("%w: item %q", ErrInvalidContent, it.ID)
		}
		if it.Kind == ItemEquipment && it.Slot == "" {
			return nil, fmt.Errorf("%w: equipment %q has no slot", ErrInvalidContent, it.ID)
		}
		reg.items[it.ID] = it
	}
	if _, ok := reg.items[Gold]; !ok {
		reg.items[Gold] = Item{ID: Gold, Name: "Gold", Kind: ItemCurrency}
	}

	for _, a := range c.Actions {
		if _, ok := reg.skills[a.SkillID]; !ok {
			return nil, fmt.Errorf("%w: action %q references unknown skill %q", ErrInvalidContent, a.ID, a.SkillID)
		}
		if a.BaseIntervalMs <= 0 {
			return nil, fmt.Errorf("%w: action %q has no interval", ErrInvalidContent, a.ID)
		}
		reg.actions[a.ID] = a
		reg.actionBySkill[a.SkillID] = a.ID
	}

	for _, rec := range c.Recipes {
		if _, ok := reg.skills[rec.SkillID]; !ok {
			return nil, fmt.Errorf("%w: recipe %q references unknown skill %q", ErrInvalidContent, rec.ID, rec.SkillID)
		}
		if err := reg.checkItems(rec.ID, rec.Inputs); err != nil {
			return nil, err
		}
		if err := reg.checkItems(rec.ID, rec.Outputs); err != nil {
			return nil, err
		}
		for _, rr := range rec.Rare {
			if _, ok := reg.items[rr.Item]; !ok {
				return nil, fmt.Errorf("%w: recipe %q rare reward %q", ErrInvalidContent, rec.ID, rr.Item)
			}
		}
		if rec.UnlockLevel < 1 {
			rec.UnlockLevel = 1
		}
		reg.recipes[rec.ID] = rec
		reg.bySkill[rec.SkillID] = append(reg.bySkill[rec.SkillID], rec)
	}

	for _, d := range c.Dungeons {
		if d.FloorCount < 1 {
			return nil, fmt.Errorf("%w: dungeon %q has no floors", ErrInvalidContent, d.ID)
		}
		if _, ok := reg.items[d.Reagent.Item]; !ok && d.Reagent.Item != "" {
			return nil, fmt.Errorf("%w: dungeon %q reagent %q", ErrInvalidContent, d.ID, d.Reagent.Item)
		}
		if err := reg.checkItems(RecipeID(d.ID), d.Loot); err != nil {
			return nil, err
		}
		reg.dungeons[d.ID] = d
	}

	for _, q := range c.Quests {
		if q.Target <= 0 {
			return nil, fmt.Errorf("%w: quest %q has no target", ErrInvalidContent, q.ID)
		}
		reg.quests = append(reg.quests, q)
	}

	reg.derive()
	return reg, nil
}

func (reg *Registry) checkItems(owner RecipeID, list []ItemAmount) error {
	for _, ia := range list {
		if _, ok := reg.items[ia.Item]; !ok {
			return fmt.Errorf("%w: %q references unknown item %q", ErrInvalidContent, owner, ia.Item)
		}
		if ia.Amount <= 0 {
			return fmt.Errorf("%w: %q has non-positive amount for %q", ErrInvalidContent, owner, ia.Item)
		}
	}
	return nil
}

func (reg *Registry) derive() {
	for sid, list := range reg.bySkill {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].UnlockLevel != list[j].UnlockLevel {
				return list[i].UnlockLevel < list[j].UnlockLevel
			}
			return list[i].ID < list[j].ID
		})
		reg.bySkill[sid] = list

		seen := map[int]bool{}
		levels := []int{}
		for _, rec := range list {
			if !seen[rec.UnlockLevel] {
				seen[rec.UnlockLevel] = true
				levels = append(levels, rec.UnlockLevel)
			}
		}
		reg.unlockLevels[sid] = levels

		if reg.skills[sid].Kind != KindCraft {
			continue
		}
		for _, rec := range list {
			for _, out := range rec.Outputs {
				if lvl, ok := reg.rewardLevels[out.Item]; !ok || rec.UnlockLevel < lvl {
					reg.rewardLevels[out.Item] = rec.UnlockLevel
				}
			}
		}
	}

	for _, it := range reg.items {
		if it.Heal > 0 {
			reg.healItems = append(reg.healItems, it)
		}
	}
	sort.Slice(reg.healItems, func(i, j int) bool {
		if reg.healItems[i].Heal != reg.healItems[j].Heal {
			return reg.healItems[i].Heal > reg.healItems[j].Heal
		}
		return reg.healItems[i].ID < reg.healItems[j].ID
	})
}

func (reg *Registry) Version() string { return reg.version }

func (reg *Registry) Skill(id SkillID) (Skill, bool) {
	s, ok := reg.skills[id]
	return s, ok
}

// Skills returns skills in catalog order.
func (reg *Registry) Skills() []Skill {
	out := make([]Skill, 0, len(reg.skillOrder))
	for _, id := range reg.skillOrder {
		out = append(out, reg.skills[id])
	}
	return out
}

func (reg *Registry) IsCraft(id SkillID) bool {
	return reg.skills[id].Kind == KindCraft
}

func (reg *Registry) Item(id ItemID) (Item, bool) {
	it, ok := reg.items[id]
	return it, ok
}

func (reg *Registry) Action(id ActionID) (Action, bool) {
	a, ok := reg.actions[id]
	return a, ok
}

// ActionForSkill returns the action that trains a skill.
func (reg *Registry) ActionForSkill(id SkillID) (Action, bool) {
	aid, ok := reg.actionBySkill[id]
	if !ok {
		return Action{}, false
	}
	return reg.actions[aid], true
}

func (reg *Registry) Recipe(id RecipeID) (Recipe, bool) {
	r, ok := reg.recipes[id]
	return r, ok
}

// Recipes returns a skill's recipes ordered by unlock level.
func (reg *Registry) Recipes(skill SkillID) []Recipe {
	list := reg.bySkill[skill]
	out := make([]Recipe, len(list))
	copy(out, list)
	return out
}

// DefaultRecipe is the highest-level recipe unlocked at level.
func (reg *Registry) DefaultRecipe(skill SkillID, level int) (Recipe, bool) {
	var best Recipe
	found := false
	for _, rec := range reg.bySkill[skill] {
		if rec.UnlockLevel <= level {
			best = rec
			found = true
		}
	}
	return best, found
}

// UnlockLevels returns the distinct recipe unlock levels of a skill, ascending.
func (reg *Registry) UnlockLevels(skill SkillID) []int {
	return append([]int(nil), reg.unlockLevels[skill]...)
}

// RewardLevel is the lowest craft level at which an item can be produced.
func (reg *Registry) RewardLevel(item ItemID) (int, bool) {
	lvl, ok := reg.rewardLevels[item]
	return lvl, ok
}

// HealItems lists items with a heal value, strongest first.
func (reg *Registry) HealItems() []Item {
	return append([]Item(nil), reg.healItems...)
}

func (reg *Registry) Dungeon(id DungeonID) (Dungeon, bool) {
	d, ok := reg.dungeons[id]
	return d, ok
}

func (reg *Registry) Dungeons() []Dungeon {
	out := make([]Dungeon, 0, len(reg.dungeons))
	for _, d := range reg.dungeons {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Quests returns quest definitions in catalog order.
func (reg *Registry) Quests() []Quest {
	return append([]Quest(nil), reg.quests...)
}
