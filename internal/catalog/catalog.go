package catalog

type SkillID string
type ItemID string
type ActionID string
type RecipeID string
type DungeonID string
type QuestID string

// SkillKind separates gathering, crafting and combat skills. Craft skills
// receive the intellect xp bonus and feed the quest craft counters.
type SkillKind string

const (
	KindGather SkillKind = "gather"
	KindCraft  SkillKind = "craft"
	KindCombat SkillKind = "combat"
)

// Gold is the currency item id.
const Gold ItemID = "gold"

// CombatSkill receives dungeon kill xp and sets party member damage.
const CombatSkill SkillID = "combat"

type ItemKind string

const (
	ItemCurrency  ItemKind = "currency"
	ItemResource  ItemKind = "resource"
	ItemFood      ItemKind = "food"
	ItemPotion    ItemKind = "potion"
	ItemReagent   ItemKind = "reagent"
	ItemEquipment ItemKind = "equipment"
)

type Slot string

const (
	SlotWeapon    Slot = "weapon"
	SlotArmor     Slot = "armor"
	SlotTool      Slot = "tool"
	SlotAccessory Slot = "accessory"
)

// Slots lists equipment slots in display order.
var Slots = []Slot{SlotWeapon, SlotArmor, SlotTool, SlotAccessory}

// Stats are percentage points except Attack and Defense, which are flat.
type Stats struct {
	Strength  int `yaml:"strength" json:"strength"`
	Agility   int `yaml:"agility" json:"agility"`
	Intellect int `yaml:"intellect" json:"intellect"`
	Endurance int `yaml:"endurance" json:"endurance"`
	Luck      int `yaml:"luck" json:"luck"`
	Attack    int `yaml:"attack" json:"attack"`
	Defense   int `yaml:"defense" json:"defense"`
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		Strength:  s.Strength + o.Strength,
		Agility:   s.Agility + o.Agility,
		Intellect: s.Intellect + o.Intellect,
		Endurance: s.Endurance + o.Endurance,
		Luck:      s.Luck + o.Luck,
		Attack:    s.Attack + o.Attack,
		Defense:   s.Defense + o.Defense,
	}
}

type Skill struct {
	ID   SkillID   `yaml:"id" json:"id"`
	Name string    `yaml:"name" json:"name"`
	Kind SkillKind `yaml:"kind" json:"kind"`
}

type Item struct {
	ID    ItemID   `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Kind  ItemKind `yaml:"kind" json:"kind"`
	Heal  int      `yaml:"heal,omitempty" json:"heal,omitempty"`
	Slot  Slot     `yaml:"slot,omitempty" json:"slot,omitempty"`
	Stats Stats    `yaml:"stats,omitempty" json:"stats,omitempty"`
}

// Action is the repeatable activity a player selects; its recipes are the
// output variants.
type Action struct {
	ID             ActionID `yaml:"id" json:"id"`
	SkillID        SkillID  `yaml:"skill" json:"skill"`
	Name           string   `yaml:"name" json:"name"`
	BaseIntervalMs int64    `yaml:"interval_ms" json:"interval_ms"`
	StaminaCost    int      `yaml:"stamina_cost" json:"stamina_cost"`
}

type ItemAmount struct {
	Item   ItemID `yaml:"item" json:"item"`
	Amount int    `yaml:"amount" json:"amount"`
}

type RareReward struct {
	Item   ItemID  `yaml:"item" json:"item"`
	Amount int     `yaml:"amount" json:"amount"`
	Chance float64 `yaml:"chance" json:"chance"`
}

// Recipe is a tagged variant keyed by skill. The same record describes
// gathering yields, crafting conversions and combat encounters.
type Recipe struct {
	ID          RecipeID     `yaml:"id" json:"id"`
	SkillID     SkillID      `yaml:"skill" json:"skill"`
	Name        string       `yaml:"name" json:"name"`
	UnlockLevel int          `yaml:"unlock_level" json:"unlock_level"`
	Inputs      []ItemAmount `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs     []ItemAmount `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Gold        int          `yaml:"gold,omitempty" json:"gold,omitempty"`
	Rare        []RareReward `yaml:"rare,omitempty" json:"rare,omitempty"`
	XP          int          `yaml:"xp" json:"xp"`
	RecipeXP    int          `yaml:"recipe_xp" json:"recipe_xp"`
}

type Mechanic string

const (
	MechanicNone   Mechanic = ""
	MechanicPoison Mechanic = "poison"
	MechanicBurst  Mechanic = "burst"
)

type Enemy struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	HP             int      `yaml:"hp" json:"hp"`
	Damage         int      `yaml:"damage" json:"damage"`
	Mechanic       Mechanic `yaml:"mechanic,omitempty" json:"mechanic,omitempty"`
	MechanicDamage int      `yaml:"mechanic_damage,omitempty" json:"mechanic_damage,omitempty"`
}

type Dungeon struct {
	ID          DungeonID    `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	FloorCount  int          `yaml:"floor_count" json:"floor_count"`
	Reagent     ItemAmount   `yaml:"reagent" json:"reagent"`
	Minions     []Enemy      `yaml:"minions" json:"minions"`
	Boss        Enemy        `yaml:"boss" json:"boss"`
	KillGold    int          `yaml:"kill_gold" json:"kill_gold"`
	VictoryGold int          `yaml:"victory_gold" json:"victory_gold"`
	KillXP      int          `yaml:"kill_xp" json:"kill_xp"`
	Loot        []ItemAmount `yaml:"loot,omitempty" json:"loot,omitempty"`
}

type QuestKind string

const (
	QuestSkillLevel   QuestKind = "skill_level"
	QuestCraft        QuestKind = "craft"
	QuestCollect      QuestKind = "collect"
	QuestDungeonClear QuestKind = "dungeon_clear"
)

type Quest struct {
	ID          QuestID   `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        QuestKind `yaml:"kind" json:"kind"`
	SkillID     SkillID   `yaml:"skill,omitempty" json:"skill,omitempty"`
	ItemID      ItemID    `yaml:"item,omitempty" json:"item,omitempty"`
	DungeonID   DungeonID `yaml:"dungeon,omitempty" json:"dungeon,omitempty"`
	Target      int       `yaml:"target" json:"target"`
	GoldReward  int       `yaml:"gold_reward" json:"gold_reward"`
}

// Content is the raw catalog document.
type Content struct {
	Version  string    `yaml:"version"`
	Skills   []Skill   `yaml:"skills"`
	Items    []Item    `yaml:"items"`
	Actions  []Action  `yaml:"actions"`
	Recipes  []Recipe  `yaml:"recipes"`
	Dungeons []Dungeon `yaml:"dungeons"`
	Quests   []Quest   `yaml:"quests"`
}
