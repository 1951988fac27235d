package game

import (
	"errors"
	"fmt"
	"strings"

	"idlerealm/internal/catalog"
	"idlerealm/internal/player"

	"github.com/sirupsen/logrus"
)

type CommandType string

const (
	CmdSelectAction    CommandType = "select_action"
	CmdSelectRecipe    CommandType = "select_recipe"
	CmdEquipItem       CommandType = "equip_item"
	CmdUnequipItem     CommandType = "unequip_item"
	CmdAddPlayer       CommandType = "add_player"
	CmdReorderRoster   CommandType = "reorder_roster"
	CmdDungeonStartRun CommandType = "dungeon_start_run"
	CmdDungeonStop     CommandType = "dungeon_stop"
	CmdSetActivePlayer CommandType = "set_active_player"
	CmdSetHiddenAt     CommandType = "set_hidden_at"
	CmdHydrate         CommandType = "hydrate"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrUnknownAction  = errors.New("unknown action")
	ErrUnknownRecipe  = errors.New("unknown recipe")
	ErrRecipeLocked   = errors.New("recipe locked")
	ErrUnknownItem    = errors.New("unknown item")
	ErrNotEquippable  = errors.New("item cannot be equipped")
	ErrNoItem         = errors.New("item not in inventory")
	ErrSlotEmpty      = errors.New("slot is empty")
	ErrRosterFull     = errors.New("roster is full")
	ErrInvalidOrder   = errors.New("order must list every roster player once")
	ErrLocked         = errors.New("player is in a dungeon run")
	ErrMissingState   = errors.New("hydrate needs a state")
)

// Command is a discrete player intent. Only the fields its Type needs are read.
type Command struct {
	Type      CommandType       `json:"type"`
	PlayerID  string            `json:"playerId,omitempty"`
	ActionID  catalog.ActionID  `json:"actionId,omitempty"`
	RecipeID  catalog.RecipeID  `json:"recipeId,omitempty"`
	ItemID    catalog.ItemID    `json:"itemId,omitempty"`
	Slot      catalog.Slot      `json:"slot,omitempty"`
	Name      string            `json:"name,omitempty"`
	Order     []string          `json:"order,omitempty"`
	DungeonID catalog.DungeonID `json:"dungeonId,omitempty"`
	Party     []string          `json:"party,omitempty"`
	At        *int64            `json:"at,omitempty"`
	State     *State            `json:"state,omitempty"`
}

// Dispatch applies cmd at time now. On error the returned State is s, so
// callers can log the error and carry on.
func (e Engine) Dispatch(s State, cmd Command, now int64) (State, error) {
	out, err := e.dispatch(s, cmd, now)
	if err != nil {
		e.log().WithFields(logrus.Fields{"command": cmd.Type, "player": cmd.PlayerID}).WithError(err).Debug("command rejected")
		return s, err
	}
	return out, nil
}

func (e Engine) dispatch(s State, cmd Command, now int64) (State, error) {
	switch cmd.Type {
	case CmdSelectAction:
		return e.selectAction(s, cmd)
	case CmdSelectRecipe:
		return e.selectRecipe(s, cmd)
	case CmdEquipItem:
		return e.equipItem(s, cmd)
	case CmdUnequipItem:
		return e.unequipItem(s, cmd)
	case CmdAddPlayer:
		return e.addPlayer(s, cmd, now)
	case CmdReorderRoster:
		return reorderRoster(s, cmd)
	case CmdDungeonStartRun:
		return e.dungeonStart(s, cmd, now)
	case CmdDungeonStop:
		return e.dungeonStop(s, now)
	case CmdSetActivePlayer:
		if _, ok := s.Players[cmd.PlayerID]; !ok {
			return s, fmt.Errorf("%w: %q", ErrUnknownPlayer, cmd.PlayerID)
		}
		out := s.Clone()
		out.ActivePlayerID = cmd.PlayerID
		return out, nil
	case CmdSetHiddenAt:
		out := s.Clone()
		out.LastHiddenAt = cloneTime(cmd.At)
		return out, nil
	case CmdHydrate:
		if cmd.State == nil {
			return s, ErrMissingState
		}
		return Normalize(*cmd.State, e.Catalog, e.Balance), nil
	}
	return s, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
}

// editablePlayer returns a clone of s and the player to modify, rejecting
// unknown and dungeon-locked players.
func editablePlayer(s State, id string) (State, player.Player, error) {
	if _, ok := s.Players[id]; !ok {
		return s, player.Player{}, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	if s.Dungeon.Locked()[id] {
		return s, player.Player{}, fmt.Errorf("%w: %s", ErrLocked, id)
	}
	out := s.Clone()
	return out, out.Players[id], nil
}

func (e Engine) selectAction(s State, cmd Command) (State, error) {
	if cmd.ActionID != "" {
		if _, ok := e.Catalog.Action(cmd.ActionID); !ok {
			return s, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.ActionID)
		}
	}
	out, p, err := editablePlayer(s, cmd.PlayerID)
	if err != nil {
		return s, err
	}
	if p.SelectedActionID != cmd.ActionID {
		p.SelectedActionID = cmd.ActionID
		p.ActionProgress = 0
	}
	out.Players[p.ID] = p
	return out, nil
}

func (e Engine) selectRecipe(s State, cmd Command) (State, error) {
	rec, ok := e.Catalog.Recipe(cmd.RecipeID)
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownRecipe, cmd.RecipeID)
	}
	out, p, err := editablePlayer(s, cmd.PlayerID)
	if err != nil {
		return s, err
	}
	if rec.UnlockLevel > p.Level(rec.SkillID) {
		return s, fmt.Errorf("%w: %s needs level %d", ErrRecipeLocked, rec.ID, rec.UnlockLevel)
	}
	sp := p.Skills[rec.SkillID]
	if sp.Level == 0 {
		sp = player.NewSkillProgress(e.Balance)
	}
	if sp.SelectedRecipeID != rec.ID {
		sp.SelectedRecipeID = rec.ID
		if act, ok := e.Catalog.Action(p.SelectedActionID); ok && act.SkillID == rec.SkillID {
			p.ActionProgress = 0
		}
	}
	p.Skills[rec.SkillID] = sp
	out.Players[p.ID] = p
	return out, nil
}

func (e Engine) equipItem(s State, cmd Command) (State, error) {
	it, ok := e.Catalog.Item(cmd.ItemID)
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownItem, cmd.ItemID)
	}
	if it.Slot == "" {
		return s, fmt.Errorf("%w: %s", ErrNotEquippable, it.ID)
	}
	out, p, err := editablePlayer(s, cmd.PlayerID)
	if err != nil {
		return s, err
	}
	if !out.Inventory.Spend(it.ID, 1) {
		return s, fmt.Errorf("%w: %s", ErrNoItem, it.ID)
	}
	if prev, ok := p.Equipment[it.Slot]; ok && prev != "" {
		out.Inventory.Add(prev, 1)
	}
	p.Equipment[it.Slot] = it.ID
	p.Stamina = min(p.Stamina, p.StaminaCap(e.Catalog))
	out.Players[p.ID] = p
	return out, nil
}

func (e Engine) unequipItem(s State, cmd Command) (State, error) {
	out, p, err := editablePlayer(s, cmd.PlayerID)
	if err != nil {
		return s, err
	}
	prev, ok := p.Equipment[cmd.Slot]
	if !ok || prev == "" {
		return s, fmt.Errorf("%w: %s", ErrSlotEmpty, cmd.Slot)
	}
	delete(p.Equipment, cmd.Slot)
	out.Inventory.Add(prev, 1)
	p.Stamina = min(p.Stamina, p.StaminaCap(e.Catalog))
	out.Players[p.ID] = p
	return out, nil
}

func (e Engine) addPlayer(s State, cmd Command, now int64) (State, error) {
	limit := s.RosterLimit
	if limit <= 0 {
		limit = e.Balance.RosterLimit
	}
	if len(s.Players) >= limit {
		return s, fmt.Errorf("%w: limit %d", ErrRosterFull, limit)
	}
	out := s.Clone()
	id := out.nextPlayerID()
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = "Adventurer " + id
	}
	p := player.New(id, name, e.Catalog, e.Balance)
	p.CreatedAt = now
	out.Players[id] = p
	out.Roster = append(out.Roster, id)
	if out.ActivePlayerID == "" {
		out.ActivePlayerID = id
	}
	return out, nil
}

func reorderRoster(s State, cmd Command) (State, error) {
	if len(cmd.Order) != len(s.Roster) {
		return s, ErrInvalidOrder
	}
	want := map[string]bool{}
	for _, id := range s.Roster {
		want[id] = true
	}
	for _, id := range cmd.Order {
		if !want[id] {
			return s, fmt.Errorf("%w: %q", ErrInvalidOrder, id)
		}
		delete(want, id)
	}
	out := s.Clone()
	out.Roster = append([]string(nil), cmd.Order...)
	return out, nil
}

func (e Engine) dungeonStart(s State, cmd Command, now int64) (State, error) {
	party := cmd.Party
	if len(party) == 0 {
		party = s.Roster[:min(len(s.Roster), e.Balance.PartySize)]
	}
	w, err := e.dungeon().Start(s.world(), cmd.DungeonID, party, now)
	if err != nil {
		return s, err
	}
	return s.withWorld(w), nil
}

func (e Engine) dungeonStop(s State, now int64) (State, error) {
	w, err := e.dungeon().Stop(s.world(), now)
	if err != nil {
		return s, err
	}
	return s.withWorld(w), nil
}
