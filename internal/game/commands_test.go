package game

import (
	"testing"

	"idlerealm/internal/catalog"
	"idlerealm/internal/inventory"
	"idlerealm/internal/player"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_InvalidInputLeavesStateUnchanged(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 2)

	cases := []struct {
		name string
		cmd  Command
		err  error
	}{
		{"unknown type", Command{Type: "dance"}, ErrUnknownCommand},
		{"unknown player", Command{Type: CmdSelectAction, PlayerID: "9", ActionID: "combat"}, ErrUnknownPlayer},
		{"unknown action", Command{Type: CmdSelectAction, PlayerID: "1", ActionID: "juggling"}, ErrUnknownAction},
		{"unknown recipe", Command{Type: CmdSelectRecipe, PlayerID: "1", RecipeID: "nope"}, ErrUnknownRecipe},
		{"locked recipe", Command{Type: CmdSelectRecipe, PlayerID: "1", RecipeID: "combat_wolves"}, ErrRecipeLocked},
		{"equip missing item", Command{Type: CmdEquipItem, PlayerID: "1", ItemID: "iron_sword"}, ErrNoItem},
		{"equip non-equipment", Command{Type: CmdEquipItem, PlayerID: "1", ItemID: "food"}, ErrNotEquippable},
		{"unequip empty", Command{Type: CmdUnequipItem, PlayerID: "1", Slot: catalog.SlotWeapon}, ErrSlotEmpty},
		{"bad order", Command{Type: CmdReorderRoster, Order: []string{"1", "1"}}, ErrInvalidOrder},
		{"short order", Command{Type: CmdReorderRoster, Order: []string{"1"}}, ErrInvalidOrder},
		{"set unknown active", Command{Type: CmdSetActivePlayer, PlayerID: "7"}, ErrUnknownPlayer},
		{"hydrate nothing", Command{Type: CmdHydrate}, ErrMissingState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := e.Dispatch(s, tc.cmd, start)
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, s, out)
		})
	}
}

func TestDispatch_SelectActionResetsProgress(t *testing.T) {
	e := newEngineForTest()
	s := selectAction(t, e, withPlayers(t, e, 1), "1", "woodcutting")
	s, _ = e.ApplyTick(s, 1000, start+1000)
	require.Positive(t, s.Players["1"].ActionProgress)

	same := selectAction(t, e, s, "1", "woodcutting")
	assert.Equal(t, s.Players["1"].ActionProgress, same.Players["1"].ActionProgress)

	other := selectAction(t, e, s, "1", "fishing")
	assert.Zero(t, other.Players["1"].ActionProgress)

	cleared := selectAction(t, e, s, "1", "")
	assert.Empty(t, cleared.Players["1"].SelectedActionID)
}

func TestDispatch_SelectRecipe(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 1)
	p := s.Players["1"]
	sp := p.Skills["smithing"]
	sp.Level = 5
	p.Skills["smithing"] = sp
	s.Players["1"] = p

	out, err := e.Dispatch(s, Command{Type: CmdSelectRecipe, PlayerID: "1", RecipeID: "smithing_key"}, start)
	require.NoError(t, err)
	assert.Equal(t, catalog.RecipeID("smithing_key"), out.Players["1"].Skills["smithing"].SelectedRecipeID)
}

func TestDispatch_EquipSwapsThroughInventory(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 1)
	s.Inventory = inventory.Inventory{"bronze_sword": 1, "iron_sword": 1}

	s, err := e.Dispatch(s, Command{Type: CmdEquipItem, PlayerID: "1", ItemID: "bronze_sword"}, start)
	require.NoError(t, err)
	assert.Equal(t, catalog.ItemID("bronze_sword"), s.Players["1"].Equipment[catalog.SlotWeapon])
	assert.Zero(t, s.Inventory.Count("bronze_sword"))

	s, err = e.Dispatch(s, Command{Type: CmdEquipItem, PlayerID: "1", ItemID: "iron_sword"}, start)
	require.NoError(t, err)
	assert.Equal(t, catalog.ItemID("iron_sword"), s.Players["1"].Equipment[catalog.SlotWeapon])
	assert.Equal(t, 1, s.Inventory.Count("bronze_sword"))

	s, err = e.Dispatch(s, Command{Type: CmdUnequipItem, PlayerID: "1", Slot: catalog.SlotWeapon}, start)
	require.NoError(t, err)
	assert.Empty(t, s.Players["1"].Equipment)
	assert.Equal(t, inventory.Inventory{"bronze_sword": 1, "iron_sword": 1}, s.Inventory)
}

func TestDispatch_UnequipClampsStamina(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 1)
	s.Inventory = inventory.Inventory{"iron_armor": 1}
	s, err := e.Dispatch(s, Command{Type: CmdEquipItem, PlayerID: "1", ItemID: "iron_armor"}, start)
	require.NoError(t, err)
	p := s.Players["1"]
	p.Stamina = 120
	s.Players["1"] = p

	s, err = e.Dispatch(s, Command{Type: CmdUnequipItem, PlayerID: "1", Slot: catalog.SlotArmor}, start)
	require.NoError(t, err)
	assert.Equal(t, player.DefaultStaminaMax, s.Players["1"].Stamina)
}

func TestDispatch_AddPlayerRespectsLimit(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 4)
	assert.Equal(t, []string{"1", "2", "3", "4"}, s.Roster)
	assert.Equal(t, start, s.Players["4"].CreatedAt)

	_, err := e.Dispatch(s, Command{Type: CmdAddPlayer, Name: "Extra"}, start)
	assert.ErrorIs(t, err, ErrRosterFull)
}

func TestDispatch_AddPlayerName(t *testing.T) {
	e := newEngineForTest()
	s, err := e.Dispatch(NewState(e.Catalog, e.Balance), Command{Type: CmdAddPlayer, Name: "  Bo "}, start)
	require.NoError(t, err)
	assert.Equal(t, "Bo", s.Players["2"].Name)
}

func TestDispatch_ReorderRoster(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 3)

	out, err := e.Dispatch(s, Command{Type: CmdReorderRoster, Order: []string{"3", "1", "2"}}, start)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, out.Roster)
	assert.Equal(t, []string{"1", "2", "3"}, s.Roster)
}

func TestDispatch_DungeonStartAndStop(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 4)

	_, err := e.Dispatch(s, Command{Type: CmdDungeonStartRun, DungeonID: "crypt"}, start)
	require.Error(t, err, "no reagent")

	s.Inventory = inventory.Inventory{"crypt_key": 1}
	s, err = e.Dispatch(s, Command{Type: CmdDungeonStartRun, DungeonID: "crypt"}, start)
	require.NoError(t, err)
	require.NotEmpty(t, s.Dungeon.ActiveRunID)

	_, err = e.Dispatch(s, Command{Type: CmdSelectAction, PlayerID: "2", ActionID: "mining"}, start)
	assert.ErrorIs(t, err, ErrLocked)

	s, err = e.Dispatch(s, Command{Type: CmdDungeonStop}, start+1000)
	require.NoError(t, err)
	assert.Empty(t, s.Dungeon.ActiveRunID)

	_, err = e.Dispatch(s, Command{Type: CmdSelectAction, PlayerID: "2", ActionID: "mining"}, start)
	assert.NoError(t, err)
}

func TestDispatch_SetHiddenAtAndActive(t *testing.T) {
	e := newEngineForTest()
	s := withPlayers(t, e, 2)

	at := start + 5
	s, err := e.Dispatch(s, Command{Type: CmdSetHiddenAt, At: &at}, start)
	require.NoError(t, err)
	require.NotNil(t, s.LastHiddenAt)
	assert.Equal(t, at, *s.LastHiddenAt)

	s, err = e.Dispatch(s, Command{Type: CmdSetHiddenAt}, start)
	require.NoError(t, err)
	assert.Nil(t, s.LastHiddenAt)

	s, err = e.Dispatch(s, Command{Type: CmdSetActivePlayer, PlayerID: "2"}, start)
	require.NoError(t, err)
	assert.Equal(t, "2", s.ActivePlayerID)
}

func TestDispatch_HydrateNormalizes(t *testing.T) {
	e := newEngineForTest()
	raw := State{
		Players: map[string]player.Player{
			"2":   {ID: "x", Name: "Bo", HP: -4},
			"abc": {Name: "Bad"},
		},
		Roster:         []string{"9", "2", "2"},
		ActivePlayerID: "9",
	}

	s, err := e.Dispatch(NewState(e.Catalog, e.Balance), Command{Type: CmdHydrate, State: &raw}, start)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, s.Roster)
	assert.Equal(t, "2", s.ActivePlayerID)
	assert.Equal(t, "2", s.Players["2"].ID)
	assert.Zero(t, s.Players["2"].HP)
	assert.NotContains(t, s.Players, "abc")
	assert.Equal(t, e.Balance.RosterLimit, s.RosterLimit)
	assert.Equal(t, SaveVersion, s.Version)
	assert.NotNil(t, s.Inventory)
	assert.NotNil(t, s.Quests.Completed)
}
