package save

import (
	"encoding/json"
	"testing"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/game"
	"idlerealm/internal/inventory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) game.State {
	t.Helper()
	reg, b := catalog.MustDefault(), config.Default()
	e := game.Engine{Catalog: reg, Balance: b}
	s := game.NewState(reg, b)
	s, err := e.Dispatch(s, game.Command{Type: game.CmdAddPlayer, Name: "Rook"}, 1000)
	require.NoError(t, err)
	s, err = e.Dispatch(s, game.Command{Type: game.CmdSelectAction, PlayerID: "2", ActionID: "woodcutting"}, 1000)
	require.NoError(t, err)
	s.Inventory = inventory.Inventory{"food": 3, catalog.Gold: 12}
	s.Quests.Completed["q_first_blood"] = true
	at := int64(1_700_000_000_000)
	s.LastTick = &at
	return s
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	reg, b := catalog.MustDefault(), config.Default()
	s := sampleState(t)

	body, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(body, reg, b)
	require.NoError(t, err)

	want := game.Normalize(s, reg, b)
	assert.Equal(t, want.Players, got.Players)
	assert.Equal(t, want.Roster, got.Roster)
	assert.Equal(t, want.Inventory, got.Inventory)
	assert.Equal(t, want.ActivePlayerID, got.ActivePlayerID)
	require.NotNil(t, got.LastTick)
	assert.Equal(t, *s.LastTick, *got.LastTick)
	assert.Nil(t, got.LastHiddenAt)
	assert.True(t, got.Quests.Completed["q_first_blood"])
	assert.Equal(t, game.SaveVersion, got.Version)
}

func TestDecode_NotAnObject(t *testing.T) {
	reg, b := catalog.MustDefault(), config.Default()
	for _, body := range []string{"", "null", "[]", "42", "{broken"} {
		_, err := Decode([]byte(body), reg, b)
		assert.ErrorIs(t, err, ErrCorrupt, "body %q", body)
	}
}

func TestDecode_EmptyObjectIsFreshState(t *testing.T) {
	reg, b := catalog.MustDefault(), config.Default()
	got, err := Decode([]byte(`{}`), reg, b)
	require.NoError(t, err)

	fresh := game.NewState(reg, b)
	assert.Equal(t, fresh.Roster, got.Roster)
	assert.Len(t, got.Players, 1)
	assert.Empty(t, got.Inventory)
	assert.Nil(t, got.LastTick)
}

func TestDecode_BrokenSectionsFallBack(t *testing.T) {
	reg, b := catalog.MustDefault(), config.Default()
	s := sampleState(t)
	body, err := Encode(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	raw["quests"] = "nope"
	raw["dungeon"] = []int{1, 2}
	raw["lastTick"] = "yesterday"
	raw["rosterLimit"] = -3
	body, err = json.Marshal(raw)
	require.NoError(t, err)

	got, err := Decode(body, reg, b)
	require.NoError(t, err)
	assert.Empty(t, got.Quests.Completed)
	assert.Empty(t, got.Dungeon.Runs)
	assert.Nil(t, got.LastTick)
	assert.Equal(t, b.RosterLimit, got.RosterLimit)
	assert.Len(t, got.Players, 2, "healthy sections survive")
}

func TestDecode_InventoryKeepsPositiveWholeCounts(t *testing.T) {
	reg, b := catalog.MustDefault(), config.Default()
	body := []byte(`{"inventory":{"food":4,"logs":-2,"ore":1.5,"gold":"7","bones":0,"fish":2}}`)

	got, err := Decode(body, reg, b)
	require.NoError(t, err)
	assert.Equal(t, inventory.Inventory{"food": 4, "fish": 2}, got.Inventory)
}

func TestDecode_BrokenPlayerDropped(t *testing.T) {
	reg, b := catalog.MustDefault(), config.Default()
	body := []byte(`{
		"players": {"1": {"id":"1","name":"Ada","hp":50}, "2": "garbage", "x": {"name":"bad id"}},
		"roster": ["2","1","1"],
		"activePlayerId": "2"
	}`)

	got, err := Decode(body, reg, b)
	require.NoError(t, err)
	require.Len(t, got.Players, 1)
	assert.Equal(t, "Ada", got.Players["1"].Name)
	assert.Equal(t, 50, got.Players["1"].HP)
	assert.Equal(t, []string{"1"}, got.Roster)
	assert.Equal(t, "1", got.ActivePlayerID)
}

func TestPeekVersion(t *testing.T) {
	assert.Equal(t, "1", peekVersion([]byte(`{"version":"1","players":{}}`)))
	assert.Equal(t, "", peekVersion([]byte(`not json`)))
}
