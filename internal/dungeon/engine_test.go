package dungeon

import (
	"testing"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/inventory"
	"idlerealm/internal/player"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const t0 = int64(1_767_225_600_000)

var party = []string{"1", "2", "3", "4"}

func newEngine() Engine {
	return Engine{Catalog: catalog.MustDefault(), Balance: config.Default()}
}

func newWorld(e Engine, inv inventory.Inventory) World {
	w := World{Dungeon: NewState(), Players: map[string]player.Player{}, Inventory: inv}
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		w.Players[id] = player.New(id, "P"+id, e.Catalog, e.Balance)
	}
	return w
}

func started(t *testing.T, e Engine, inv inventory.Inventory) World {
	t.Helper()
	w, err := e.Start(newWorld(e, inv), "crypt", party, t0)
	require.NoError(t, err)
	return w
}

// editRun applies fn to the active run in place.
func editRun(w *World, fn func(r *Run)) {
	r := w.Dungeon.Runs[w.Dungeon.ActiveRunID]
	fn(&r)
	w.Dungeon.Runs[r.ID] = r
}

func TestStart_RequiresReagent(t *testing.T) {
	e := newEngine()
	w := newWorld(e, inventory.Inventory{})

	out, err := e.Start(w, "crypt", party, t0)
	require.ErrorIs(t, err, ErrInsufficientReagent)
	assert.Empty(t, out.Dungeon.ActiveRunID)
	assert.Empty(t, out.Dungeon.Runs)
}

func TestStart_ValidatesParty(t *testing.T) {
	e := newEngine()
	w := newWorld(e, inventory.Inventory{"crypt_key": 2})

	_, err := e.Start(w, "crypt", party[:3], t0)
	assert.ErrorIs(t, err, ErrPartySize)

	_, err = e.Start(w, "crypt", []string{"1", "2", "3", "3"}, t0)
	assert.ErrorIs(t, err, ErrDuplicateMember)

	_, err = e.Start(w, "crypt", []string{"1", "2", "3", "9"}, t0)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	_, err = e.Start(w, "nowhere", party, t0)
	assert.ErrorIs(t, err, ErrUnknownDungeon)

	w2, err := e.Start(w, "crypt", party, t0)
	require.NoError(t, err)
	_, err = e.Start(w2, "crypt", []string{"2", "3", "4", "5"}, t0)
	assert.ErrorIs(t, err, ErrRunActive)
}

func TestStart_ConsumesReagentAndLocksParty(t *testing.T) {
	e := newEngine()
	w := newWorld(e, inventory.Inventory{"crypt_key": 2, "food": 3})
	p := w.Players["2"]
	p.HP = 10
	w.Players["2"] = p

	out, err := e.Start(w, "crypt", party, t0)
	require.NoError(t, err)

	run, ok := out.Dungeon.ActiveRun()
	require.True(t, ok)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, 1, run.Floor)
	assert.Equal(t, 3, run.FloorCount)
	assert.Len(t, run.Enemies, 2)
	assert.Equal(t, run.Enemies[0].ID, run.TargetEnemyID)
	assert.Equal(t, inventory.Inventory{"crypt_key": 2, "food": 3}, run.StartInventory)
	assert.Equal(t, 1, out.Inventory.Count("crypt_key"))
	assert.Equal(t, out.Players["2"].HPMax, out.Players["2"].HP)
	assert.Equal(t, []EventKind{EventRunStart, EventFloorStart}, kinds(run.Events))

	locked := out.Dungeon.Locked()
	assert.True(t, locked["1"])
	assert.False(t, locked["5"])

	// input untouched
	assert.Equal(t, 2, w.Inventory.Count("crypt_key"))
	assert.Equal(t, 10, w.Players["2"].HP)
}

func TestTick_HealsAtThreshold(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1, "potion": 1})
	editRun(&w, func(r *Run) { r.Party[0].HP = 50 })

	out, oc := e.Tick(w, 1000, t0+1000)
	run, _ := out.Dungeon.ActiveRun()

	assert.Equal(t, 1, oc.Rounds)
	assert.Zero(t, out.Inventory.Count("potion"))
	assert.Equal(t, -1, oc.ItemDeltas["potion"])
	// 50 - 2 (skeleton) - 3 (ghoul) + 40
	assert.Equal(t, 85, run.Party[0].HP)
	assert.Equal(t, e.Balance.HealCooldownMs, run.Party[0].HealCooldownMs)
	assert.Equal(t, 85, out.Players["1"].HP)
	assert.Contains(t, kinds(run.Events), EventHeal)
}

func TestTick_HealPrefersStrongest(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1, "food": 5, "elixir": 1, "potion": 1})
	editRun(&w, func(r *Run) { r.Party[0].HP = 10 })

	out, _ := e.Tick(w, 1000, t0+1000)
	assert.Zero(t, out.Inventory.Count("elixir"))
	assert.Equal(t, 1, out.Inventory.Count("potion"))
	assert.Equal(t, 5, out.Inventory.Count("food"))
}

func TestTick_PartialRoundCarries(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1})

	out, oc := e.Tick(w, 600, t0+600)
	assert.Zero(t, oc.Rounds)
	run, _ := out.Dungeon.ActiveRun()
	assert.Equal(t, int64(600), run.RoundProgressMs)

	out, oc = e.Tick(out, 600, t0+1200)
	assert.Equal(t, 1, oc.Rounds)
	run, _ = out.Dungeon.ActiveRun()
	assert.Equal(t, int64(200), run.RoundProgressMs)
}

func bossFloor(r *Run) {
	r.Floor = r.FloorCount
	r.Enemies = []Enemy{{ID: "lich-f3", Name: "Lich", HP: 1, HPMax: 120, Damage: 4, Boss: true}}
}

func TestTick_BossOnLastFloorIsVictory(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1})
	editRun(&w, func(r *Run) {
		bossFloor(r)
		r.Party[1].HP = 3
	})

	out, oc := e.Tick(w, 1000, t0+1000)
	run, ok := out.Dungeon.ActiveRun()
	require.True(t, ok, "a victory keeps the run registered until restart")

	assert.Equal(t, StatusVictory, run.Status)
	require.NotNil(t, run.RestartAt)
	assert.Equal(t, t0+1000+e.Balance.RestartDelayMs, *run.RestartAt)
	for _, m := range run.Party {
		assert.Equal(t, m.HPMax, m.HP)
	}
	assert.Equal(t, []catalog.DungeonID{"crypt"}, oc.Clears)

	// kill gold 2 + victory gold 15
	assert.Equal(t, 17, oc.GoldEarned)
	assert.Equal(t, map[string]int{"1": 5, "2": 4, "3": 4, "4": 4}, oc.GoldByPlayer)
	assert.Equal(t, 17, out.Inventory.Count(catalog.Gold))
	assert.Equal(t, 5, out.Inventory.Count("bones"))
	assert.Equal(t, 1, out.Inventory.Count("potion"))
	assert.Equal(t, 3, oc.XPByPlayer["4"])

	require.NotNil(t, out.Dungeon.LatestReplay)
	assert.Equal(t, StatusVictory, out.Dungeon.LatestReplay.Status)
	assert.False(t, out.Dungeon.LatestReplay.FallbackCriticalOnly)
	assert.Equal(t, 17, out.Dungeon.LatestReplay.EndInventory.Count(catalog.Gold))
	assert.True(t, out.Dungeon.Locked()["1"], "party stays locked while waiting to restart")
}

func TestTick_RestartWithoutReagentReleasesParty(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1})
	editRun(&w, bossFloor)
	w, _ = e.Tick(w, 1000, t0+1000)

	out, _ := e.Tick(w, 10000, t0+11000)
	assert.Empty(t, out.Dungeon.ActiveRunID)
	assert.Empty(t, out.Dungeon.Locked())
}

func TestTick_RestartConsumesReagent(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 2})
	editRun(&w, bossFloor)
	w, _ = e.Tick(w, 1000, t0+1000)
	firstID := w.Dungeon.ActiveRunID

	out, _ := e.Tick(w, 5000, t0+6000)
	run, ok := out.Dungeon.ActiveRun()
	require.True(t, ok)
	assert.NotEqual(t, firstID, run.ID)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, 1, run.Floor)
	assert.Zero(t, out.Inventory.Count("crypt_key"))
	assert.Equal(t, t0+6000, run.StartedAt)
	assert.Equal(t, EventRestart, run.Events[0].Kind)
}

func TestTick_DefeatUnlocksAndRestores(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1})
	editRun(&w, func(r *Run) {
		r.Floor = r.FloorCount
		r.Enemies = []Enemy{{ID: "lich-f3", HP: 10000, HPMax: 10000, Damage: 4, Boss: true, Mechanic: catalog.MechanicPoison, MechanicDamage: 1}}
		for i := range r.Party {
			r.Party[i].HP = 1
		}
	})

	out, oc := e.Tick(w, 1000, t0+1000)
	assert.Empty(t, out.Dungeon.ActiveRunID)
	assert.Empty(t, oc.Clears)
	require.NotNil(t, out.Dungeon.LatestReplay)
	assert.Equal(t, StatusDefeat, out.Dungeon.LatestReplay.Status)
	for _, id := range party {
		assert.Equal(t, out.Players[id].HPMax, out.Players[id].HP)
	}
	assert.Empty(t, out.Dungeon.Locked())
}

func TestTick_BurstEveryNRounds(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1})
	editRun(&w, func(r *Run) {
		r.Floor = r.FloorCount
		r.Enemies = []Enemy{{ID: "colossus", HP: 10000, HPMax: 10000, Damage: 1, Boss: true, Mechanic: catalog.MechanicBurst, MechanicDamage: 10}}
	})

	out, _ := e.Tick(w, 3000, t0+3000)
	run, _ := out.Dungeon.ActiveRun()
	bursts := 0
	for _, ev := range run.Events {
		if ev.Kind == EventBurst {
			bursts++
		}
	}
	assert.Equal(t, len(party), bursts, "one burst on round 3 hits every member")
	assert.Equal(t, 90, run.Party[3].HP)
}

func TestStop(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1})
	editRun(&w, func(r *Run) { r.Party[2].HP = 7 })

	out, err := e.Stop(w, t0+500)
	require.NoError(t, err)
	assert.Empty(t, out.Dungeon.ActiveRunID)
	assert.Empty(t, out.Dungeon.Locked())
	require.NotNil(t, out.Dungeon.LatestReplay)
	assert.Equal(t, StatusStopped, out.Dungeon.LatestReplay.Status)
	assert.Equal(t, 100, out.Dungeon.LatestReplay.Team[2].HP)

	_, err = e.Stop(out, t0+600)
	assert.ErrorIs(t, err, ErrNoActiveRun)
}

func TestReplay_RingBufferCap(t *testing.T) {
	e := newEngine()
	e.Balance.ReplayMaxEvents = 5
	w := started(t, e, inventory.Inventory{"crypt_key": 1})

	out, _ := e.Tick(w, 10000, t0+10000)
	run, ok := out.Dungeon.Runs[w.Dungeon.ActiveRunID]
	require.True(t, ok)
	assert.Len(t, run.Events, 5)
	assert.Positive(t, run.TruncatedEvents)

	rp := buildReplay(run, 5, out.Inventory)
	assert.True(t, rp.Truncated)

	run.TruncatedEvents = 0
	rp = buildReplay(run, 3, out.Inventory)
	assert.True(t, rp.Truncated, "more events than the cap also counts as truncated")
	assert.Len(t, rp.Events, 3)
}

func TestTick_DeterministicAcrossSplits(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 2, "food": 10, "potion": 2})

	one, _ := e.Tick(w, 120000, t0+120000)

	split := w
	for i := int64(1); i <= 120; i++ {
		split, _ = e.Tick(split, 1000, t0+i*1000)
	}
	assert.Equal(t, one.Dungeon, split.Dungeon)
	assert.Equal(t, one.Inventory, split.Inventory)
}

func TestTick_MaxRoundsPerTickCarriesBacklog(t *testing.T) {
	e := newEngine()
	e.Balance.MaxRoundsPerTick = 3
	w := started(t, e, inventory.Inventory{"crypt_key": 1})

	out, oc := e.Tick(w, 60000, t0+60000)
	assert.Equal(t, 3, oc.Rounds)
	run, _ := out.Dungeon.ActiveRun()
	assert.Equal(t, int64(57000), run.RoundProgressMs)

	out, oc = e.Tick(out, 0, t0+60000)
	assert.Equal(t, 3, oc.Rounds)
	run, _ = out.Dungeon.ActiveRun()
	assert.Equal(t, int64(54000), run.RoundProgressMs)
}

func TestTick_DeterministicPastRoundCap(t *testing.T) {
	e := newEngine()
	e.Balance.MaxRoundsPerTick = 50
	w := started(t, e, inventory.Inventory{"crypt_key": 3, "food": 20, "potion": 5})

	one, _ := e.Tick(w, 300000, t0+300000)
	for i := 0; i < 10; i++ {
		one, _ = e.Tick(one, 0, t0+300000)
	}

	split := w
	for i := int64(1); i <= 300; i++ {
		split, _ = e.Tick(split, 1000, t0+i*1000)
	}
	assert.Equal(t, one.Dungeon, split.Dungeon)
	assert.Equal(t, one.Inventory, split.Inventory)
}

func TestTick_LongCatchUpMatchesHourlyTicks(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 500, "food": 500, "potion": 200})
	const hour = int64(3600000)

	one, _ := e.Tick(w, 10*hour, t0+10*hour)

	split := w
	for i := int64(1); i <= 10; i++ {
		split, _ = e.Tick(split, hour, t0+i*hour)
	}
	assert.Equal(t, one.Dungeon, split.Dungeon)
	assert.Equal(t, one.Inventory, split.Inventory)
}

func TestFinish_IgnoresRunThatIsNotRunning(t *testing.T) {
	e := newEngine()
	w := started(t, e, inventory.Inventory{"crypt_key": 1})
	editRun(&w, func(r *Run) { r.Status = StatusStopped })
	run, _ := w.Dungeon.ActiveRun()
	d, _ := e.Catalog.Dungeon(run.DungeonID)

	var oc Outcome
	e.finish(&w, &run, d, StatusVictory, t0+1000, &oc)
	assert.Equal(t, StatusStopped, run.Status)
	assert.Zero(t, run.Clears)
	assert.Empty(t, oc.Finished)
	assert.Nil(t, w.Dungeon.LatestReplay)
}

func TestSplitGold(t *testing.T) {
	assert.Equal(t, map[string]int{"a": 2, "b": 2, "c": 2, "d": 1}, SplitGold(7, []string{"a", "b", "c", "d"}))
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, SplitGold(2, []string{"a", "b", "c"}))
	assert.Empty(t, SplitGold(0, []string{"a"}))
	assert.Empty(t, SplitGold(5, nil))
}

func TestMachine(t *testing.T) {
	assert.True(t, Can(StatusIdle, evStart))
	assert.True(t, Can(StatusVictory, evRestart))
	assert.True(t, Can(StatusVictory, evStop))
	assert.False(t, Can(StatusDefeat, evRestart))
	assert.False(t, Can(StatusStopped, evStop))

	r := Run{ID: "x", Status: StatusDefeat}
	assert.Error(t, transition(&r, evWin))
	assert.Equal(t, StatusDefeat, r.Status)
}

func TestNewRunID(t *testing.T) {
	a := newRunID(1, t0)
	assert.Equal(t, a, newRunID(1, t0))
	assert.NotEqual(t, a, newRunID(2, t0))
	assert.Len(t, a, 26)
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}
