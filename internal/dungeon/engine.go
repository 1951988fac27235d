package dungeon

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/inventory"
	"idlerealm/internal/logger"
	"idlerealm/internal/player"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type Engine struct {
	Catalog *catalog.Registry
	Balance config.Balance
	Log     logrus.FieldLogger
}

func (e Engine) log() logrus.FieldLogger {
	return logger.Component(e.Log, "dungeon")
}

// Outcome collects what a tick produced for the orchestrator.
type Outcome struct {
	Rounds       int
	GoldEarned   int
	GoldByPlayer map[string]int
	XPByPlayer   map[string]int
	ItemDeltas   inventory.Delta
	Clears       []catalog.DungeonID
	Finished     []Replay
}

func newOutcome() Outcome {
	return Outcome{
		GoldByPlayer: map[string]int{},
		XPByPlayer:   map[string]int{},
		ItemDeltas:   inventory.Delta{},
	}
}

// Start validates the party, consumes the reagent and opens a new run.
// On error the returned World is w unchanged.
func (e Engine) Start(w World, id catalog.DungeonID, party []string, now int64) (World, error) {
	d, ok := e.Catalog.Dungeon(id)
	if !ok {
		return w, fmt.Errorf("%w: %s", ErrUnknownDungeon, id)
	}
	if len(party) != e.Balance.PartySize {
		return w, fmt.Errorf("%w: need %d, got %d", ErrPartySize, e.Balance.PartySize, len(party))
	}
	if w.Dungeon.ActiveRunID != "" {
		if r, ok := w.Dungeon.ActiveRun(); ok && r.Active() {
			return w, ErrRunActive
		}
	}
	locked := w.Dungeon.Locked()
	seen := map[string]bool{}
	for _, pid := range party {
		if seen[pid] {
			return w, fmt.Errorf("%w: %s", ErrDuplicateMember, pid)
		}
		seen[pid] = true
		if _, ok := w.Players[pid]; !ok {
			return w, fmt.Errorf("%w: %s", ErrUnknownPlayer, pid)
		}
		if locked[pid] {
			return w, fmt.Errorf("%w: %s", ErrPlayerLocked, pid)
		}
	}
	if !w.Inventory.Has(d.Reagent.Item, d.Reagent.Amount) {
		return w, fmt.Errorf("%w: %s needs %d %s", ErrInsufficientReagent, id, d.Reagent.Amount, d.Reagent.Item)
	}

	out := w.Clone()
	out.Inventory.Spend(d.Reagent.Item, d.Reagent.Amount)

	out.Dungeon.Seq++
	run := Run{
		ID:             newRunID(out.Dungeon.Seq, now),
		DungeonID:      d.ID,
		FloorCount:     d.FloorCount,
		Status:         StatusIdle,
		StartInventory: w.Inventory.Clone(),
		StartedAt:      now,
	}
	for _, pid := range party {
		p := out.Players[pid]
		p.HP = p.HPMax
		out.Players[pid] = p
		run.Party = append(run.Party, e.member(p))
	}
	if err := transition(&run, evStart); err != nil {
		return w, err
	}
	run.record(e.Balance.ReplayMaxEvents, Event{At: now, Kind: EventRunStart, Target: string(d.ID)})
	e.spawnFloor(&run, d, 1, now)

	// Finished runs are only kept while they are the latest one.
	for rid, r := range out.Dungeon.Runs {
		if !r.Active() {
			delete(out.Dungeon.Runs, rid)
		}
	}
	if out.Dungeon.Runs == nil {
		out.Dungeon.Runs = map[string]Run{}
	}
	out.Dungeon.Runs[run.ID] = run
	out.Dungeon.ActiveRunID = run.ID

	e.log().WithFields(logrus.Fields{"run": run.ID, "dungeon": d.ID, "party": party}).Debug("dungeon run started")
	return out, nil
}

// Stop ends the active run as stopped, restoring the party and unlocking it.
func (e Engine) Stop(w World, now int64) (World, error) {
	r, ok := w.Dungeon.ActiveRun()
	if !ok || !r.Active() {
		return w, ErrNoActiveRun
	}
	out := w.Clone()
	run := out.Dungeon.Runs[r.ID]
	if err := transition(&run, evStop); err != nil {
		return w, err
	}
	run.RestartAt = nil
	run.EndedAt = now
	run.record(e.Balance.ReplayMaxEvents, Event{At: now, Kind: EventStopped})
	e.restoreParty(&out, &run)

	rp := buildReplay(run, e.Balance.ReplayMaxEvents, out.Inventory)
	out.Dungeon.LatestReplay = &rp
	out.Dungeon.Runs[run.ID] = run
	out.Dungeon.ActiveRunID = ""

	e.log().WithField("run", run.ID).Debug("dungeon run stopped")
	return out, nil
}

// Tick advances the active run through the simulated interval
// (now-deltaMs, now]. Victories inside the interval restart once their
// delay has passed, so one long tick matches many short ones.
func (e Engine) Tick(w World, deltaMs, now int64) (World, Outcome) {
	oc := newOutcome()
	if deltaMs < 0 {
		deltaMs = 0
	}
	r, ok := w.Dungeon.ActiveRun()
	if !ok || !r.Active() {
		return w, oc
	}

	out := w.Clone()
	run := out.Dungeon.Runs[r.ID]
	d, ok := e.Catalog.Dungeon(run.DungeonID)
	if !ok {
		return w, oc
	}
	// cursor is the start of the pending round, so unplayed time carried in
	// RoundProgressMs (a partial round or a capped backlog) is replayed first.
	cursor := now - deltaMs - max(0, run.RoundProgressMs)
	run.RoundProgressMs = 0
	partyIDs := run.PartyIDs()

	for {
		if run.Status == StatusVictory {
			if run.RestartAt == nil || *run.RestartAt > now {
				break
			}
			if *run.RestartAt > cursor {
				cursor = *run.RestartAt
			}
			if !e.restart(&out, &run, d, cursor) {
				break
			}
			continue
		}
		if run.Status != StatusRunning {
			break
		}
		if cursor+e.Balance.RoundMs > now {
			run.RoundProgressMs = now - cursor
			break
		}
		if oc.Rounds >= e.Balance.MaxRoundsPerTick {
			run.RoundProgressMs = now - cursor
			e.log().WithFields(logrus.Fields{"run": run.ID, "backlog_ms": run.RoundProgressMs}).Debug("round cap reached, carrying backlog")
			break
		}
		cursor += e.Balance.RoundMs
		oc.Rounds++
		e.round(&out, &run, d, cursor, &oc)
	}
	oc.GoldByPlayer = SplitGold(oc.GoldEarned, partyIDs)
	for _, m := range run.Party {
		if p, ok := out.Players[m.PlayerID]; ok {
			p.HP = m.HP
			out.Players[m.PlayerID] = p
		}
	}
	out.Dungeon.Runs[run.ID] = run
	return out, oc
}

func (e Engine) round(w *World, run *Run, d catalog.Dungeon, at int64, oc *Outcome) {
	limit := e.Balance.ReplayMaxEvents
	run.RoundsElapsed++
	for i := range run.Party {
		run.Party[i].HealCooldownMs = max(0, run.Party[i].HealCooldownMs-e.Balance.RoundMs)
	}

	for i := range run.Party {
		m := run.Party[i]
		if !m.Alive() {
			continue
		}
		t := run.target()
		if t < 0 {
			break
		}
		run.TargetEnemyID = run.Enemies[t].ID
		dmg := min(m.Damage, run.Enemies[t].HP)
		run.Enemies[t].HP -= dmg
		run.record(limit, Event{At: at, Kind: EventAttack, Source: m.PlayerID, Target: run.Enemies[t].ID, Amount: dmg})
		if run.Enemies[t].Alive() {
			continue
		}
		run.Kills++
		earn(w, run, oc, d.KillGold)
		for _, pm := range run.Party {
			oc.XPByPlayer[pm.PlayerID] += d.KillXP
		}
		run.record(limit, Event{At: at, Kind: EventEnemyDown, Target: run.Enemies[t].ID, Amount: d.KillGold})
	}

	if run.target() < 0 {
		if run.Floor >= run.FloorCount {
			e.finish(w, run, d, StatusVictory, at, oc)
			return
		}
		e.spawnFloor(run, d, run.Floor+1, at)
		return
	}
	run.TargetEnemyID = run.Enemies[run.target()].ID

	for _, en := range run.Enemies {
		if !en.Alive() {
			continue
		}
		if f := run.frontline(); f >= 0 {
			e.hit(run, f, max(1, en.Damage-run.Party[f].Defense), EventEnemyHit, en.ID, at)
		}
		if !en.Boss || en.MechanicDamage <= 0 {
			continue
		}
		switch en.Mechanic {
		case catalog.MechanicPoison:
			e.hitAll(run, en.MechanicDamage, EventPoison, en.ID, at)
		case catalog.MechanicBurst:
			if e.Balance.BurstEvery > 0 && run.RoundsElapsed%e.Balance.BurstEvery == 0 {
				e.hitAll(run, en.MechanicDamage, EventBurst, en.ID, at)
			}
		}
	}

	e.heal(w, run, at, oc)

	if run.livingMembers() == 0 {
		e.finish(w, run, d, StatusDefeat, at, oc)
	}
}

func earn(w *World, run *Run, oc *Outcome, gold int) {
	if gold <= 0 {
		return
	}
	run.GoldEarned += gold
	oc.GoldEarned += gold
	w.Inventory.Add(catalog.Gold, gold)
	oc.ItemDeltas.Add(catalog.Gold, gold)
}

func (e Engine) hit(run *Run, i, dmg int, kind EventKind, source string, at int64) {
	m := &run.Party[i]
	dmg = min(dmg, m.HP)
	m.HP -= dmg
	run.record(e.Balance.ReplayMaxEvents, Event{At: at, Kind: kind, Source: source, Target: m.PlayerID, Amount: dmg})
	if !m.Alive() {
		run.record(e.Balance.ReplayMaxEvents, Event{At: at, Kind: EventMemberDown, Target: m.PlayerID})
	}
}

func (e Engine) hitAll(run *Run, dmg int, kind EventKind, source string, at int64) {
	for i := range run.Party {
		if run.Party[i].Alive() {
			e.hit(run, i, dmg, kind, source, at)
		}
	}
}

// heal lets each living member at or below the threshold with no cooldown
// drink the strongest heal item the shared inventory holds.
func (e Engine) heal(w *World, run *Run, at int64, oc *Outcome) {
	heals := e.Catalog.HealItems()
	for i := range run.Party {
		m := &run.Party[i]
		if !m.Alive() || m.HealCooldownMs > 0 {
			continue
		}
		if m.HP*100 > m.HPMax*e.Balance.HealThresholdPct {
			continue
		}
		for _, it := range heals {
			if !w.Inventory.Spend(it.ID, 1) {
				continue
			}
			oc.ItemDeltas.Add(it.ID, -1)
			gained := min(it.Heal, m.HPMax-m.HP)
			m.HP += gained
			m.HealCooldownMs = e.Balance.HealCooldownMs
			run.record(e.Balance.ReplayMaxEvents, Event{At: at, Kind: EventHeal, Target: m.PlayerID, Amount: gained, Item: it.ID})
			break
		}
	}
}

func (e Engine) finish(w *World, run *Run, d catalog.Dungeon, status Status, at int64, oc *Outcome) {
	limit := e.Balance.ReplayMaxEvents
	ev := evWin
	if status == StatusDefeat {
		ev = evLose
	}
	if err := transition(run, ev); err != nil {
		e.log().WithError(err).WithField("run", run.ID).Warn("dungeon run not finished")
		return
	}
	run.EndedAt = at
	run.TargetEnemyID = ""
	switch status {
	case StatusVictory:
		run.Clears++
		earn(w, run, oc, d.VictoryGold)
		for _, l := range d.Loot {
			w.Inventory.Add(l.Item, l.Amount)
			oc.ItemDeltas.Add(l.Item, l.Amount)
		}
		restartAt := at + e.Balance.RestartDelayMs
		run.RestartAt = &restartAt
		oc.Clears = append(oc.Clears, d.ID)
		run.record(limit, Event{At: at, Kind: EventVictory, Amount: d.VictoryGold})
	case StatusDefeat:
		run.RestartAt = nil
		w.Dungeon.ActiveRunID = ""
		run.record(limit, Event{At: at, Kind: EventDefeat})
	}
	e.restoreParty(w, run)

	rp := buildReplay(*run, limit, w.Inventory)
	w.Dungeon.LatestReplay = &rp
	oc.Finished = append(oc.Finished, rp)
	e.log().WithFields(logrus.Fields{"run": run.ID, "status": status, "floor": run.Floor}).Debug("dungeon run finished")
}

// restart re-enters a won run at its restart time. Without the reagent the
// run ends for good and the party is released.
func (e Engine) restart(w *World, run *Run, d catalog.Dungeon, at int64) bool {
	if !w.Inventory.Spend(d.Reagent.Item, d.Reagent.Amount) {
		run.RestartAt = nil
		w.Dungeon.ActiveRunID = ""
		return false
	}
	if err := transition(run, evRestart); err != nil {
		return false
	}
	start := w.Inventory.Clone()
	start.Add(d.Reagent.Item, d.Reagent.Amount)

	delete(w.Dungeon.Runs, run.ID)
	w.Dungeon.Seq++
	run.ID = newRunID(w.Dungeon.Seq, at)
	w.Dungeon.ActiveRunID = run.ID
	run.RestartAt = nil
	run.Events = nil
	run.TruncatedEvents = 0
	run.StartInventory = start
	run.StartedAt = at
	run.EndedAt = 0
	run.RoundProgressMs = 0
	run.RoundsElapsed = 0
	run.GoldEarned = 0
	run.Kills = 0
	for i := range run.Party {
		run.Party[i].HP = run.Party[i].HPMax
		run.Party[i].HealCooldownMs = 0
	}
	run.record(e.Balance.ReplayMaxEvents, Event{At: at, Kind: EventRestart, Target: string(d.ID)})
	e.spawnFloor(run, d, 1, at)
	e.log().WithField("run", run.ID).Debug("dungeon run restarted")
	return true
}

func (e Engine) restoreParty(w *World, run *Run) {
	for i := range run.Party {
		run.Party[i].HP = run.Party[i].HPMax
		run.Party[i].HealCooldownMs = 0
		if p, ok := w.Players[run.Party[i].PlayerID]; ok {
			p.HP = p.HPMax
			w.Players[p.ID] = p
		}
	}
}

// spawnFloor fills the enemy list for floor f. The last floor holds only the
// boss; earlier floors hold the minion set scaled up by depth.
func (e Engine) spawnFloor(run *Run, d catalog.Dungeon, f int, at int64) {
	run.Floor = f
	run.Enemies = run.Enemies[:0:0]
	if f >= d.FloorCount {
		run.Enemies = append(run.Enemies, enemyFrom(d.Boss, fmt.Sprintf("%s-f%d", d.Boss.ID, f), 100, 0, true))
	} else {
		scale := 100 + (f-1)*25
		for i, m := range d.Minions {
			run.Enemies = append(run.Enemies, enemyFrom(m, fmt.Sprintf("%s-f%d-%d", m.ID, f, i+1), scale, f-1, false))
		}
	}
	run.TargetEnemyID = ""
	if t := run.target(); t >= 0 {
		run.TargetEnemyID = run.Enemies[t].ID
	}
	run.record(e.Balance.ReplayMaxEvents, Event{At: at, Kind: EventFloorStart, Amount: len(run.Enemies)})
}

func enemyFrom(def catalog.Enemy, id string, hpPct, bonusDamage int, boss bool) Enemy {
	hp := max(1, player.Percent(def.HP, hpPct))
	return Enemy{
		ID:             id,
		Name:           def.Name,
		HP:             hp,
		HPMax:          hp,
		Damage:         def.Damage + bonusDamage,
		Mechanic:       def.Mechanic,
		MechanicDamage: def.MechanicDamage,
		Boss:           boss,
	}
}

func (e Engine) member(p player.Player) Member {
	stats := p.Effective(e.Catalog)
	return Member{
		PlayerID: p.ID,
		HP:       p.HPMax,
		HPMax:    p.HPMax,
		Damage:   e.Balance.BaseMemberDamage + p.Level(catalog.CombatSkill) + max(stats.Attack, 0),
		Defense:  max(stats.Defense, 0),
	}
}

// newRunID derives a ULID from the run sequence so replays of the same
// state produce the same ids.
func newRunID(seq uint64, now int64) string {
	var entropy [10]byte
	binary.BigEndian.PutUint64(entropy[2:], seq)
	ms := uint64(0)
	if now > 0 {
		ms = uint64(now)
	}
	id, err := ulid.New(ms, bytes.NewReader(entropy[:]))
	if err != nil {
		return fmt.Sprintf("run-%d", seq)
	}
	return id.String()
}
