// Package runner hosts a live game: it owns the State, turns wall-clock time
// into ticks and serializes commands between them.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"idlerealm/internal/dungeon"
	"idlerealm/internal/game"
	"idlerealm/internal/logger"
	"idlerealm/internal/save"
	"idlerealm/internal/telemetry"

	"github.com/sirupsen/logrus"
)

// Saver persists a snapshot. save.Store satisfies it.
type Saver interface {
	Save(ctx context.Context, slot string, st game.State) error
}

type Options struct {
	Engine        game.Engine
	State         game.State
	Clock         game.Clock
	Saver         Saver
	Slot          string
	Events        telemetry.Repository
	MaxCatchUp    time.Duration
	AutosaveEvery int
	// StreamCapacity is the per-subscriber buffer. Slow subscribers miss
	// summaries rather than stall the loop.
	StreamCapacity int
	Log            logrus.FieldLogger
}

// Runner is the single writer of a State.
type Runner struct {
	mu    sync.Mutex
	eng   game.Engine
	state game.State
	ticks int

	clock         game.Clock
	saver         Saver
	slot          string
	events        telemetry.Repository
	maxCatchUp    time.Duration
	autosaveEvery int
	log           logrus.FieldLogger

	subMu   sync.RWMutex
	subs    map[int]chan game.TickSummary
	nextSub int
	subCap  int
}

func New(opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = game.RealClock{}
	}
	if opts.Events == nil {
		opts.Events = telemetry.NewMemoryRepository(0)
	}
	if opts.StreamCapacity <= 0 {
		opts.StreamCapacity = 16
	}
	if opts.Slot == "" {
		opts.Slot = "default"
	}
	st := opts.State
	if st.Players == nil {
		st = game.NewState(opts.Engine.Catalog, opts.Engine.Balance)
	}
	return &Runner{
		eng:           opts.Engine,
		state:         st.Clone(),
		clock:         opts.Clock,
		saver:         opts.Saver,
		slot:          opts.Slot,
		events:        opts.Events,
		maxCatchUp:    opts.MaxCatchUp,
		autosaveEvery: opts.AutosaveEvery,
		log:           logger.Component(opts.Log, "runner"),
		subs:          map[int]chan game.TickSummary{},
		subCap:        opts.StreamCapacity,
	}
}

// State returns a copy of the current state.
func (r *Runner) State() game.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

func (r *Runner) Engine() game.Engine { return r.eng }

func (r *Runner) Events() telemetry.Repository { return r.events }

// Tick advances the game to now. The first tick of a fresh save only sets
// the baseline. Elapsed time beyond MaxCatchUp is dropped, and a clock
// that moved backwards yields a zero-length tick.
func (r *Runner) Tick(now time.Time) game.TickSummary {
	r.mu.Lock()
	nowMs := now.UnixMilli()
	var delta int64
	if last := r.state.LastTick; last != nil {
		if nowMs < *last {
			nowMs = *last
		}
		delta = nowMs - *last
	}
	if capMs := r.maxCatchUp.Milliseconds(); capMs > 0 && delta > capMs {
		r.log.WithFields(logrus.Fields{"elapsed_ms": delta, "cap_ms": capMs}).Info("catch-up capped")
		delta = capMs
	}
	var sum game.TickSummary
	r.state, sum = r.eng.ApplyTick(r.state, delta, nowMs)
	r.ticks++
	autosave := r.autosaveEvery > 0 && r.ticks%r.autosaveEvery == 0
	var snapshot game.State
	if autosave {
		snapshot = r.state.Clone()
	}
	r.mu.Unlock()

	r.record(sum)
	r.publish(sum)
	if autosave {
		if err := r.persist(context.Background(), snapshot); err != nil {
			r.log.WithError(err).Warn("autosave failed")
		}
	}
	return sum
}

// Do applies a command between ticks and returns the resulting state.
func (r *Runner) Do(cmd game.Command) (game.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nowMs := game.NowMs(r.clock)
	active := r.state.Dungeon.ActiveRunID
	next, err := r.eng.Dispatch(r.state, cmd, nowMs)
	if err != nil {
		return r.state.Clone(), err
	}
	r.state = next
	if cmd.Type == game.CmdDungeonStop && active != "" {
		if rp := next.Dungeon.LatestReplay; rp != nil && rp.ID == active {
			r.recordReplay(time.UnixMilli(nowMs), *rp)
		}
	}
	return r.state.Clone(), nil
}

// Save writes the current state to the configured slot.
func (r *Runner) Save(ctx context.Context) error {
	return r.persist(ctx, r.State())
}

func (r *Runner) persist(ctx context.Context, st game.State) error {
	if r.saver == nil {
		return nil
	}
	return r.saver.Save(ctx, r.slot, st)
}

// Run ticks every interval until ctx is done, then saves once more.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("tick interval must be positive")
	}
	r.Tick(r.clock.Now())

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.persist(context.WithoutCancel(ctx), r.State()); err != nil {
				r.log.WithError(err).Warn("final save failed")
			}
			return nil
		case <-t.C:
			r.Tick(r.clock.Now())
		}
	}
}

// Subscribe registers for tick summaries. The returned func unsubscribes
// and closes the channel.
func (r *Runner) Subscribe() (<-chan game.TickSummary, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan game.TickSummary, r.subCap)
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			defer r.subMu.Unlock()
			delete(r.subs, id)
			close(ch)
		})
	}
}

func (r *Runner) publish(sum game.TickSummary) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- sum:
		default:
		}
	}
}

func (r *Runner) record(sum game.TickSummary) {
	at := time.UnixMilli(sum.Timestamp)
	r.emit(at, telemetry.EventTickApplied, telemetry.EventMetadata{
		"delta_ms": sum.DeltaMs,
		"xp":       sum.XP,
		"gold":     sum.Gold,
		"rounds":   sum.DungeonRounds,
	})
	for _, ps := range sum.Players {
		if ps.Cleared {
			r.emit(at, telemetry.EventActionCleared, telemetry.EventMetadata{
				"player": ps.PlayerID,
				"skill":  string(ps.SkillID),
			})
		}
	}
	for _, q := range sum.QuestsCompleted {
		r.emit(at, telemetry.EventQuestCompleted, telemetry.EventMetadata{"quest": string(q)})
	}
	for _, rp := range sum.DungeonFinished {
		r.recordReplay(at, rp)
	}
}

func (r *Runner) recordReplay(at time.Time, rp dungeon.Replay) {
	var t telemetry.EventType
	switch rp.Status {
	case dungeon.StatusVictory:
		t = telemetry.EventDungeonVictory
	case dungeon.StatusDefeat:
		t = telemetry.EventDungeonDefeat
	case dungeon.StatusStopped:
		t = telemetry.EventDungeonStopped
	default:
		return
	}
	r.emit(at, t, telemetry.EventMetadata{
		"dungeon": string(rp.DungeonID),
		"run":     rp.ID,
		"floor":   rp.Floor,
		"gold":    rp.GoldEarned,
		"kills":   rp.Kills,
	})
}

func (r *Runner) emit(at time.Time, t telemetry.EventType, md telemetry.EventMetadata) {
	if err := r.events.RecordEvent(at, t, md); err != nil {
		r.log.WithError(err).WithField("event", t).Warn("record telemetry event")
	}
}

var _ Saver = save.Store{}
