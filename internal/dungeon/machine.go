package dungeon

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

const (
	evStart   = "start"
	evWin     = "win"
	evLose    = "lose"
	evStop    = "stop"
	evRestart = "restart"
)

func newMachine(initial Status) *fsm.FSM {
	return fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: evStart, Src: []string{string(StatusIdle)}, Dst: string(StatusRunning)},
			{Name: evWin, Src: []string{string(StatusRunning)}, Dst: string(StatusVictory)},
			{Name: evLose, Src: []string{string(StatusRunning)}, Dst: string(StatusDefeat)},
			{Name: evStop, Src: []string{string(StatusRunning), string(StatusVictory)}, Dst: string(StatusStopped)},
			{Name: evRestart, Src: []string{string(StatusVictory)}, Dst: string(StatusRunning)},
		},
		fsm.Callbacks{},
	)
}

// transition moves r through event, rejecting moves the run lifecycle
// does not allow.
func transition(r *Run, event string) error {
	from := r.Status
	if from == "" {
		from = StatusIdle
	}
	m := newMachine(from)
	if err := m.Event(context.Background(), event); err != nil {
		return fmt.Errorf("run %s: %s from %s: %w", r.ID, event, from, err)
	}
	r.Status = Status(m.Current())
	return nil
}

// Can reports whether event is allowed from status.
func Can(status Status, event string) bool {
	return newMachine(status).Can(event)
}
