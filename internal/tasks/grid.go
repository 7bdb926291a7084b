package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/multiverse/internal/models"
	"golang.org/x/sync/errgroup"
)

// Grid runs one [SlotController] per cell, each in its own goroutine.
//
// Reload is the only way to swap jobs under a running grid: it stops every slot and waits
// for them to exit before the swap runs, so no fetch from the previous job can land in
// the cache afterwards.
type Grid struct {
	deps  Deps
	slots []*SlotController

	runMu  sync.Mutex // serializes Start, Stop and Reload
	parent context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	stateMu sync.RWMutex
	states  []models.SlotState
	updates chan models.SlotState
}

// NewGrid creates a grid of size slots numbered 1..size.
func NewGrid(size int, deps Deps) *Grid {
	g := &Grid{
		deps:    deps,
		states:  make([]models.SlotState, size),
		updates: make(chan models.SlotState, size*8),
	}
	for i := range size {
		n := i + 1
		g.states[i] = models.SlotState{Number: n, Phase: models.PhaseWaitingForJob}
		g.slots = append(g.slots, NewSlotController(n, deps, g.record))
	}
	return g
}

// Size returns the number of slots.
func (g *Grid) Size() int { return len(g.slots) }

func (g *Grid) record(st models.SlotState) {
	g.stateMu.Lock()
	g.states[st.Number-1] = st
	g.stateMu.Unlock()

	select {
	case g.updates <- st:
	default:
	}
}

// Updates delivers slot transitions. Updates are dropped when the channel is full;
// [Grid.Snapshot] is always current.
func (g *Grid) Updates() <-chan models.SlotState { return g.updates }

// Snapshot returns the latest state of every slot, ordered by slot number.
func (g *Grid) Snapshot() []models.SlotState {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	out := make([]models.SlotState, len(g.states))
	copy(out, g.states)
	return out
}

// Start launches every slot. Slots stop when ctx is done.
func (g *Grid) Start(ctx context.Context) {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	g.parent = ctx
	g.startLocked()
}

func (g *Grid) startLocked() {
	if g.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(g.parent)
	group := &errgroup.Group{}
	for _, slot := range g.slots {
		group.Go(func() error {
			slot.Run(ctx)
			return nil
		})
	}
	g.cancel, g.group = cancel, group
	g.deps.logger().Debug("grid started", "slots", len(g.slots))
}

func (g *Grid) stopLocked() {
	if g.cancel == nil {
		return
	}
	g.cancel()
	g.group.Wait()
	g.cancel, g.group = nil, nil
}

// Wait blocks until every slot of the current run reaches a terminal state.
func (g *Grid) Wait() error {
	g.runMu.Lock()
	group := g.group
	g.runMu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Stop cancels every slot and waits for them to exit.
func (g *Grid) Stop() {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	g.stopLocked()
}

// Reload stops all slots, runs swap, and restarts the slots against whatever job swap
// left in the store. The slots restart even when swap fails; its error is returned.
func (g *Grid) Reload(ctx context.Context, swap func(ctx context.Context) error) error {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	running := g.cancel != nil
	g.stopLocked()

	err := swap(ctx)
	if running {
		g.startLocked()
	}
	return err
}
