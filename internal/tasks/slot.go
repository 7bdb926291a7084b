package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
)

// SlotController drives one grid cell from "no job yet" to an image.
//
// The lifecycle is WaitingForJob, ResolvingSlot, CacheCheck, then Ready directly on a
// cache hit or through Polling otherwise. Any step may end in Failed, and cancelling ctx
// ends the run in Cancelled without further network calls or cache writes.
type SlotController struct {
	number   int
	deps     Deps
	onUpdate func(models.SlotState)

	mu    sync.RWMutex
	state models.SlotState
}

// NewSlotController creates the controller for 1-based slot number. onUpdate, when set,
// receives every state transition.
func NewSlotController(number int, deps Deps, onUpdate func(models.SlotState)) *SlotController {
	return &SlotController{
		number:   number,
		deps:     deps,
		onUpdate: onUpdate,
		state:    models.SlotState{Number: number, Phase: models.PhaseWaitingForJob},
	}
}

// Number returns the 1-based slot number.
func (s *SlotController) Number() int { return s.number }

// State returns the latest snapshot.
func (s *SlotController) State() models.SlotState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SlotController) update(fn func(*models.SlotState)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.state
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(st)
	}
}

func (s *SlotController) transition(phase models.SlotPhase) {
	s.update(func(st *models.SlotState) { st.Phase = phase })
}

func (s *SlotController) fail(err error) models.SlotState {
	if errors.Is(err, shared.ErrCancelled) {
		return s.cancel()
	}
	s.deps.logger().Warn("slot failed", "slot", s.number, "err", err)
	s.update(func(st *models.SlotState) {
		st.Phase = models.PhaseFailed
		st.Err = err
	})
	return s.State()
}

func (s *SlotController) cancel() models.SlotState {
	s.update(func(st *models.SlotState) {
		st.Phase = models.PhaseCancelled
		st.Err = nil
	})
	return s.State()
}

// Run executes the lifecycle once and returns the terminal state.
func (s *SlotController) Run(ctx context.Context) models.SlotState {
	logger := shared.WithLogger(s.deps.logger(), "slot", s.number)
	s.update(func(st *models.SlotState) {
		*st = models.SlotState{Number: s.number, Phase: models.PhaseWaitingForJob}
	})

	job, err := s.awaitJob(ctx)
	if err != nil {
		return s.fail(err)
	}

	if ctx.Err() != nil {
		return s.cancel()
	}
	s.transition(models.PhaseResolvingSlot)
	result, ok := job.Slot(s.number)
	if !ok {
		return s.fail(fmt.Errorf("%w: job %s has no images", shared.ErrEmptyJob, job.RequestID))
	}
	s.update(func(st *models.SlotState) { st.Result = result })

	if ctx.Err() != nil {
		return s.cancel()
	}
	s.transition(models.PhaseCacheCheck)
	if data, ok := s.deps.Cache.Get(result.ResultImageID); ok {
		logger.Debug("cache hit", "id", result.ResultImageID)
		s.update(func(st *models.SlotState) {
			st.Phase = models.PhaseReady
			st.Bytes = data
			st.FromCache = true
		})
		return s.State()
	}

	if ctx.Err() != nil {
		return s.cancel()
	}
	s.transition(models.PhasePolling)
	asset, err := s.deps.Poller.Poll(ctx, result.ResultImageID, s.deps.UserID, func(attempt int) {
		s.update(func(st *models.SlotState) { st.Attempts = attempt })
	})
	if err != nil {
		return s.fail(err)
	}
	if ctx.Err() != nil {
		return s.cancel()
	}

	s.deps.Cache.Put(result.ResultImageID, asset.Data)
	logger.Info("slot ready", "id", result.ResultImageID, "bytes", len(asset.Data), "engine", asset.Engine)
	s.update(func(st *models.SlotState) {
		st.Phase = models.PhaseReady
		st.Bytes = asset.Data
		st.Engine = asset.Engine
	})
	return s.State()
}

// awaitJob returns the current job, waiting on the job signal while the store is empty.
// The signal channel is captured before each store read so a publish in between is seen.
func (s *SlotController) awaitJob(ctx context.Context) (*models.GenerationJob, error) {
	var deadline time.Time
	if s.deps.JobWait > 0 {
		deadline = time.Now().Add(s.deps.JobWait)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		var ready <-chan struct{}
		if s.deps.Jobs != nil {
			ready = s.deps.Jobs.C()
		}

		job, err := s.deps.Store.Current(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, cancelled(ctxErr)
			}
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		if ready == nil {
			return nil, shared.ErrNoJob
		}

		var remaining time.Duration
		if !deadline.IsZero() {
			if remaining = time.Until(deadline); remaining <= 0 {
				return nil, shared.ErrNoJob
			}
		}
		if err := waitOn(ctx, ready, remaining); err != nil {
			if errors.Is(err, shared.ErrTimeout) {
				return nil, fmt.Errorf("%w: waited %s", shared.ErrNoJob, s.deps.JobWait)
			}
			return nil, err
		}
	}
}
