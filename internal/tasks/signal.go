package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/multiverse/internal/shared"
)

// JobSignal wakes every waiter when a new job has been saved.
//
// Each Publish closes the current channel and installs a fresh one, so a waiter that
// captured the channel before checking the store cannot miss a publish.
type JobSignal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewJobSignal returns an unpublished signal.
func NewJobSignal() *JobSignal {
	return &JobSignal{ch: make(chan struct{})}
}

// C returns the channel closed by the next Publish.
func (s *JobSignal) C() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Publish wakes all current waiters.
func (s *JobSignal) Publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}

// Wait blocks until the next Publish, ctx is done, or timeout elapses.
// A timeout <= 0 waits without a deadline.
func (s *JobSignal) Wait(ctx context.Context, timeout time.Duration) error {
	return waitOn(ctx, s.C(), timeout)
}

func waitOn(ctx context.Context, ch <-chan struct{}, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-expired:
		return shared.ErrTimeout
	}
}
