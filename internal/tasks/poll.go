package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
)

// PollConfig bounds how long a result image is polled for.
type PollConfig struct {
	MaxAttempts int           // fetch calls, including the first
	Delay       time.Duration // wait between a not-ready answer and the next call
	Multiplier  float64       // applied to Delay after every wait; <= 1 keeps it fixed
	MaxDelay    time.Duration // cap for the grown delay; 0 means uncapped
}

// DefaultPollConfig allows 100 attempts two seconds apart.
func DefaultPollConfig() PollConfig {
	return PollConfig{MaxAttempts: 100, Delay: 2 * time.Second, Multiplier: 1}
}

// PollConfigFrom maps the [polling] config section.
func PollConfigFrom(conf shared.PollingConfig) PollConfig {
	return PollConfig{
		MaxAttempts: conf.MaxAttempts,
		Delay:       conf.Delay.Duration,
		Multiplier:  conf.Multiplier,
		MaxDelay:    conf.MaxDelay.Duration,
	}
}

func (c PollConfig) next(d time.Duration) time.Duration {
	if c.Multiplier > 1 {
		d = time.Duration(float64(d) * c.Multiplier)
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Poller fetches result images, retrying while the backend reports them as not ready.
//
// Only not-ready answers are retried. Every other error is returned as-is on the attempt
// that produced it.
type Poller struct {
	fetcher AssetFetcher
	conf    PollConfig
	logger  *log.Logger
}

// NewPoller creates a [Poller]. A MaxAttempts below 1 is treated as 1.
func NewPoller(fetcher AssetFetcher, conf PollConfig, logger *log.Logger) *Poller {
	if conf.MaxAttempts < 1 {
		conf.MaxAttempts = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{fetcher: fetcher, conf: conf, logger: logger}
}

// Config returns the poll budget.
func (p *Poller) Config() PollConfig { return p.conf }

// FetchWithRetry polls until the asset is ready, the budget is spent, or ctx is done.
func (p *Poller) FetchWithRetry(ctx context.Context, resultImageID, userID string) (*services.Asset, error) {
	return p.Poll(ctx, resultImageID, userID, nil)
}

// Poll is [Poller.FetchWithRetry] with a hook invoked before every fetch call with the
// 1-based attempt number.
//
// Cancellation is checked before every call and during every wait and surfaces as
// [shared.ErrCancelled]. Running out of attempts yields [shared.ErrRetryBudgetExceeded].
func (p *Poller) Poll(ctx context.Context, resultImageID, userID string, onAttempt func(attempt int)) (*services.Asset, error) {
	delay := p.conf.Delay

	for attempt := 1; attempt <= p.conf.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		if onAttempt != nil {
			onAttempt(attempt)
		}

		asset, err := p.fetcher.FetchResultAsset(ctx, resultImageID, userID)
		if err == nil {
			return asset, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}
		if !services.IsNotReady(err) {
			return nil, err
		}

		p.logger.Debug("result not ready", "id", resultImageID, "attempt", attempt, "max", p.conf.MaxAttempts)
		if attempt == p.conf.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = p.conf.next(delay)
	}

	return nil, fmt.Errorf("%w: %s not ready after %d attempts",
		shared.ErrRetryBudgetExceeded, resultImageID, p.conf.MaxAttempts)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %v", shared.ErrCancelled, err)
}
