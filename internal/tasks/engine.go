package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/multiverse/internal/imaging"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
)

// DefaultRerollCost is the credit price of a re-roll.
const DefaultRerollCost = 10

// DiscoverRequest describes a new generation.
type DiscoverRequest struct {
	Image       []byte // optional; preprocessed before upload
	Description string
	Album       models.AlbumMode
	NumThemes   int
	Upload      bool // upload the image first, then roll against its id
}

// RerollResult is a re-roll's new job and the balance left after paying for it.
type RerollResult struct {
	Job     *models.GenerationJob
	Credits int
}

// GenerationEngine runs discover and re-roll against the backend and keeps the response
// store, image cache and an optional running [Grid] consistent with the current job.
type GenerationEngine struct {
	client     Generator
	deps       Deps
	grid       *Grid
	rerollCost int
	now        func() time.Time
}

// NewGenerationEngine creates an engine. A rerollCost <= 0 uses [DefaultRerollCost].
func NewGenerationEngine(client Generator, deps Deps, rerollCost int) *GenerationEngine {
	if rerollCost <= 0 {
		rerollCost = DefaultRerollCost
	}
	if deps.Jobs == nil {
		deps.Jobs = NewJobSignal()
	}
	return &GenerationEngine{client: client, deps: deps, rerollCost: rerollCost, now: time.Now}
}

// AttachGrid routes job swaps through g so its slots are stopped before the cache is cleared.
func (e *GenerationEngine) AttachGrid(g *Grid) { e.grid = g }

// RerollCost returns the credit price of a re-roll.
func (e *GenerationEngine) RerollCost() int { return e.rerollCost }

// Discover clears the previous job, submits a new one and makes it current.
func (e *GenerationEngine) Discover(ctx context.Context, req DiscoverRequest, progress chan<- ProgressUpdate) (*models.GenerationJob, error) {
	if len(req.Image) == 0 && req.Description == "" {
		return nil, fmt.Errorf("%w: an image or a description is required", shared.ErrInvalidInput)
	}
	if req.Upload && len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: upload requested without an image", shared.ErrInvalidInput)
	}
	album, err := models.ParseAlbumMode(string(req.Album))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	total := 4
	if req.Upload {
		total++
	}
	step := 0
	next := func() int { step++; return step }

	var image []byte
	if len(req.Image) > 0 {
		sendProgress(progress, preprocessUpdate(next(), total, len(req.Image)))
		if image, err = imaging.Preprocess(req.Image); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	} else {
		next()
	}

	e.client.TrackAction(e.deps.UserID, services.ActionDiscover, nil)
	if err := e.deps.Store.Clear(ctx); err != nil {
		return nil, err
	}

	var job *models.GenerationJob
	if req.Upload {
		sendProgress(progress, uploadUpdate(next(), total))
		sourceID, err := e.client.UploadImage(ctx, e.deps.UserID, image)
		if err != nil {
			return nil, err
		}
		sendProgress(progress, submitUpdate(next(), total, req.NumThemes))
		job, err = e.client.RollGenerationJob(ctx, services.RollRequest{
			UserID:          e.deps.UserID,
			SourceImageID:   sourceID,
			UserDescription: req.Description,
			NumThemes:       req.NumThemes,
			Album:           album,
		})
		if err != nil {
			return nil, err
		}
	} else {
		sendProgress(progress, submitUpdate(next(), total, req.NumThemes))
		job, err = e.client.SubmitGenerationJob(ctx, services.CreateRequest{
			UserID:          e.deps.UserID,
			UserDescription: req.Description,
			NumThemes:       req.NumThemes,
			Album:           album,
			Image:           image,
		})
		if err != nil {
			return nil, err
		}
	}

	inputs := &models.GenerationInputs{
		UserDescription: req.Description,
		HasSourceImage:  len(image) > 0,
		AlbumMode:       album,
		NumThemes:       req.NumThemes,
		CreatedAt:       e.now().UTC(),
	}

	sendProgress(progress, reloadUpdate(next(), total, job))
	err = e.swap(ctx, func(ctx context.Context) error {
		if err := e.deps.Store.Save(ctx, job, inputs); err != nil {
			return err
		}
		if len(image) > 0 {
			return e.deps.Store.SaveSourceImage(ctx, image)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sendProgress(progress, doneUpdate(next(), total, job))
	e.deps.logger().Info("discover complete", "request_id", job.RequestID, "themes", len(job.Images))
	return job, nil
}

// Reroll asks for fresh themes for the current source image and description.
//
// The balance is checked before anything is spent; a short balance fails with
// [shared.ErrInsufficientCredits] and leaves the current job untouched.
func (e *GenerationEngine) Reroll(ctx context.Context, progress chan<- ProgressUpdate) (*RerollResult, error) {
	const total = 5

	prev, err := e.deps.Store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("%w: nothing to re-roll", shared.ErrNoJob)
	}
	inputs, err := e.deps.Store.CurrentInputs(ctx)
	if err != nil {
		return nil, err
	}
	if inputs == nil {
		return nil, fmt.Errorf("%w: job %s has no saved inputs", shared.ErrNoJob, prev.RequestID)
	}

	e.client.TrackAction(e.deps.UserID, services.ActionRediscover, nil)

	sendProgress(progress, checkCreditsUpdate(1, total, e.rerollCost))
	balance, err := e.client.FetchCredits(ctx, e.deps.UserID)
	if err != nil {
		return nil, err
	}
	if balance < e.rerollCost {
		return nil, fmt.Errorf("%w: balance %d, re-roll costs %d", shared.ErrInsufficientCredits, balance, e.rerollCost)
	}

	remaining, err := e.client.SpendCredits(ctx, e.deps.UserID, e.rerollCost)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, spendCreditsUpdate(2, total, remaining))

	numThemes := inputs.NumThemes
	if numThemes <= 0 {
		numThemes = len(prev.Images)
	}

	sendProgress(progress, rollUpdate(3, total, prev))
	job, err := e.client.RollGenerationJob(ctx, services.RollRequest{
		UserID:          e.deps.UserID,
		SourceImageID:   prev.SourceImageID,
		UserDescription: inputs.UserDescription,
		NumThemes:       numThemes,
		Album:           inputs.AlbumMode,
		RequestID:       prev.RequestID,
	})
	if err != nil {
		return nil, err
	}

	sendProgress(progress, reloadUpdate(4, total, job))
	err = e.swap(ctx, func(ctx context.Context) error {
		return e.deps.Store.Save(ctx, job, inputs)
	})
	if err != nil {
		return nil, err
	}

	sendProgress(progress, doneUpdate(5, total, job))
	e.deps.logger().Info("re-roll complete", "request_id", job.RequestID, "previous", prev.RequestID, "credits", remaining)
	return &RerollResult{Job: job, Credits: remaining}, nil
}

// swap clears the image cache, runs save and wakes waiting slots. With a grid attached
// the whole sequence runs while its slots are stopped.
func (e *GenerationEngine) swap(ctx context.Context, save func(ctx context.Context) error) error {
	apply := func(ctx context.Context) error {
		e.deps.Cache.ClearAll()
		if err := save(ctx); err != nil {
			return err
		}
		e.deps.Jobs.Publish()
		return nil
	}
	if e.grid != nil {
		return e.grid.Reload(ctx, apply)
	}
	return apply(ctx)
}
