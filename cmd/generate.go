package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/multiverse/internal/formatter"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/desertthunder/multiverse/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Discover submits a new job from an image and/or a description and makes it current.
func (r *Runner) Discover(ctx context.Context, cmd *cli.Command) error {
	imagePath := cmd.String("image")
	description := strings.TrimSpace(cmd.String("description"))

	var image []byte
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		image = data
	}
	if len(image) == 0 && description == "" {
		return fmt.Errorf("%w: --image or --description is required", shared.ErrMissingArgument)
	}
	if cmd.Bool("upload") && len(image) == 0 {
		return fmt.Errorf("%w: --upload needs --image", shared.ErrInvalidFlag)
	}

	deps, err := r.deps(ctx, cmd)
	if err != nil {
		return err
	}
	mode, err := r.albumMode(ctx, cmd.String("album"), cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	themes := cmd.Int("themes")
	if themes <= 0 {
		themes = r.config.Generation.NumThemes
	}

	r.logger.Info("discover", "image", imagePath, "themes", themes, "album", mode)

	progress, stop := r.progress()
	job, err := r.engine(deps).Discover(ctx, tasks.DiscoverRequest{
		Image:       image,
		Description: description,
		Album:       mode,
		NumThemes:   themes,
		Upload:      cmd.Bool("upload"),
	}, progress)
	stop()
	if err != nil {
		return err
	}

	r.printJob(job)

	out := cmd.String("output")
	if cmd.Bool("wait") || out != "" {
		return r.runGrid(ctx, deps, len(job.Images), out, formatter.Text, false)
	}
	r.writePlain("\nRun 'multiverse slots' to fetch the images\n")
	return nil
}

// Reroll pays for and swaps in a new job generated from the current job's inputs.
func (r *Runner) Reroll(ctx context.Context, cmd *cli.Command) error {
	deps, err := r.deps(ctx, cmd)
	if err != nil {
		return err
	}

	progress, stop := r.progress()
	result, err := r.engine(deps).Reroll(ctx, progress)
	stop()
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientCredits) {
			r.writePlain("Not enough credits for a re-roll; run 'multiverse credits purchase'\n")
		}
		return err
	}

	r.printJob(result.Job)
	r.writePlain("Credits remaining: %d\n", result.Credits)

	out := cmd.String("output")
	if cmd.Bool("wait") || out != "" {
		return r.runGrid(ctx, deps, len(result.Job.Images), out, formatter.Text, false)
	}
	return nil
}

// Slots runs the grid against the current job until every slot is terminal.
//
// With --number only that slot runs; its index wraps around the job's images.
func (r *Runner) Slots(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	deps, err := r.deps(ctx, cmd)
	if err != nil {
		return err
	}
	job, err := deps.Store.Current(ctx)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: run 'multiverse discover' first", shared.ErrNoJob)
	}

	if n := cmd.Int("number"); n > 0 {
		st := tasks.NewSlotController(n, deps, nil).Run(ctx)
		return r.finishSlots(ctx, deps, []models.SlotState{st}, cmd.String("output"), format, cmd.Bool("open"))
	}

	size := cmd.Int("size")
	if size <= 0 {
		size = len(job.Images)
	}
	return r.runGrid(ctx, deps, size, cmd.String("output"), format, cmd.Bool("open"))
}

func (r *Runner) runGrid(ctx context.Context, deps tasks.Deps, size int, out string, format formatter.Format, open bool) error {
	r.logger.Info("fetching slots", "size", size)

	grid := tasks.NewGrid(size, deps)
	grid.Start(ctx)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case st := <-grid.Updates():
				r.logger.Debug("slot update", "slot", st.Number, "phase", st.Phase, "attempts", st.Attempts)
			case <-done:
				return
			}
		}
	}()
	err := grid.Wait()
	close(done)
	if err != nil {
		return err
	}
	return r.finishSlots(ctx, deps, grid.Snapshot(), out, format, open)
}

// finishSlots renders the final states and optionally saves and opens the images.
func (r *Runner) finishSlots(ctx context.Context, deps tasks.Deps, states []models.SlotState, out string, format formatter.Format, open bool) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
	}

	rendered, err := formatter.RenderSlots(format, states)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(rendered); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	failed := 0
	for _, st := range states {
		if st.Phase == models.PhaseFailed {
			failed++
		}
	}

	if out != "" {
		files, err := formatter.WriteSlotImages(out, states)
		if err != nil {
			return err
		}
		r.logger.Info("images saved", "dir", out, "count", len(files))
		if len(files) > 0 {
			r.client.TrackAction(deps.UserID, services.ActionDownload, map[string]string{"count": fmt.Sprint(len(files))})
		}
		if open {
			if err := shared.OpenPath(out); err != nil {
				r.logger.Warn("failed to open output directory", "error", err)
			}
		}
	}

	if failed > 0 {
		r.logger.Warn("some slots failed", "failed", failed, "total", len(states))
	}
	return nil
}

func (r *Runner) printJob(job *models.GenerationJob) {
	r.writePlainHeader("Job " + job.RequestID)
	r.writePlain("Source image: %s\n", job.SourceImageID)
	for i, img := range job.Images {
		r.writePlain("%2d. %s\n", i+1, img.ThemeName)
	}
}
