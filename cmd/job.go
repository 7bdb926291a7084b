package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/multiverse/internal/formatter"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/desertthunder/multiverse/internal/tasks"
	"github.com/urfave/cli/v3"
)

// JobShow prints the current job and its inputs.
func (r *Runner) JobShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	store, err := r.responseStore(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}

	job, err := store.Current(ctx)
	if err != nil {
		return err
	}
	inputs, err := store.CurrentInputs(ctx)
	if err != nil {
		return err
	}

	out, err := formatter.RenderJob(format, job, inputs)
	if err != nil {
		return err
	}
	_, err = r.output.Write(out)
	return err
}

// JobHistory lists previously current jobs.
func (r *Runner) JobHistory(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	store, err := r.responseStore(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}

	entries, err := store.History(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if len(entries) == 0 && format == formatter.Text {
		return r.writePlain("No jobs yet\n")
	}

	out, err := formatter.RenderHistory(format, entries)
	if err != nil {
		return err
	}
	_, err = r.output.Write(out)
	return err
}

// JobExport fetches the current job's images and writes them with a Markdown summary.
func (r *Runner) JobExport(ctx context.Context, cmd *cli.Command) error {
	deps, err := r.deps(ctx, cmd)
	if err != nil {
		return err
	}
	job, err := deps.Store.Current(ctx)
	if err != nil {
		return err
	}
	if job == nil {
		return shared.ErrNoJob
	}
	inputs, err := deps.Store.CurrentInputs(ctx)
	if err != nil {
		return err
	}

	grid := tasks.NewGrid(len(job.Images), deps)
	grid.Start(ctx)
	if err := grid.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
	}

	result, err := formatter.WriteMarkdownExport(job, inputs, grid.Snapshot(), cmd.String("output"))
	if err != nil {
		return err
	}
	r.client.TrackAction(deps.UserID, services.ActionShare, map[string]string{"request_id": job.RequestID})

	r.writePlain("✓ Exported %d files to %s\n", len(result.Files), result.Directory)
	return nil
}

// JobClear forgets the current job. History is kept.
func (r *Runner) JobClear(ctx context.Context, cmd *cli.Command) error {
	store, err := r.responseStore(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	r.logger.Info("current job cleared")
	return r.writePlain("✓ Current job cleared\n")
}
