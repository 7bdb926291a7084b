package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/desertthunder/multiverse/internal/tasks"
	"github.com/desertthunder/multiverse/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive slot grid.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(r.config.Logging)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	shared.SetLogLevel(fileLogger, shared.ParseLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)
	r.client = services.NewClientFromConfig(r.config.API, fileLogger)

	deps, err := r.deps(ctx, cmd)
	if err != nil {
		return err
	}

	size := r.config.Generation.NumThemes
	if job, err := deps.Store.Current(ctx); err != nil {
		return err
	} else if job != nil {
		size = len(job.Images)
	}

	grid := tasks.NewGrid(size, deps)
	engine := r.engine(deps)
	engine.AttachGrid(grid)

	grid.Start(ctx)
	defer grid.Stop()

	model := ui.NewModel(ctx, ui.Options{
		Engine:    engine,
		Grid:      grid,
		Backend:   r.client,
		UserID:    deps.UserID,
		OutputDir: cmd.String("output"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
