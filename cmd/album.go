package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/multiverse/internal/formatter"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/urfave/cli/v3"
)

// AlbumList prints the user's saved themes.
func (r *Runner) AlbumList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	userID, err := r.userID(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}

	themes, err := r.client.GetAlbum(ctx, userID)
	if err != nil {
		return err
	}

	switch format {
	case formatter.Text, formatter.Markdown:
		if len(themes) == 0 {
			return r.writePlain("Album is empty\n")
		}
		for _, t := range themes {
			r.writePlain("- %s (%s)\n", t.Name, t.ThemeID)
		}
		return nil
	case formatter.JSON:
		return r.writeJSON(themes, true)
	default:
		return fmt.Errorf("%w: album list supports text, markdown and json", shared.ErrInvalidFlag)
	}
}

// AlbumAdd saves a theme to the album.
func (r *Runner) AlbumAdd(ctx context.Context, cmd *cli.Command) error {
	themeID := cmd.StringArg("theme")
	userID, err := r.userID(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	if err := r.client.AddToAlbum(ctx, userID, themeID); err != nil {
		return err
	}
	return r.writePlain("✓ Added %s\n", themeID)
}

// AlbumRemove removes a theme from the album.
func (r *Runner) AlbumRemove(ctx context.Context, cmd *cli.Command) error {
	themeID := cmd.StringArg("theme")
	userID, err := r.userID(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	if err := r.client.RemoveFromAlbum(ctx, userID, themeID); err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s\n", themeID)
}

// AlbumCreate defines a custom theme.
func (r *Runner) AlbumCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	userID, err := r.userID(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	id, err := r.client.CreateTheme(ctx, userID, name, cmd.String("description"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created theme %s (%s)\n", name, id)
}

// AlbumMode prints the effective album mode, or persists a new one when given.
func (r *Runner) AlbumMode(ctx context.Context, cmd *cli.Command) error {
	if arg := cmd.StringArg("mode"); arg != "" {
		mode, err := models.ParseAlbumMode(arg)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		settings, err := r.settings(ctx)
		if err != nil {
			return err
		}
		if err := settings.SetAlbumMode(ctx, mode); err != nil {
			return err
		}
		r.logger.Info("album mode set", "mode", mode)
	}

	mode, err := r.albumMode(ctx, "", cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	return r.writePlain("Album mode: %s\n", mode)
}
