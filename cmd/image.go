package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/multiverse/internal/imaging"
	"github.com/urfave/cli/v3"
)

// ImagePreprocess applies the upload downscale and JPEG re-encode to a local file.
func (r *Runner) ImagePreprocess(ctx context.Context, cmd *cli.Command) error {
	in, out := cmd.String("in"), cmd.String("out")

	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	processed, err := imaging.Preprocess(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, processed, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	r.logger.Info("image preprocessed", "in", in, "out", out, "before", len(data), "after", len(processed))
	return r.writePlain("✓ %s: %d -> %d bytes\n", out, len(data), len(processed))
}
