package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CreditsShow prints the current balance and the re-roll price.
func (r *Runner) CreditsShow(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	credits, err := r.client.FetchCredits(ctx, userID)
	if err != nil {
		return err
	}
	return r.writePlain("Credits: %d (re-roll costs %d)\n", credits, r.config.Generation.RerollCost)
}

// CreditsPurchase records a verified one-time purchase.
func (r *Runner) CreditsPurchase(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	credits, err := r.client.RecordPurchase(ctx, userID, cmd.String("transaction"), cmd.Int("credits"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Purchase recorded, credits: %d\n", credits)
}
