// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/multiverse/internal/formatter"
	"github.com/urfave/cli/v3"
)

func formatFlag(def formatter.Format) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, yaml, csv, markdown or text",
		Value:   string(def),
	}
}

// setupCommand handles setup operations for the database, config file and identity.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the config file to create (defaults to ./config.toml)",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "user",
				Usage: "Show the user identity, creating and registering it on first use",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "set",
						Usage: "Pin an existing user id (UUID)",
					},
				},
				Action: r.SetupUser,
			},
		},
	}
}

// discoverCommand submits a new generation job.
func discoverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "Generate a new set of themed images from a photo and/or a description",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "Path to the source image",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Describe what you want to see",
			},
			&cli.StringFlag{
				Name:  "album",
				Usage: "Theme source: default or my_album",
			},
			&cli.IntFlag{
				Name:  "themes",
				Usage: "Number of themes to generate (defaults to generation.num_themes)",
			},
			&cli.BoolFlag{
				Name:  "upload",
				Usage: "Upload the image first and roll against its id",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Poll every slot until its image is ready",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to save ready images to (implies --wait)",
			},
		},
		Action: r.Discover,
	}
}

// rerollCommand spends credits on a fresh set of themes for the current job.
func rerollCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "reroll",
		Aliases: []string{"rediscover"},
		Usage:   "Spend credits to re-roll the current job with the same inputs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Poll every slot until its image is ready",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to save ready images to (implies --wait)",
			},
		},
		Action: r.Reroll,
	}
}

// slotsCommand runs the slot grid against the current job.
func slotsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Fetch the result images of the current job",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "number",
				Aliases: []string{"n"},
				Usage:   "Only run this slot (1-based)",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "Grid size (defaults to the number of images in the job)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to save ready images to",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the saved images with the system viewer",
			},
			formatFlag(formatter.Text),
		},
		Action: r.Slots,
	}
}

// jobCommand inspects the response store.
func jobCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "job",
		Usage: "Inspect the current generation job",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the current job and the inputs that produced it",
				Flags:  []cli.Flag{formatFlag(formatter.Text)},
				Action: r.JobShow,
			},
			{
				Name:  "history",
				Usage: "List previous jobs, newest first",
				Flags: []cli.Flag{
					formatFlag(formatter.Text),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 10,
					},
				},
				Action: r.JobHistory,
			},
			{
				Name:  "export",
				Usage: "Write the current job and its ready images as a Markdown document",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to export into (defaults to the request id)",
					},
				},
				Action: r.JobExport,
			},
			{
				Name:   "clear",
				Usage:  "Forget the current job (history is kept)",
				Action: r.JobClear,
			},
		},
	}
}

// creditsCommand handles the credit balance.
func creditsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "credits",
		Usage: "Show and top up credits",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the current balance",
				Action: r.CreditsShow,
			},
			{
				Name:  "purchase",
				Usage: "Record a verified one-time purchase",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "transaction",
						Usage:    "Store transaction id",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "credits",
						Usage:    "Credits bought",
						Required: true,
					},
				},
				Action: r.CreditsPurchase,
			},
		},
	}
}

// albumCommand manages the user's album of themes.
func albumCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "album",
		Usage: "Manage saved themes",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List album themes",
				Flags:  []cli.Flag{formatFlag(formatter.Text)},
				Action: r.AlbumList,
			},
			{
				Name:      "add",
				Usage:     "Save a theme to the album",
				Arguments: []cli.Argument{&cli.StringArg{Name: "theme"}},
				Action:    r.AlbumAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a theme from the album",
				Arguments: []cli.Argument{&cli.StringArg{Name: "theme"}},
				Action:    r.AlbumRemove,
			},
			{
				Name:      "create",
				Usage:     "Create a custom theme and save it to the album",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "What the theme should look like",
					},
				},
				Action: r.AlbumCreate,
			},
			{
				Name:      "mode",
				Usage:     "Show or set where themes come from: default or my_album",
				Arguments: []cli.Argument{&cli.StringArg{Name: "mode"}},
				Action:    r.AlbumMode,
			},
		},
	}
}

// apiCommand handles direct backend calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the generation backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the raw response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// imageCommand exposes the upload preprocessing.
func imageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "image",
		Usage: "Image utilities",
		Commands: []*cli.Command{
			{
				Name:  "preprocess",
				Usage: "Downscale and re-encode an image the way discover does before upload",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "in",
						Usage:    "Source image path",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Destination JPEG path",
						Required: true,
					},
				},
				Action: r.ImagePreprocess,
			},
		},
	}
}

// sandboxCommand serves the in-memory fake backend.
func sandboxCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sandbox",
		Usage: "Run a local fake backend for development",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (defaults to server.port)",
			},
			&cli.IntFlag{
				Name:  "not-ready",
				Usage: "Not-ready answers per image before it is served (defaults to server.not_ready_polls)",
				Value: -1,
			},
		},
		Action: r.Sandbox,
	}
}

// tuiCommand returns the top-level TUI command for the interactive grid.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive slot grid for the current job",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory the s key saves images to",
				Value:   "multiverse-images",
			},
		},
		Action: r.TUI,
	}
}
