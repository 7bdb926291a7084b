package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/multiverse/internal/server"
	"github.com/urfave/cli/v3"
)

// Sandbox serves the in-memory fake backend until interrupted.
func (r *Runner) Sandbox(ctx context.Context, cmd *cli.Command) error {
	conf := r.config.Server
	if host := cmd.String("host"); host != "" {
		conf.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		conf.Port = port
	}
	if n := cmd.Int("not-ready"); n >= 0 {
		conf.NotReadyPolls = n
	}

	sb := server.NewSandbox(server.DefaultSandboxOpts(conf, r.logger))
	addr := net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))

	r.writePlain("Sandbox backend on http://%s\n", addr)
	r.writePlain("Point the client at it with MULTIVERSE_BASE_URL=http://%s\n", addr)

	if err := server.Serve(ctx, addr, server.NewSandboxHandler(sb), r.logger); err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	return nil
}
