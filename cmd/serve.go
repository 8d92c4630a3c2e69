package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reel/internal/server"
)

// Serve loads the feed and exposes the controller over HTTP until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	s, err := r.startSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.Load(ctx); err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}

	router := server.NewRouter(s.ctrl, r.logger)
	for _, route := range router.Routes() {
		r.logger.Debug("route", "pattern", route)
	}

	r.writePlain("Serving control API on http://%s\n", addr)
	return server.New(addr, router, r.logger).Run(ctx)
}
