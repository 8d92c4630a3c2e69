package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reel/internal/formatter"
	"github.com/desertthunder/reel/internal/shared"
	"github.com/desertthunder/reel/internal/tasks"
)

// Replay runs a gesture script against a fresh controller and prints the outcome.
func (r *Runner) Replay(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("script")
	if path == "" {
		return fmt.Errorf("%w: script", shared.ErrMissingArgument)
	}
	format := cmd.String("format")

	script, err := tasks.LoadScript(path)
	if err != nil {
		return err
	}

	s, err := r.startSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	r.logger.Info("starting replay", "script", path, "steps", len(script.Steps))

	// Create progress channel and goroutine to handle updates
	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			if cmd.Bool("quiet") {
				continue
			}
			switch update.Phase {
			case tasks.PhaseLoadScript:
				r.writePlain("▶ %s\n", update.Message)
			case tasks.RunStep:
				r.writePlain("   %s\n", update.Message)
			case tasks.CheckExpectation:
				r.writePlain("   %s\n", update.Message)
				if failures, ok := update.Data.([]string); ok {
					for _, f := range failures {
						r.writePlain("     - %s\n", f)
					}
				}
			case tasks.Complete:
				r.writePlain("\n%s\n", update.Message)
			}
		}
	}()

	engine := tasks.NewReplayEngine(s.ctrl, s.factory, r.logger)
	result, err := engine.Run(ctx, progressCh, script)
	close(progressCh)
	<-printed

	if err != nil {
		return err
	}

	r.writePlainHeader("Replay Complete")
	if err := r.writeBytes(formatter.ReplayToText(result)); err != nil {
		return err
	}

	final, err := formatter.Render(result.Final, format)
	if err != nil {
		return err
	}
	if err := r.writeBytes(final); err != nil {
		return err
	}

	if !result.Passed() {
		return fmt.Errorf("replay %q: %d expectation(s) failed", result.Name, len(result.Failures))
	}
	return nil
}
