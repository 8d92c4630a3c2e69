package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reel/internal/shared"
	"github.com/desertthunder/reel/internal/ui"
)

// Play launches the interactive feed simulator.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)

	s, err := r.startSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.Load(ctx); err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}

	model := ui.NewModel(ctx, s.ctrl, s.factory)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
