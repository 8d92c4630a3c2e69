// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the default configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the file to create",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// feedCommand manages the local feed store.
func feedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Local feed items and engagement",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import feed items from a JSON, YAML or TOML file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.FeedImport,
			},
			{
				Name:  "list",
				Usage: "List feed items from the configured source",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.FeedList,
			},
			{
				Name:  "views",
				Usage: "Show recorded view counts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to file instead of stdout",
					},
				},
				Action: r.FeedViews,
			},
		},
	}
}

// playCommand launches the interactive feed simulator.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "play",
		Aliases: []string{"tui", "ui"},
		Usage:   "Scroll through the feed in an interactive terminal simulator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log file path",
				Value: "./tmp/reel-tui.log",
			},
		},
		Action: r.Play,
	}
}

// replayCommand runs a scripted gesture session.
func replayCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Replay a TOML gesture script against the playback core",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "script"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Final state format (text, json, markdown)",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Hide per-step progress",
			},
		},
		Action: r.Replay,
	}
}

// serveCommand exposes a controller over HTTP.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the control API and metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.host and server.port",
			},
		},
		Action: r.Serve,
	}
}
