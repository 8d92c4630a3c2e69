package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reel/internal/decoder"
	"github.com/desertthunder/reel/internal/feed"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/repositories"
	"github.com/desertthunder/reel/internal/services"
	"github.com/desertthunder/reel/internal/shared"
	"github.com/desertthunder/reel/internal/slot"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
	provider   models.FeedProvider
	s3         services.S3API
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	Provider   models.FeedProvider // overrides feed.source when set
	S3         services.S3API      // overrides the client built from feed.s3_region
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		provider:   opts.Provider,
		s3:         opts.S3,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, feedCommand, playCommand, replayCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// loadConfig reads path when it exists, applies REEL_* overrides and the configured log level.
func (r *Runner) loadConfig(path string) error {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return err
			}
			r.config = config
			r.configPath = path
		}
	}

	if err := r.config.ApplyEnv(); err != nil {
		return err
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Logging.Level))
	return nil
}

// database opens the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

// Close releases the database handle if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// feedProvider builds the provider named by feed.source.
func (r *Runner) feedProvider() (models.FeedProvider, error) {
	if r.provider != nil {
		return r.provider, nil
	}

	pageSize := r.config.Scroll.PageSize
	switch r.config.Feed.Source {
	case "", "sqlite":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		return repositories.NewFeedRepository(db, pageSize), nil
	case "http":
		return services.NewHTTPFeed(r.config.Feed.URL, pageSize, r.httpClient), nil
	case "s3":
		if r.config.Feed.S3Bucket == "" {
			return nil, fmt.Errorf("%w: feed.s3_bucket is required for the s3 source", shared.ErrMissingConfig)
		}
		client := r.s3
		if client == nil {
			c, err := services.NewS3Client(r.config.Feed.S3Region, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"))
			if err != nil {
				return nil, err
			}
			client = c
		}
		return services.NewS3Feed(client, services.S3Config{
			Bucket:     r.config.Feed.S3Bucket,
			Prefix:     r.config.Feed.S3Prefix,
			Region:     r.config.Feed.S3Region,
			PresignTTL: r.config.Feed.PresignTTL(),
			PageSize:   pageSize,
		}, r.logger), nil
	case "demo":
		return services.NewDemoFeed(0, pageSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown feed source %q", shared.ErrInvalidConfig, r.config.Feed.Source)
	}
}

// session is a running controller together with its simulated backend and
// the engagement recorder fed by its hooks.
type session struct {
	ctrl     *feed.Controller
	factory  *decoder.Factory
	surface  *decoder.Surface
	stop     context.CancelFunc
	recorded chan struct{}
}

// startSession wires a controller to the configured provider, the simulated
// decoder backend and the engagement store, and starts its control loop.
func (r *Runner) startSession(ctx context.Context) (*session, error) {
	provider, err := r.feedProvider()
	if err != nil {
		return nil, err
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}

	logger := r.logger
	recorder := repositories.NewEngagementRecorder(
		repositories.NewViewRepository(db),
		repositories.NewInteractionRepository(db),
		logger,
	)
	factory := decoder.NewFactory(decoder.Options{
		PrepareLatency: r.config.Decoder.PrepareLatency(),
		MediaDuration:  r.config.Decoder.MediaDuration(),
		FailPositions:  r.config.Decoder.FailPositions,
	}, logger)
	surface := decoder.NewSurface(logger)

	hooks := feed.Hooks{
		OnPositionSettled: recorder.OnPositionSettled,
		OnInteraction:     recorder.OnInteraction,
		OnSlotError: func(e models.SlotError) {
			logger.Warn("slot failed", "position", e.Position, "kind", e.Kind, "err", e.Message)
		},
		OnTransition: func(t slot.Transition) {
			logger.Debug("transition", "position", t.Position, "from", t.From, "to", t.To)
		},
	}

	ctrl := feed.New(feed.ConfigFrom(r.config), provider, factory, surface, hooks, logger)

	recordCtx, stop := context.WithCancel(context.Background())
	s := &session{ctrl: ctrl, factory: factory, surface: surface, stop: stop, recorded: make(chan struct{})}
	go func() {
		defer close(s.recorded)
		recorder.Run(recordCtx)
	}()

	ctrl.Start(ctx)
	return s, nil
}

// Close stops the controller, releasing every decoder, then drains pending engagement records.
func (s *session) Close() error {
	err := s.ctrl.Close()
	s.stop()
	<-s.recorded
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// isNotImplemented reports whether err wraps [shared.ErrNotImplemented].
func isNotImplemented(err error) bool {
	return errors.Is(err, shared.ErrNotImplemented)
}
