package tasks

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/feed"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Target is the controller surface a replay drives. [*feed.Controller] satisfies it.
type Target interface {
	Load(ctx context.Context) error
	ItemExtent() float64
	Scrolled(offset float64)
	ScrollStateChanged(s models.ScrollState)
	SettleAt(position int)
	Interact(ctx context.Context, kind models.InteractionKind, position int) error
	Retry(position int)
	ResetDegraded()
	SetVisible(visible bool)
	Background()
	Flush(ctx context.Context) error
	Snapshot(ctx context.Context) (feed.Snapshot, error)
}

// FaultInjector toggles simulated decoder failures. [*decoder.Factory] satisfies it.
type FaultInjector interface {
	SetFault(position int, on bool)
}

// Failure is one unmet expectation.
type Failure struct {
	Step    int    `json:"step"`
	Message string `json:"message"`
}

// ReplayResult summarises a finished replay.
type ReplayResult struct {
	Name     string        `json:"name"`
	Steps    int           `json:"steps"`
	Checks   int           `json:"checks"`
	Failures []Failure     `json:"failures,omitempty"`
	Final    feed.Snapshot `json:"final"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Passed reports whether every expectation held.
func (r *ReplayResult) Passed() bool { return len(r.Failures) == 0 }

// ReplayEngine runs scripts against a [Target].
type ReplayEngine struct {
	target Target
	faults FaultInjector
	logger *log.Logger
}

// NewReplayEngine creates a ReplayEngine. faults may be nil, in which case fault steps fail.
func NewReplayEngine(target Target, faults FaultInjector, logger *log.Logger) *ReplayEngine {
	return &ReplayEngine{
		target: target,
		faults: faults,
		logger: shared.WithLogger(logger, "component", "replay"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *ReplayEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes script step by step, flushing the control loop after each one.
//
// A step the controller rejects aborts the replay with an error; unmet expectations
// are collected in the result.
func (e *ReplayEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, script *Script) (*ReplayResult, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	total := len(script.Steps)
	result := &ReplayResult{Name: script.Name, Steps: total}
	e.sendProgress(progress, loadScriptUpdate(total, script.Name))

	for i, step := range script.Steps {
		n := i + 1
		e.sendProgress(progress, runStepUpdate(n, total, step))
		e.logger.Debug("replay step", "step", n, "action", step.Action)

		if step.Action == ActionExpect {
			failures, err := e.check(ctx, step)
			if err != nil {
				return result, fmt.Errorf("step %d (%s): %w", n, step, err)
			}
			result.Checks++
			for _, msg := range failures {
				result.Failures = append(result.Failures, Failure{Step: n, Message: msg})
			}
			e.sendProgress(progress, checkUpdate(n, total, failures))
			continue
		}

		if err := e.apply(ctx, step); err != nil {
			return result, fmt.Errorf("step %d (%s): %w", n, step, err)
		}
		if err := e.target.Flush(ctx); err != nil {
			return result, fmt.Errorf("step %d (%s): %w", n, step, err)
		}
	}

	final, err := e.target.Snapshot(ctx)
	if err != nil {
		return result, err
	}
	result.Final = final
	result.Elapsed = time.Since(start)

	e.sendProgress(progress, completeUpdate(total, result))
	return result, nil
}

func (e *ReplayEngine) apply(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionLoad:
		return e.target.Load(ctx)
	case ActionDrag:
		e.target.ScrollStateChanged(models.ScrollDragging)
		e.target.Scrolled(step.Offset * e.target.ItemExtent())
	case ActionSettling:
		e.target.ScrollStateChanged(models.ScrollSettling)
	case ActionRelease:
		e.target.ScrollStateChanged(models.ScrollIdle)
	case ActionSwipe:
		e.target.SettleAt(*step.To)
	case ActionInteract:
		position := deref(step.Position, -1)
		if position < 0 {
			snap, err := e.target.Snapshot(ctx)
			if err != nil {
				return err
			}
			position = snap.Current
		}
		return e.target.Interact(ctx, step.Kind, position)
	case ActionRetry:
		e.target.Retry(*step.Position)
	case ActionReset:
		e.target.ResetDegraded()
	case ActionShow:
		e.target.SetVisible(true)
	case ActionHide:
		e.target.SetVisible(false)
	case ActionBackground:
		e.target.Background()
	case ActionFault:
		if e.faults == nil {
			return fmt.Errorf("%w: no fault injector configured", shared.ErrNotImplemented)
		}
		e.faults.SetFault(*step.Position, deref(step.On, true))
	case ActionWait:
		select {
		case <-time.After(time.Duration(step.Ms) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *ReplayEngine) check(ctx context.Context, step Step) ([]string, error) {
	snap, err := e.target.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var failures []string
	if step.Current != nil && snap.Current != *step.Current {
		failures = append(failures, fmt.Sprintf("current: expected %d, got %d", *step.Current, snap.Current))
	}
	if step.Playing != nil && snap.Playing() != *step.Playing {
		failures = append(failures, fmt.Sprintf("playing: expected %d, got %d", *step.Playing, snap.Playing()))
	}
	if step.Live != nil {
		live := snap.LivePositions()
		if !slices.Equal(live, step.Live) {
			failures = append(failures, fmt.Sprintf("live: expected %v, got %v", step.Live, live))
		}
	}
	if step.Degraded != nil && snap.Degraded != *step.Degraded {
		failures = append(failures, fmt.Sprintf("degraded: expected %t, got %t", *step.Degraded, snap.Degraded))
	}
	if step.Length != nil && snap.Length != *step.Length {
		failures = append(failures, fmt.Sprintf("length: expected %d, got %d", *step.Length, snap.Length))
	}
	return failures, nil
}
