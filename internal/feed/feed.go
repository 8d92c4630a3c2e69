// Package feed wires the playback core together behind a [Controller].
//
// The controller owns the control loop. Every public method may be called from any
// goroutine; the work itself runs on the loop, which is the only goroutine that ever
// touches the pool, the state machine, the binder or the scroll coordinator.
//
// Flow on every settle: the coordinator reports the new position, the active slot is
// paused, the prefetch window is recomputed, the pool evicts and acquires for it and,
// once the current slot is ready and scrolling is idle, the binder attaches its
// decoder and the state machine plays it. The previous decoder stays on the surface,
// protected from eviction, until the new one replaces it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/loop"
	"github.com/desertthunder/reel/internal/metrics"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/pool"
	"github.com/desertthunder/reel/internal/prefetch"
	"github.com/desertthunder/reel/internal/render"
	"github.com/desertthunder/reel/internal/scroll"
	"github.com/desertthunder/reel/internal/shared"
	"github.com/desertthunder/reel/internal/slot"
)

const historySize = 64

// Hooks are collaborator callbacks. They run on the control loop and must not block
// or call back into the controller synchronously.
type Hooks struct {
	OnPositionSettled func(position int, itemID string)
	OnInteraction     func(models.Interaction)
	OnSlotError       func(models.SlotError)
	OnTransition      func(slot.Transition)
}

// Controller is the feed playback core.
type Controller struct {
	cfg      Config
	loop     *loop.Loop
	provider models.FeedProvider
	pool     *pool.Pool
	machine  *slot.Machine
	binder   *render.Binder
	coord    *scroll.Coordinator
	surface  models.Surface
	hooks    Hooks
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// loop-owned
	items      []models.FeedItem
	current    int
	visible    bool
	stopped    bool
	generation int
	paging     bool
	exhausted  bool
	history    []string
}

// New builds a controller. Call [Controller.Start] before using it.
func New(cfg Config, provider models.FeedProvider, factory models.DecoderFactory, surface models.Surface, hooks Hooks, logger *log.Logger) *Controller {
	logger = shared.WithLogger(logger)
	c := &Controller{
		cfg:      cfg,
		loop:     loop.New(logger),
		provider: provider,
		surface:  surface,
		hooks:    hooks,
		logger:   logger.With("component", "feed"),
		current:  -1,
		visible:  true,
	}

	c.machine = slot.NewMachine(cfg.LoopOnEnd, logger)
	c.pool = pool.New(cfg.Pool, factory, c.loop, c.machine, logger)
	c.binder = render.NewBinder(c.pool, logger)
	c.coord = scroll.New(cfg.ItemExtent, logger)

	c.machine.Observe(c.onTransition)
	c.pool.Subscribe(c.onEvent)
	c.pool.OnBeforeRelease(func(_ int, d models.Decoder) { c.binder.DetachDecoder(d) })
	c.coord.OnScrollStateChanged(c.onScrollState)
	c.coord.OnPositionChanged(c.moveTo)
	return c
}

// Start runs the control loop on its own goroutine until ctx ends or [Controller.Close].
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		if err := c.loop.Run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("control loop stopped", "err", err)
		}
	}()
}

// Close releases every decoder and stops the loop. It also cleans up after a loop
// that already stopped because the context passed to [Controller.Start] ended.
func (c *Controller) Close() error {
	if c.cancel == nil {
		return nil
	}
	err := c.loop.Do(context.Background(), c.releaseAll)
	c.loop.Close()
	<-c.loop.Done()
	c.cancel()
	if errors.Is(err, shared.ErrLoopClosed) {
		// nothing runs on the loop any more, so the caller may own its state
		c.releaseAll()
		return nil
	}
	return err
}

func (c *Controller) releaseAll() {
	c.binder.Detach(c.surface)
	c.pool.ReleaseAll()
}

// Flush waits until the loop has no queued work, including decoder completions
// already posted. Used by tests, the replay engine and the server.
func (c *Controller) Flush(ctx context.Context) error {
	return c.loop.Flush(ctx)
}

// Load fetches the feed from the provider and replaces the current one.
func (c *Controller) Load(ctx context.Context) error {
	items, err := c.provider.GetFeedItems(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrFeedUnavailable, err)
	}
	return c.Replace(ctx, items)
}

// Replace swaps the feed wholesale. Every slot is released and playback restarts at
// position zero.
func (c *Controller) Replace(ctx context.Context, items []models.FeedItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}
	return c.loop.Do(ctx, func() { c.replace(items) })
}

// Append extends the feed past its current end.
func (c *Controller) Append(ctx context.Context, items []models.FeedItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}
	return c.loop.Do(ctx, func() { c.appendItems(items) })
}

// ItemExtent returns the scroll distance of one item.
func (c *Controller) ItemExtent() float64 { return c.cfg.ItemExtent }

// Scrolled reports the transient scroll offset in the same units as the item extent.
func (c *Controller) Scrolled(offset float64) {
	c.loop.Post(func() { c.coord.Scrolled(offset) })
}

// ScrollStateChanged reports a scroll state change from the host.
func (c *Controller) ScrollStateChanged(s models.ScrollState) {
	c.loop.Post(func() { c.coord.StateChanged(s) })
}

// SettleAt drags to position and releases, as if the user flung to it.
func (c *Controller) SettleAt(position int) {
	c.loop.Post(func() {
		c.coord.StateChanged(models.ScrollDragging)
		c.coord.Scrolled(float64(position) * c.coord.Extent())
		c.coord.StateChanged(models.ScrollIdle)
	})
}

// Interact forwards a like/comment/share/profile interaction on position.
func (c *Controller) Interact(ctx context.Context, kind models.InteractionKind, position int) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown interaction %q", shared.ErrInvalidArgument, kind)
	}
	var err error
	if doErr := c.loop.Do(ctx, func() {
		if position < 0 || position >= len(c.items) {
			err = fmt.Errorf("%w: %d", shared.ErrInvalidPosition, position)
			return
		}
		ev := models.Interaction{Kind: kind, Position: position, ItemID: c.items[position].ID, At: time.Now()}
		metrics.Interactions.WithLabelValues(string(kind)).Inc()
		if c.hooks.OnInteraction != nil {
			c.hooks.OnInteraction(ev)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// Retry re-acquires a failed slot inside the current window.
func (c *Controller) Retry(position int) {
	c.loop.Post(func() { c.retry(position) })
}

// ResetDegraded clears degraded mode and prefetches the window again.
func (c *Controller) ResetDegraded() {
	c.loop.Post(func() {
		c.pool.Reset()
		c.reconcile()
	})
}

// SetVisible reports host visibility. Hiding pauses playback and keeps the decoders;
// showing resumes it, rebuilding the window first after [Controller.Background].
func (c *Controller) SetVisible(visible bool) {
	c.loop.Post(func() {
		c.visible = visible
		if !visible {
			c.pool.PauseActive()
			return
		}
		if c.stopped {
			c.stopped = false
			c.logger.Info("resuming from background", "position", c.current)
			c.reconcile()
		}
		c.tryStart()
	})
}

// Background hides the feed and gives up every decoder. The current position is
// kept; nothing is acquired again until [Controller.SetVisible] shows the feed.
func (c *Controller) Background() {
	c.loop.Post(func() {
		c.visible = false
		c.stopped = true
		c.pool.PauseActive()
		c.releaseAll()
		c.logger.Info("backgrounded, decoders released", "position", c.current)
	})
}

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.loop.Do(ctx, func() { snap = c.snapshot() })
	return snap, err
}

func (c *Controller) replace(items []models.FeedItem) {
	c.binder.Detach(c.surface)
	c.pool.ReleaseAll()

	c.generation++
	c.items = models.Renumber(items, 0)
	c.current = -1
	c.paging = false
	c.exhausted = false
	c.coord.SetLength(len(c.items))
	c.coord.Reset()
	c.logger.Info("feed replaced", "items", len(c.items))

	if len(c.items) == 0 {
		c.logger.Warn("feed is empty")
		return
	}
	c.moveTo(0)
}

func (c *Controller) appendItems(items []models.FeedItem) {
	if len(items) == 0 {
		return
	}
	c.items = append(c.items, models.Renumber(items, len(c.items))...)
	c.coord.SetLength(len(c.items))
	c.logger.Debug("feed extended", "items", len(c.items))

	if c.current < 0 {
		c.moveTo(0)
		return
	}
	c.reconcile()
}

// moveTo makes position current: the playing slot pauses at once, the window is
// reconciled and playback starts once the new slot is ready.
func (c *Controller) moveTo(position int) {
	if position < 0 || position >= len(c.items) || position == c.current {
		return
	}
	c.current = position
	c.pool.PauseActive()

	metrics.PositionSettles.Inc()
	c.logger.Debug("settled", "position", position, "id", c.items[position].ID)
	if c.hooks.OnPositionSettled != nil {
		c.hooks.OnPositionSettled(position, c.items[position].ID)
	}

	c.reconcile()
	c.tryStart()
	c.maybePage()
}

// reconcile evicts outside the window and acquires what is missing, current first.
func (c *Controller) reconcile() {
	if c.current < 0 || c.stopped {
		return
	}
	w := models.Window{Current: c.current, Radius: c.cfg.Radius}
	if evicted := c.pool.EvictOutsideWindow(w); len(evicted) > 0 {
		c.logger.Debug("evicted", "positions", evicted, "window", w)
	}

	plan := prefetch.Diff(w, len(c.items), c.pool.States())
	for _, p := range plan.Acquire {
		if p == c.current {
			c.pool.AcquireForPosition(c.items[p])
		} else {
			c.pool.Prefetch(c.items[p])
		}
	}
}

// tryStart attaches and plays the current slot when it is ready, visible and idle.
func (c *Controller) tryStart() {
	if c.current < 0 || c.stopped {
		return
	}
	h, ok := c.pool.Handle(c.current)
	if ok && h.State == models.Error {
		c.dropStaleBinding()
		return
	}
	if !ok || !c.visible || c.coord.State() != models.ScrollIdle {
		return
	}
	switch h.State {
	case models.Ready, models.Paused, models.Ended, models.Playing:
	default:
		return
	}

	previous, hadPrevious := c.binder.Bound(c.surface)
	err := c.binder.Attach(c.surface, c.current, c.pool.Decoder(c.current))
	if hadPrevious && previous != c.current {
		c.reconcile()
	}
	if err != nil {
		var slotErr *models.SlotError
		if errors.As(err, &slotErr) {
			c.reportError(*slotErr)
		} else {
			c.logger.Debug("attach deferred", "position", c.current, "err", err)
		}
		return
	}
	if h.State == models.Playing {
		return
	}
	if err := c.pool.Play(c.current); err != nil {
		c.logger.Warn("play failed", "position", c.current, "err", err)
	}
}

func (c *Controller) retry(position int) {
	if c.stopped {
		c.logger.Warn("retry ignored while backgrounded", "position", position)
		return
	}
	if position < 0 || position >= len(c.items) {
		c.logger.Warn("retry ignored", "position", position, "err", shared.ErrInvalidPosition)
		return
	}
	w := models.Window{Current: c.current, Radius: c.cfg.Radius}
	if !w.Contains(position) {
		c.logger.Warn("retry ignored, outside window", "position", position, "window", w)
		return
	}

	h := c.pool.AcquireForPosition(c.items[position])
	c.logger.Info("retrying slot", "position", position, "state", h.State)
	c.reconcile()
	c.tryStart()
}

// maybePage fetches the next page off the loop when the current position nears the end.
func (c *Controller) maybePage() {
	pager, ok := c.provider.(models.Pager)
	if !ok || c.paging || c.exhausted || c.cfg.PageSize <= 0 {
		return
	}
	if c.current < len(c.items)-c.cfg.PageThreshold {
		return
	}

	c.paging = true
	offset, limit, gen := len(c.items), c.cfg.PageSize, c.generation
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		items, err := pager.NextPage(ctx, offset, limit)
		c.loop.Post(func() {
			if gen != c.generation {
				return
			}
			c.paging = false
			switch {
			case err != nil:
				c.logger.Warn("next page failed", "offset", offset, "err", err)
			case len(items) == 0:
				c.exhausted = true
				c.logger.Debug("feed exhausted", "items", len(c.items))
			default:
				c.appendItems(items)
			}
		})
	}()
}

func (c *Controller) onScrollState(s models.ScrollState) {
	c.binder.SetScrollState(s)
	if s == models.ScrollIdle {
		c.tryStart()
	}
}

func (c *Controller) onEvent(ev models.Event) {
	switch ev.Kind {
	case models.EventPrepared:
		if ev.Position == c.current {
			c.tryStart()
		}
	case models.EventFailed:
		if ev.Err != nil {
			c.reportError(*ev.Err)
		}
		if ev.Position == c.current {
			c.tryStart()
		}
	case models.EventEnded:
		c.logger.Debug("ended", "position", ev.Position)
	}
}

func (c *Controller) onTransition(t slot.Transition) {
	c.history = append(c.history, t.Op())
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(t)
	}
}

// dropStaleBinding lets go of a surface still showing an earlier position once the
// current one cannot replace it, so the old decoder becomes evictable.
func (c *Controller) dropStaleBinding() {
	bound, ok := c.binder.Bound(c.surface)
	if !ok || bound == c.current {
		return
	}
	c.binder.Detach(c.surface)
	c.reconcile()
}

func (c *Controller) reportError(err models.SlotError) {
	c.logger.Warn("slot error", "position", err.Position, "kind", err.Kind, "err", err.Message)
	if c.hooks.OnSlotError != nil {
		c.hooks.OnSlotError(err)
	}
}
