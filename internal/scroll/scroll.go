// Package scroll turns raw scroll offsets and scroll-state changes into settled
// position changes.
//
// Offsets are in the same unit as the item extent, so with an extent of one an
// offset of 2.4 is forty percent of the way from item 2 to item 3. Positions are
// only dispatched when the container goes idle; flings across several items while
// dragging or settling emit nothing.
package scroll

import (
	"math"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Coordinator debounces scrolling into settled positions. Not safe for concurrent use.
type Coordinator struct {
	extent     float64
	length     int
	offset     float64
	state      models.ScrollState
	dispatched int
	logger     *log.Logger

	onState    func(models.ScrollState)
	onPosition func(int)
}

// New creates a coordinator for items of the given extent. A non-positive extent is treated as one.
func New(itemExtent float64, logger *log.Logger) *Coordinator {
	if itemExtent <= 0 {
		itemExtent = 1
	}
	return &Coordinator{
		extent: itemExtent,
		state:  models.ScrollIdle,
		logger: shared.WithLogger(logger, "component", "scroll"),
	}
}

// OnScrollStateChanged registers the handler for scroll state changes.
func (c *Coordinator) OnScrollStateChanged(fn func(models.ScrollState)) { c.onState = fn }

// OnPositionChanged registers the handler for settled position changes.
func (c *Coordinator) OnPositionChanged(fn func(int)) { c.onPosition = fn }

// Scrolled records the transient offset reported during a drag.
func (c *Coordinator) Scrolled(offset float64) {
	c.offset = offset
}

// StateChanged records the new scroll state. On a transition to idle the offset is
// snapped to the nearest item, and PositionChanged fires once if it differs from the
// last dispatched position. The state handler always runs before the position handler.
func (c *Coordinator) StateChanged(s models.ScrollState) {
	if s == c.state && s != models.ScrollIdle {
		return
	}
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
	if s != models.ScrollIdle {
		return
	}

	position := c.Snap()
	if position < 0 || position == c.dispatched {
		return
	}
	c.dispatched = position
	c.offset = float64(position) * c.extent
	c.logger.Debug("position settled", "position", position)
	if c.onPosition != nil {
		c.onPosition(position)
	}
}

// Snap maps the current offset to round(offset/extent) clamped to the feed, or -1
// for an empty feed.
func (c *Coordinator) Snap() int {
	if c.length <= 0 {
		return -1
	}
	p := int(math.Round(c.offset / c.extent))
	return min(max(p, 0), c.length-1)
}

// SetLength updates the feed length used for clamping.
func (c *Coordinator) SetLength(n int) {
	c.length = max(n, 0)
}

// Reset returns to position zero, idle, for a replaced feed.
func (c *Coordinator) Reset() {
	c.offset = 0
	c.dispatched = 0
	c.state = models.ScrollIdle
}

// Position returns the last dispatched position.
func (c *Coordinator) Position() int { return c.dispatched }

// Offset returns the last recorded offset.
func (c *Coordinator) Offset() float64 { return c.offset }

// State returns the last reported scroll state.
func (c *Coordinator) State() models.ScrollState { return c.state }

// Extent returns the item extent.
func (c *Coordinator) Extent() float64 { return c.extent }
