package feed

import (
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/pool"
)

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Length    int               `json:"length"`
	Current   int               `json:"current"`
	CurrentID string            `json:"current_id,omitempty"`
	Window    string            `json:"window"`
	Scroll    string            `json:"scroll"`
	Offset    float64           `json:"offset"`
	Attached  int               `json:"attached"`
	Visible   bool              `json:"visible"`
	Stopped   bool              `json:"stopped"`
	Degraded  bool              `json:"degraded"`
	Live      int               `json:"live"`
	Capacity  int               `json:"capacity"`
	Slots     []pool.Handle     `json:"slots"`
	Items     []models.FeedItem `json:"items,omitempty"`
	History   []string          `json:"history,omitempty"`
}

// Slot returns the handle for position and whether it is tracked.
func (s Snapshot) Slot(position int) (pool.Handle, bool) {
	for _, h := range s.Slots {
		if h.Position == position {
			return h, true
		}
	}
	return pool.Handle{Position: position, State: models.Unloaded}, false
}

// LivePositions lists positions that currently hold a decoder.
func (s Snapshot) LivePositions() []int {
	var out []int
	for _, h := range s.Slots {
		if h.DecoderID != "" {
			out = append(out, h.Position)
		}
	}
	return out
}

// Playing returns the playing position, or -1.
func (s Snapshot) Playing() int {
	for _, h := range s.Slots {
		if h.State == models.Playing {
			return h.Position
		}
	}
	return -1
}

// Item returns the feed item at position.
func (s Snapshot) Item(position int) (models.FeedItem, bool) {
	if position < 0 || position >= len(s.Items) {
		return models.FeedItem{}, false
	}
	return s.Items[position], true
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		Length:   len(c.items),
		Current:  c.current,
		Window:   models.Window{Current: c.current, Radius: c.cfg.Radius}.String(),
		Scroll:   c.coord.State().String(),
		Offset:   c.coord.Offset(),
		Attached: -1,
		Visible:  c.visible,
		Stopped:  c.stopped,
		Degraded: c.pool.Degraded(),
		Live:     c.pool.Live(),
		Capacity: c.pool.Capacity(),
		Slots:    c.pool.Handles(),
		Items:    append([]models.FeedItem(nil), c.items...),
		History:  append([]string(nil), c.history...),
	}
	if c.current >= 0 && c.current < len(c.items) {
		snap.CurrentID = c.items[c.current].ID
	}
	if position, ok := c.binder.Bound(c.surface); ok {
		snap.Attached = position
	}
	return snap
}
