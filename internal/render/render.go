// Package render binds decoders to the visible render surface.
//
// The binder only borrows decoders. It never plays, pauses or releases them; while a
// decoder is bound its position is protected from eviction.
package render

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Protector exempts positions from eviction. The player pool implements it.
type Protector interface {
	Protect(position int)
	Unprotect(position int)
}

type binding struct {
	surface  models.Surface
	position int
	decoder  models.Decoder
}

// Binder tracks which decoder is attached to each surface. Not safe for concurrent use.
type Binder struct {
	bindings  map[string]binding
	scroll    models.ScrollState
	protector Protector
	logger    *log.Logger
}

func NewBinder(protector Protector, logger *log.Logger) *Binder {
	return &Binder{
		bindings:  make(map[string]binding),
		scroll:    models.ScrollIdle,
		protector: protector,
		logger:    shared.WithLogger(logger, "component", "render"),
	}
}

// SetScrollState records the last reported scroll state. Attachments are only
// made while it is Idle.
func (b *Binder) SetScrollState(s models.ScrollState) {
	b.scroll = s
}

// Attach binds d, serving position, to surface. A different decoder already bound to
// the surface is detached first. Attach refuses with [shared.ErrScrollActive] unless
// scrolling is idle; a failing surface yields an AttachError [models.SlotError].
func (b *Binder) Attach(surface models.Surface, position int, d models.Decoder) error {
	if d == nil {
		return fmt.Errorf("%w: no decoder for position %d", shared.ErrInvalidState, position)
	}
	if b.scroll != models.ScrollIdle {
		return fmt.Errorf("%w: %s", shared.ErrScrollActive, b.scroll)
	}

	if current, ok := b.bindings[surface.ID()]; ok {
		if current.decoder == d {
			return nil
		}
		b.detach(current)
	}

	if err := surface.Bind(d); err != nil {
		b.logger.Warn("attach failed", "surface", surface.ID(), "position", position, "err", err)
		return models.NewSlotError(position, fmt.Errorf("%w: %v", shared.ErrSurfaceUnavailable, err), models.AttachError)
	}

	b.bindings[surface.ID()] = binding{surface: surface, position: position, decoder: d}
	if b.protector != nil {
		b.protector.Protect(position)
	}
	b.logger.Debug("attached", "surface", surface.ID(), "position", position, "decoder", shared.ShortID(d.ID()))
	return nil
}

// Detach unbinds whatever is attached to surface without releasing it.
func (b *Binder) Detach(surface models.Surface) {
	if current, ok := b.bindings[surface.ID()]; ok {
		b.detach(current)
	}
}

// DetachDecoder unbinds d from any surface holding it and reports whether it was bound.
func (b *Binder) DetachDecoder(d models.Decoder) bool {
	for _, current := range b.bindings {
		if current.decoder == d {
			b.detach(current)
			return true
		}
	}
	return false
}

// Bound returns the position attached to surface.
func (b *Binder) Bound(surface models.Surface) (int, bool) {
	current, ok := b.bindings[surface.ID()]
	return current.position, ok
}

// BoundDecoder returns the decoder attached to surface, or nil.
func (b *Binder) BoundDecoder(surface models.Surface) models.Decoder {
	return b.bindings[surface.ID()].decoder
}

func (b *Binder) detach(current binding) {
	current.surface.Unbind(current.decoder)
	delete(b.bindings, current.surface.ID())
	if b.protector != nil {
		b.protector.Unprotect(current.position)
	}
	b.logger.Debug("detached", "surface", current.surface.ID(), "position", current.position)
}
