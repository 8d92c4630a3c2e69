// Package slot implements the playback slot state machine.
//
//	Unloaded → Preparing → Ready → {Playing ⇄ Paused} → Ended
//	any → Error → Unloaded (after release)
//	Ended → Playing (seek to start) when looping
//
// The [Machine] is the only place that issues play, pause and seek calls to a
// decoder, so the single-active invariant is enforced in one place. It is not
// safe for concurrent use; callers run it on the control loop.
package slot

import (
	"fmt"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Slot is the logical playback unit bound to one feed position.
type Slot struct {
	Position  int
	ItemID    string
	MediaURI  string
	PosterURI string
	State     models.SlotState
	Decoder   models.Decoder
	LastError *models.SlotError
}

// New returns an Unloaded slot for item.
func New(position int, itemID, mediaURI string) *Slot {
	return &Slot{Position: position, ItemID: itemID, MediaURI: mediaURI, State: models.Unloaded}
}

// DecoderID returns the id of the backing decoder, or "" when none is attached.
func (s *Slot) DecoderID() string {
	if s.Decoder == nil {
		return ""
	}
	return s.Decoder.ID()
}

func (s *Slot) String() string {
	return fmt.Sprintf("slot(%d %s)", s.Position, s.State)
}

// Transition is one state change reported to observers.
type Transition struct {
	Position int
	From     models.SlotState
	To       models.SlotState
}

// Op names the transition the way the playback log prints it, e.g. Pause(0) or Play(1).
func (t Transition) Op() string {
	switch t.To {
	case models.Playing:
		return fmt.Sprintf("Play(%d)", t.Position)
	case models.Paused:
		return fmt.Sprintf("Pause(%d)", t.Position)
	case models.Preparing:
		return fmt.Sprintf("Prepare(%d)", t.Position)
	case models.Ready:
		return fmt.Sprintf("Ready(%d)", t.Position)
	case models.Ended:
		return fmt.Sprintf("End(%d)", t.Position)
	case models.Error:
		return fmt.Sprintf("Fail(%d)", t.Position)
	case models.Unloaded:
		return fmt.Sprintf("Unload(%d)", t.Position)
	default:
		return fmt.Sprintf("?(%d)", t.Position)
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("%d: %s -> %s", t.Position, t.From, t.To)
}

// allowed lists the legal targets of each state, Error and Unloaded excluded:
// Error is reachable from anywhere and Unloaded is reached only through [Machine.Unload].
var allowed = map[models.SlotState][]models.SlotState{
	models.Unloaded:  {models.Preparing},
	models.Preparing: {models.Ready},
	models.Ready:     {models.Playing},
	models.Playing:   {models.Paused, models.Ended},
	models.Paused:    {models.Playing},
	models.Ended:     {models.Playing, models.Paused},
	models.Error:     {},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to models.SlotState) bool {
	if to == models.Error {
		return true
	}
	if to == models.Unloaded {
		return from != models.Unloaded
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func invalid(s *Slot, to models.SlotState) error {
	return fmt.Errorf("%w: %d %s -> %s", shared.ErrInvalidState, s.Position, s.State, to)
}
