package models

import "time"

// EventKind enumerates notifications emitted by the player pool.
type EventKind int

const (
	EventPrepared EventKind = iota
	EventFailed
	EventEnded
	EventReleased
)

func (k EventKind) String() string {
	switch k {
	case EventPrepared:
		return "prepared"
	case EventFailed:
		return "failed"
	case EventEnded:
		return "ended"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event is a (position, event) pair delivered to the pool's single subscriber.
type Event struct {
	Position int
	Kind     EventKind
	Err      *SlotError
}

// ScrollState is the state of the scrolling container as reported by the host.
type ScrollState int

const (
	ScrollIdle ScrollState = iota
	ScrollDragging
	ScrollSettling
)

func (s ScrollState) String() string {
	switch s {
	case ScrollIdle:
		return "idle"
	case ScrollDragging:
		return "dragging"
	case ScrollSettling:
		return "settling"
	default:
		return "unknown"
	}
}

// ParseScrollState parses the lowercase names produced by [ScrollState.String].
func ParseScrollState(s string) (ScrollState, bool) {
	switch s {
	case "idle":
		return ScrollIdle, true
	case "dragging":
		return ScrollDragging, true
	case "settling":
		return ScrollSettling, true
	default:
		return ScrollIdle, false
	}
}

// InteractionKind enumerates user interactions forwarded to collaborators.
type InteractionKind string

const (
	InteractionLike    InteractionKind = "like"
	InteractionComment InteractionKind = "comment"
	InteractionShare   InteractionKind = "share"
	InteractionProfile InteractionKind = "profile"
)

// Valid reports whether k is a known interaction.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionLike, InteractionComment, InteractionShare, InteractionProfile:
		return true
	default:
		return false
	}
}

// Interaction is a like/comment/share/profile event keyed by (position, id).
type Interaction struct {
	Kind     InteractionKind `json:"kind"`
	Position int             `json:"position"`
	ItemID   string          `json:"item_id"`
	At       time.Time       `json:"at"`
}

// ViewCount aggregates the view pings recorded for one feed item.
type ViewCount struct {
	ItemID       string    `json:"item_id"`
	Views        int       `json:"views"`
	LastViewedAt time.Time `json:"last_viewed_at"`
}
