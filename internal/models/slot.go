package models

import (
	"errors"
	"fmt"

	"github.com/desertthunder/reel/internal/shared"
)

// SlotState is the lifecycle state of one feed position.
type SlotState int

const (
	Unloaded SlotState = iota
	Preparing
	Ready
	Playing
	Paused
	Ended
	Error
)

func (s SlotState) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Preparing:
		return "Preparing"
	case Ready:
		return "Ready"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Ended:
		return "Ended"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

func (s SlotState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SlotState) UnmarshalText(text []byte) error {
	for c := Unloaded; c <= Error; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown slot state %q", text)
}

// Live reports whether a decoder is expected to back a slot in this state.
func (s SlotState) Live() bool {
	switch s {
	case Preparing, Ready, Playing, Paused, Ended:
		return true
	default:
		return false
	}
}

// ErrorKind classifies slot failures.
type ErrorKind int

const (
	MediaSourceError ErrorKind = iota + 1 // unreachable or invalid URI
	DecoderInitError                      // resource exhaustion, unsupported codec
	AttachError                           // surface unavailable at attach time
)

func (k ErrorKind) String() string {
	switch k {
	case MediaSourceError:
		return "MediaSourceError"
	case DecoderInitError:
		return "DecoderInitError"
	case AttachError:
		return "AttachError"
	default:
		return "UnknownError"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ErrorKind) UnmarshalText(text []byte) error {
	for c := MediaSourceError; c <= AttachError; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

func (k ErrorKind) sentinel() error {
	switch k {
	case MediaSourceError:
		return shared.ErrMediaSource
	case DecoderInitError:
		return shared.ErrDecoderInit
	case AttachError:
		return shared.ErrSurfaceUnavailable
	default:
		return nil
	}
}

// SlotError is the (position, kind, message) triple reported for a failed slot.
type SlotError struct {
	Position int       `json:"position"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %d: %s: %s", e.Position, e.Kind, e.Message)
}

// Unwrap exposes the sentinel for the error kind so callers can use errors.Is.
func (e *SlotError) Unwrap() error {
	return e.Kind.sentinel()
}

// Classify maps err onto an [ErrorKind], falling back to fallback when err carries no known sentinel.
func Classify(err error, fallback ErrorKind) ErrorKind {
	var slotErr *SlotError
	switch {
	case errors.As(err, &slotErr):
		return slotErr.Kind
	case errors.Is(err, shared.ErrMediaSource):
		return MediaSourceError
	case errors.Is(err, shared.ErrDecoderInit):
		return DecoderInitError
	case errors.Is(err, shared.ErrSurfaceUnavailable):
		return AttachError
	default:
		return fallback
	}
}

// NewSlotError builds a [SlotError] for position from err.
func NewSlotError(position int, err error, fallback ErrorKind) *SlotError {
	return &SlotError{Position: position, Kind: Classify(err, fallback), Message: err.Error()}
}
