package slot

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Observer receives every transition, synchronously and in order.
type Observer func(Transition)

// Machine drives slot transitions and owns the single-active invariant:
// at most one slot is Playing at any instant.
type Machine struct {
	playing   *Slot
	loopOnEnd bool
	observers []Observer
	logger    *log.Logger
}

// NewMachine creates a state machine. When loopOnEnd is set an Ended slot seeks to
// the start and plays again instead of staying Ended.
func NewMachine(loopOnEnd bool, logger *log.Logger) *Machine {
	return &Machine{
		loopOnEnd: loopOnEnd,
		logger:    shared.WithLogger(logger, "component", "slot"),
	}
}

// Observe registers an observer for all subsequent transitions.
func (m *Machine) Observe(o Observer) {
	m.observers = append(m.observers, o)
}

// Playing returns the slot currently in Playing, or nil.
func (m *Machine) Playing() *Slot {
	return m.playing
}

// LoopOnEnd reports whether ended slots restart.
func (m *Machine) LoopOnEnd() bool {
	return m.loopOnEnd
}

// Prepare moves an Unloaded slot to Preparing.
func (m *Machine) Prepare(s *Slot) error {
	if s.State != models.Unloaded {
		return invalid(s, models.Preparing)
	}
	s.LastError = nil
	m.set(s, models.Preparing)
	return nil
}

// Ready moves a Preparing slot to Ready.
func (m *Machine) Ready(s *Slot) error {
	if s.State != models.Preparing {
		return invalid(s, models.Ready)
	}
	m.set(s, models.Ready)
	return nil
}

// Play makes s the playing slot.
//
// Any other Playing slot is paused first; only then does s start. A slot that is
// already Playing is left alone. Ended slots are rewound before playing.
func (m *Machine) Play(s *Slot) error {
	if s.State == models.Playing {
		return nil
	}
	if !CanTransition(s.State, models.Playing) || s.Decoder == nil {
		return invalid(s, models.Playing)
	}

	if prev := m.playing; prev != nil && prev != s {
		m.pause(prev)
	}

	if s.State == models.Ended {
		if err := s.Decoder.SeekToStart(); err != nil {
			m.Fail(s, models.NewSlotError(s.Position, err, models.DecoderInitError))
			return err
		}
	}

	if err := s.Decoder.Play(); err != nil {
		m.Fail(s, models.NewSlotError(s.Position, err, models.DecoderInitError))
		return err
	}

	m.set(s, models.Playing)
	m.playing = s
	return nil
}

// Pause pauses s if it is Playing and parks an Ended slot as Paused.
// Pausing a slot in any other state is a no-op.
func (m *Machine) Pause(s *Slot) {
	switch s.State {
	case models.Playing:
		m.pause(s)
	case models.Ended:
		m.set(s, models.Paused)
	}
}

// PauseActive pauses whichever slot is playing and returns it, or nil.
func (m *Machine) PauseActive() *Slot {
	s := m.playing
	if s != nil {
		m.pause(s)
	}
	return s
}

// End records that s reached the end of its media. With looping enabled the slot
// immediately seeks to the start and plays again.
func (m *Machine) End(s *Slot) error {
	if s.State != models.Playing {
		return invalid(s, models.Ended)
	}
	m.set(s, models.Ended)
	if m.playing == s {
		m.playing = nil
	}

	if m.loopOnEnd {
		return m.Play(s)
	}
	return nil
}

// Fail moves s to Error and records err. The decoder is left for the pool to release.
func (m *Machine) Fail(s *Slot, err *models.SlotError) {
	s.LastError = err
	if m.playing == s {
		m.playing = nil
	}
	if s.State != models.Error {
		m.set(s, models.Error)
	}
	m.logger.Warn("slot failed", "position", s.Position, "kind", err.Kind, "err", err.Message)
}

// Unload returns s to Unloaded and drops its decoder reference. The caller must
// already have released the decoder.
func (m *Machine) Unload(s *Slot) {
	if m.playing == s {
		m.playing = nil
	}
	s.Decoder = nil
	if s.State != models.Unloaded {
		m.set(s, models.Unloaded)
	}
}

func (m *Machine) pause(s *Slot) {
	if m.playing == s {
		m.playing = nil
	}
	if err := s.Decoder.Pause(); err != nil {
		m.Fail(s, models.NewSlotError(s.Position, err, models.DecoderInitError))
		return
	}
	m.set(s, models.Paused)
}

func (m *Machine) set(s *Slot, to models.SlotState) {
	t := Transition{Position: s.Position, From: s.State, To: to}
	s.State = to
	m.logger.Debug(t.Op(), "from", t.From, "to", t.To)
	for _, o := range m.observers {
		o(t)
	}
}
