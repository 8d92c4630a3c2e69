package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/reel/internal/feed"
	"github.com/desertthunder/reel/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTick MsgKind = iota
	MsgSnapshot
	MsgInteracted
)

type snapshotResult struct {
	snap feed.Snapshot
	err  error
}

type interactResult struct {
	kind     models.InteractionKind
	position int
	err      error
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(snap feed.Snapshot, err error) Msg {
	return Msg{kind: MsgSnapshot, data: snapshotResult{snap, err}}
}

// interactedMsg is the constructor for [MsgInteracted]
func interactedMsg(kind models.InteractionKind, position int, err error) Msg {
	return Msg{kind: MsgInteracted, data: interactResult{kind, position, err}}
}
