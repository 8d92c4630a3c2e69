package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the simulator.
type keyMap struct {
	down       key.Binding
	up         key.Binding
	release    key.Binding
	like       key.Binding
	comment    key.Binding
	share      key.Binding
	profile    key.Binding
	retry      key.Binding
	reset      key.Binding
	fault      key.Binding
	visible    key.Binding
	background key.Binding
	help       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "drag forward")),
		up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "drag back")),
		release:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "release")),
		like:       key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		comment:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
		share:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "share")),
		profile:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "profile")),
		retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		reset:      key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset degraded")),
		fault:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fault next")),
		visible:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "hide/show")),
		background: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "background/resume")),
		help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.down, k.up, k.release, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.down, k.up, k.release},
		{k.like, k.comment, k.share, k.profile},
		{k.retry, k.reset, k.fault, k.visible, k.background},
		{k.help, k.quit},
	}
}
