package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/reel/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	help    lipgloss.Style
	current lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:   NewBold(t).MarginBottom(1),
		ok:      NewBold(s),
		err:     NewBold(e),
		warn:    NewStyle(w),
		help:    NewEm(h),
		current: NewBold(t).Reverse(true),
	}
}

// state picks the style for a slot state.
func (p *Palette) state(s models.SlotState) lipgloss.Style {
	switch s {
	case models.Playing:
		return p.ok
	case models.Error:
		return p.err
	case models.Preparing:
		return p.warn
	case models.Unloaded:
		return p.help
	default:
		return lipgloss.NewStyle()
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
