package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/reel/internal/feed"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

const (
	dragStep     = 0.25
	stripRadius  = 3
	refreshEvery = 100 * time.Millisecond
)

// Controller is the part of the feed controller the simulator drives.
type Controller interface {
	Snapshot(ctx context.Context) (feed.Snapshot, error)
	ItemExtent() float64
	Scrolled(offset float64)
	ScrollStateChanged(s models.ScrollState)
	Interact(ctx context.Context, kind models.InteractionKind, position int) error
	Retry(position int)
	ResetDegraded()
	SetVisible(visible bool)
	Background()
}

// FaultToggler flips a simulated decoder fault and reports the new setting.
type FaultToggler interface {
	ToggleFault(position int) bool
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	faults   FaultToggler
	snap     feed.Snapshot
	loaded   bool
	dragging bool
	drag     float64 // offset in items while dragging
	hidden   bool
	faulted  map[int]bool
	status   string
	err      error
	width    int
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model. faults may be nil.
func NewModel(ctx context.Context, ctrl Controller, faults FaultToggler) *Model {
	return &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		faults:  faults,
		faulted: make(map[int]bool),
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.warn)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init fetches the first snapshot and starts the refresh tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchSnapshot(), m.tick(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgTick:
			return m, tea.Batch(m.fetchSnapshot(), m.tick())
		case MsgSnapshot:
			res := msg.data.(snapshotResult)
			if res.err != nil {
				m.err = res.err
				return m, nil
			}
			m.snap, m.loaded, m.err = res.snap, true, nil
			return m, nil
		case MsgInteracted:
			res := msg.data.(interactResult)
			if res.err != nil {
				m.status = styles.err.Render(fmt.Sprintf("%s failed: %v", res.kind, res.err))
			} else {
				m.status = fmt.Sprintf("%s on %d", res.kind, res.position)
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.down):
		m.dragBy(dragStep)
	case key.Matches(msg, m.keys.up):
		m.dragBy(-dragStep)
	case key.Matches(msg, m.keys.release):
		if !m.dragging {
			return m, nil
		}
		m.dragging = false
		m.ctrl.ScrollStateChanged(models.ScrollIdle)
		m.status = fmt.Sprintf("released at %.2f", m.drag)
	case key.Matches(msg, m.keys.like):
		return m, m.interact(models.InteractionLike)
	case key.Matches(msg, m.keys.comment):
		return m, m.interact(models.InteractionComment)
	case key.Matches(msg, m.keys.share):
		return m, m.interact(models.InteractionShare)
	case key.Matches(msg, m.keys.profile):
		return m, m.interact(models.InteractionProfile)
	case key.Matches(msg, m.keys.retry):
		m.ctrl.Retry(m.snap.Current)
		m.status = fmt.Sprintf("retrying %d", m.snap.Current)
	case key.Matches(msg, m.keys.reset):
		m.ctrl.ResetDegraded()
		m.status = "degraded mode cleared"
	case key.Matches(msg, m.keys.fault):
		if m.faults == nil {
			m.status = "fault injection unavailable"
			return m, nil
		}
		next := m.snap.Current + 1
		m.faulted[next] = m.faults.ToggleFault(next)
		m.status = fmt.Sprintf("fault at %d: %t", next, m.faulted[next])
	case key.Matches(msg, m.keys.visible):
		m.hidden = !m.hidden
		m.ctrl.SetVisible(!m.hidden)
	case key.Matches(msg, m.keys.background):
		if m.snap.Stopped {
			m.hidden = false
			m.ctrl.SetVisible(true)
			m.status = "resumed"
		} else {
			m.hidden = true
			m.ctrl.Background()
			m.status = "backgrounded, decoders released"
		}
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	default:
		return m, nil
	}
	return m, m.fetchSnapshot()
}

// dragBy starts a drag at the current position if needed and moves it by delta items.
func (m *Model) dragBy(delta float64) {
	if m.snap.Length == 0 {
		return
	}
	if !m.dragging {
		m.dragging = true
		m.drag = float64(m.snap.Current)
		m.ctrl.ScrollStateChanged(models.ScrollDragging)
	}
	m.drag = min(max(m.drag+delta, 0), float64(m.snap.Length-1))
	m.ctrl.Scrolled(m.drag * m.ctrl.ItemExtent())
	m.status = fmt.Sprintf("dragging %.2f", m.drag)
}

func (m *Model) interact(kind models.InteractionKind) tea.Cmd {
	position := m.snap.Current
	return func() tea.Msg {
		return interactedMsg(kind, position, m.ctrl.Interact(m.ctx, kind, position))
	}
}

func (m *Model) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.ctrl.Snapshot(m.ctx)
		return snapshotMsg(snap, err)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg { return tickMsg() })
}

// View renders the strip of slots around the current position.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if !m.loaded {
		return fmt.Sprintf("%s loading feed...", m.spinner.View())
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(m.header()))
	b.WriteString("\n")

	if m.snap.Length == 0 {
		b.WriteString(styles.help.Render("feed is empty"))
	} else {
		lo := max(m.snap.Current-stripRadius, 0)
		hi := min(m.snap.Current+stripRadius, m.snap.Length-1)
		for position := lo; position <= hi; position++ {
			b.WriteString(m.row(position))
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) header() string {
	parts := []string{
		fmt.Sprintf("reel %d/%d", m.snap.Current, m.snap.Length),
		fmt.Sprintf("window %s", m.snap.Window),
		fmt.Sprintf("decoders %d/%d", m.snap.Live, m.snap.Capacity),
		m.snap.Scroll,
	}
	if m.dragging {
		parts = append(parts, fmt.Sprintf("@%.2f", m.drag))
	}
	if m.snap.Degraded {
		parts = append(parts, "DEGRADED")
	}
	switch {
	case m.snap.Stopped:
		parts = append(parts, "stopped")
	case !m.snap.Visible:
		parts = append(parts, "hidden")
	}
	return strings.Join(parts, " · ")
}

func (m *Model) row(position int) string {
	h, _ := m.snap.Slot(position)
	item, _ := m.snap.Item(position)

	state := h.State.String()
	if h.State == models.Preparing {
		state = m.spinner.View() + " " + state
	}

	var flags []string
	if position == m.snap.Attached {
		flags = append(flags, "surface")
	}
	if m.faulted[position] {
		flags = append(flags, "fault")
	}
	if h.Err != nil {
		flags = append(flags, h.Err.Kind.String())
	}
	if h.State == models.Error && h.PosterURI != "" {
		flags = append(flags, "poster "+h.PosterURI)
	}

	line := fmt.Sprintf("%3d  %-10s %-12s %-8s %s",
		position, item.ID, styles.state(h.State).Render(state), shared.ShortID(h.DecoderID), strings.Join(flags, ","))
	if position == m.snap.Current {
		return styles.current.Render(">") + line
	}
	return " " + line
}
