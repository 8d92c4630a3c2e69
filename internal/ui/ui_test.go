package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/reel/internal/feed"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/pool"
	tu "github.com/desertthunder/reel/internal/testing"
)

type fakeController struct {
	snap        feed.Snapshot
	snapErr     error
	offsets     []float64
	states      []models.ScrollState
	interacted  []models.Interaction
	retried     []int
	resets      int
	visible     []bool
	backgrounds int
	interactErr error
}

func (c *fakeController) Snapshot(ctx context.Context) (feed.Snapshot, error) {
	return c.snap, c.snapErr
}

func (c *fakeController) ItemExtent() float64 { return 100 }

func (c *fakeController) Scrolled(offset float64) { c.offsets = append(c.offsets, offset) }

func (c *fakeController) ScrollStateChanged(s models.ScrollState) { c.states = append(c.states, s) }

func (c *fakeController) Interact(ctx context.Context, kind models.InteractionKind, position int) error {
	c.interacted = append(c.interacted, models.Interaction{Kind: kind, Position: position})
	return c.interactErr
}

func (c *fakeController) Retry(position int) { c.retried = append(c.retried, position) }

func (c *fakeController) ResetDegraded() { c.resets++ }

func (c *fakeController) SetVisible(visible bool) { c.visible = append(c.visible, visible) }

func (c *fakeController) Background() { c.backgrounds++ }

type fakeFaults struct {
	on map[int]bool
}

func (f *fakeFaults) ToggleFault(position int) bool {
	f.on[position] = !f.on[position]
	return f.on[position]
}

func sampleSnapshot() feed.Snapshot {
	return feed.Snapshot{
		Length:    5,
		Current:   1,
		CurrentID: "v1",
		Window:    "[0,2]",
		Scroll:    "idle",
		Attached:  1,
		Visible:   true,
		Live:      3,
		Capacity:  3,
		Slots: []pool.Handle{
			{Position: 0, State: models.Paused, DecoderID: "aaaaaaaa-1"},
			{Position: 1, State: models.Playing, DecoderID: "bbbbbbbb-2"},
			{Position: 2, State: models.Preparing, DecoderID: "cccccccc-3"},
		},
		Items: tu.Items(0, 5),
	}
}

func runeKey(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadedModel(ctrl *fakeController, faults FaultToggler) *Model {
	m := NewModel(context.Background(), ctrl, faults)
	m.Update(snapshotMsg(ctrl.snap, nil))
	return m
}

// exec runs a command and feeds its message back into the model.
func exec(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())
}

func TestModel(t *testing.T) {
	t.Run("LoadingThenStrip", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		m := NewModel(context.Background(), ctrl, nil)

		if !strings.Contains(m.View(), "loading feed") {
			t.Errorf("expected loading view, got %q", m.View())
		}

		m.Update(snapshotMsg(ctrl.snap, nil))
		view := m.View()
		for _, want := range []string{"reel 1/5", "decoders 3/3", "Playing", "Preparing", "surface", "v4"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
	})

	t.Run("SnapshotError", func(t *testing.T) {
		ctrl := &fakeController{}
		m := NewModel(context.Background(), ctrl, nil)
		m.Update(snapshotMsg(feed.Snapshot{}, errors.New("loop closed")))

		if !strings.Contains(m.View(), "loop closed") {
			t.Errorf("expected error in view, got %q", m.View())
		}
	})

	t.Run("DragAndRelease", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		m := loadedModel(ctrl, nil)

		m.Update(runeKey("j"))
		m.Update(runeKey("j"))
		m.Update(runeKey(" "))

		want := []models.ScrollState{models.ScrollDragging, models.ScrollIdle}
		if len(ctrl.states) != len(want) || ctrl.states[0] != want[0] || ctrl.states[1] != want[1] {
			t.Errorf("expected states %v, got %v", want, ctrl.states)
		}
		if len(ctrl.offsets) != 2 || ctrl.offsets[0] != 125 || ctrl.offsets[1] != 150 {
			t.Errorf("expected offsets [125 150], got %v", ctrl.offsets)
		}
	})

	t.Run("DragClampsToFeed", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		ctrl.snap.Current = 0
		m := loadedModel(ctrl, nil)

		m.Update(runeKey("k"))
		if ctrl.offsets[0] != 0 {
			t.Errorf("expected offset clamped to 0, got %v", ctrl.offsets[0])
		}
	})

	t.Run("ReleaseWithoutDrag", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		m := loadedModel(ctrl, nil)

		if _, cmd := m.Update(runeKey(" ")); cmd != nil {
			t.Error("expected no command")
		}
		if len(ctrl.states) != 0 {
			t.Errorf("expected no scroll state changes, got %v", ctrl.states)
		}
	})

	t.Run("Interactions", func(t *testing.T) {
		tests := []struct {
			key  string
			kind models.InteractionKind
		}{
			{"l", models.InteractionLike},
			{"c", models.InteractionComment},
			{"s", models.InteractionShare},
			{"p", models.InteractionProfile},
		}

		for _, tt := range tests {
			t.Run(string(tt.kind), func(t *testing.T) {
				ctrl := &fakeController{snap: sampleSnapshot()}
				m := loadedModel(ctrl, nil)

				_, cmd := m.Update(runeKey(tt.key))
				exec(t, m, cmd)

				if len(ctrl.interacted) != 1 || ctrl.interacted[0].Kind != tt.kind || ctrl.interacted[0].Position != 1 {
					t.Errorf("expected %s on 1, got %+v", tt.kind, ctrl.interacted)
				}
				if !strings.Contains(m.View(), string(tt.kind)+" on 1") {
					t.Errorf("expected status line for %s", tt.kind)
				}
			})
		}
	})

	t.Run("InteractionFailure", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot(), interactErr: errors.New("no such item")}
		m := loadedModel(ctrl, nil)

		_, cmd := m.Update(runeKey("l"))
		exec(t, m, cmd)
		if !strings.Contains(m.View(), "like failed") {
			t.Errorf("expected failure status, got:\n%s", m.View())
		}
	})

	t.Run("RetryResetVisibility", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		m := loadedModel(ctrl, nil)

		m.Update(runeKey("r"))
		m.Update(runeKey("R"))
		m.Update(runeKey("v"))
		m.Update(runeKey("v"))

		if len(ctrl.retried) != 1 || ctrl.retried[0] != 1 {
			t.Errorf("expected retry on 1, got %v", ctrl.retried)
		}
		if ctrl.resets != 1 {
			t.Errorf("expected 1 reset, got %d", ctrl.resets)
		}
		if len(ctrl.visible) != 2 || ctrl.visible[0] || !ctrl.visible[1] {
			t.Errorf("expected hide then show, got %v", ctrl.visible)
		}
	})

	t.Run("Fault", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		faults := &fakeFaults{on: make(map[int]bool)}
		m := loadedModel(ctrl, faults)

		m.Update(runeKey("f"))
		if !faults.on[2] {
			t.Error("expected fault on the next position")
		}
		if !strings.Contains(m.View(), "fault") {
			t.Errorf("expected fault marker in view:\n%s", m.View())
		}

		m.Update(runeKey("f"))
		if faults.on[2] {
			t.Error("expected fault cleared on second toggle")
		}
	})

	t.Run("FaultUnavailable", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		m := loadedModel(ctrl, nil)

		m.Update(runeKey("f"))
		if !strings.Contains(m.View(), "fault injection unavailable") {
			t.Errorf("expected unavailable status, got:\n%s", m.View())
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := loadedModel(&fakeController{snap: sampleSnapshot()}, nil)
		_, cmd := m.Update(runeKey("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("BackgroundAndResume", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		m := loadedModel(ctrl, nil)

		m.Update(runeKey("b"))
		if ctrl.backgrounds != 1 {
			t.Fatalf("expected one Background call, got %d", ctrl.backgrounds)
		}

		ctrl.snap.Visible = false
		ctrl.snap.Stopped = true
		m.Update(snapshotMsg(ctrl.snap, nil))
		if view := m.View(); !strings.Contains(view, "stopped") {
			t.Errorf("expected stopped marker:\n%s", view)
		}

		m.Update(runeKey("b"))
		if ctrl.backgrounds != 1 || len(ctrl.visible) != 1 || !ctrl.visible[0] {
			t.Errorf("expected resume through SetVisible(true), got %d %v", ctrl.backgrounds, ctrl.visible)
		}
	})

	t.Run("FailedSlotShowsPoster", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		ctrl.snap.Slots[2] = pool.Handle{
			Position:  2,
			ItemID:    "v2",
			State:     models.Error,
			PosterURI: "mem://v2.jpg",
			Err:       &models.SlotError{Position: 2, Kind: models.DecoderInitError, Message: "boom"},
		}
		m := loadedModel(ctrl, nil)

		view := m.View()
		if !strings.Contains(view, "poster mem://v2.jpg") || !strings.Contains(view, "DecoderInitError") {
			t.Errorf("expected poster for failed slot:\n%s", view)
		}
	})

	t.Run("DegradedAndHidden", func(t *testing.T) {
		ctrl := &fakeController{snap: sampleSnapshot()}
		ctrl.snap.Degraded = true
		ctrl.snap.Visible = false
		m := loadedModel(ctrl, nil)

		view := m.View()
		if !strings.Contains(view, "DEGRADED") || !strings.Contains(view, "hidden") {
			t.Errorf("expected degraded and hidden markers:\n%s", view)
		}
	})
}
