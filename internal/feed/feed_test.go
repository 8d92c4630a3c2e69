package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
	tu "github.com/desertthunder/reel/internal/testing"
)

type harness struct {
	ctrl     *Controller
	factory  *tu.FakeFactory
	surface  *tu.FakeSurface
	provider *tu.StaticProvider
	settled  []int
	errs     []models.SlotError
	actions  []models.Interaction
}

func newHarness(t *testing.T, n int, cfg Config) *harness {
	t.Helper()
	h := &harness{factory: tu.NewFakeFactory(), provider: tu.NewStaticProvider(n)}
	h.surface = tu.NewFakeSurface(h.factory.Journal)
	hooks := Hooks{
		OnPositionSettled: func(position int, _ string) { h.settled = append(h.settled, position) },
		OnSlotError:       func(err models.SlotError) { h.errs = append(h.errs, err) },
		OnInteraction:     func(ev models.Interaction) { h.actions = append(h.actions, ev) },
	}
	h.ctrl = New(cfg, h.provider, h.factory, h.surface, hooks, nil)
	h.ctrl.Start(context.Background())
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	h.flush(t)
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func (h *harness) settle(t *testing.T, position int) Snapshot {
	t.Helper()
	h.ctrl.SettleAt(position)
	h.flush(t)
	return h.snapshot(t)
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.ctrl.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}

func expectLive(t *testing.T, snap Snapshot, want ...int) {
	t.Helper()
	if got := snap.LivePositions(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected live positions %v, got %v", want, got)
	}
}

func expectState(t *testing.T, snap Snapshot, position int, want models.SlotState) {
	t.Helper()
	h, _ := snap.Slot(position)
	if h.State != want {
		t.Errorf("expected slot %d %s, got %s", position, want, h.State)
	}
}

func TestScenarios(t *testing.T) {
	t.Run("cold start", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.load(t)

		snap := h.snapshot(t)
		expectLive(t, snap, 0, 1)
		expectState(t, snap, 0, models.Playing)
		expectState(t, snap, 1, models.Ready)
		if snap.Attached != 0 {
			t.Errorf("expected 0 attached, got %d", snap.Attached)
		}
	})

	t.Run("settle forward pauses before playing", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.load(t)

		snap := h.settle(t, 1)

		pause, play := slices.Index(snap.History, "Pause(0)"), slices.Index(snap.History, "Play(1)")
		if pause < 0 || play < 0 || pause > play {
			t.Errorf("expected Pause(0) before Play(1), history %v", snap.History)
		}
		if p, q := h.factory.Journal.Index("pause:0"), h.factory.Journal.Index("play:1"); p > q {
			t.Errorf("decoder pause:0 at %d after play:1 at %d", p, q)
		}
		expectLive(t, snap, 0, 1, 2)
		expectState(t, snap, 1, models.Playing)
		expectState(t, snap, 0, models.Paused)
	})

	t.Run("eviction", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.load(t)
		h.settle(t, 1)

		snap := h.settle(t, 2)
		expectLive(t, snap, 1, 2)
		if d := h.factory.Decoder(0); d == nil || !d.Released() {
			t.Error("expected decoder 0 released")
		}
		expectState(t, snap, 2, models.Playing)
	})

	t.Run("decoder failure and recovery", func(t *testing.T) {
		h := newHarness(t, 8, DefaultConfig())
		h.factory.FailCreate(3)
		h.load(t)
		h.settle(t, 1)

		snap := h.settle(t, 2)
		expectState(t, snap, 3, models.Error)
		if !snap.Degraded {
			t.Error("expected degraded mode after the first init failure")
		}
		if len(h.errs) != 1 || h.errs[0].Kind != models.DecoderInitError || h.errs[0].Position != 3 {
			t.Fatalf("expected one DecoderInitError for 3, got %v", h.errs)
		}

		snap = h.settle(t, 3)
		if snap.Playing() != -1 {
			t.Errorf("nothing should play on a failed slot, got %d", snap.Playing())
		}

		snap = h.settle(t, 4)
		expectState(t, snap, 4, models.Playing)

		h.factory.ClearCreate(3)
		h.ctrl.Retry(3)
		h.flush(t)

		snap = h.snapshot(t)
		expectState(t, snap, 3, models.Ready)
		expectState(t, snap, 4, models.Playing)
	})

	t.Run("debounce during fling", func(t *testing.T) {
		h := newHarness(t, 10, DefaultConfig())
		h.load(t)
		h.settled = nil

		h.ctrl.ScrollStateChanged(models.ScrollDragging)
		for _, offset := range []float64{1, 2, 3} {
			h.ctrl.Scrolled(offset)
		}
		h.ctrl.ScrollStateChanged(models.ScrollSettling)
		h.flush(t)
		if len(h.settled) != 0 {
			t.Fatalf("expected no settles during fling, got %v", h.settled)
		}

		h.ctrl.Scrolled(4)
		h.ctrl.ScrollStateChanged(models.ScrollIdle)
		h.flush(t)

		if fmt.Sprint(h.settled) != "[4]" {
			t.Errorf("expected exactly one settle at 4, got %v", h.settled)
		}
		expectState(t, h.snapshot(t), 4, models.Playing)
	})
}

func TestInvariants(t *testing.T) {
	h := newHarness(t, 20, DefaultConfig())
	h.load(t)

	for _, position := range []int{1, 2, 5, 4, 4, 12, 11, 19, 0, 3, 2, 1, 18} {
		snap := h.settle(t, position)

		if snap.Live > snap.Capacity {
			t.Fatalf("live %d exceeds capacity %d at %d", snap.Live, snap.Capacity, position)
		}
		playing := 0
		for _, s := range snap.Slots {
			if s.State == models.Playing {
				playing++
			}
		}
		if playing > 1 {
			t.Fatalf("%d slots playing at %d", playing, position)
		}
		if snap.Playing() != position {
			t.Errorf("expected %d playing, got %d", position, snap.Playing())
		}
	}

	if h.factory.MaxLive() > DefaultConfig().Pool.Capacity {
		t.Errorf("factory peaked at %d live decoders", h.factory.MaxLive())
	}
	if h.surface.Violations() != 0 {
		t.Errorf("surface saw %d overlapping binds", h.surface.Violations())
	}
}

func TestController(t *testing.T) {
	t.Run("replace releases everything", func(t *testing.T) {
		h := newHarness(t, 5, DefaultConfig())
		h.load(t)
		h.settle(t, 2)

		if err := h.ctrl.Replace(context.Background(), tu.Items(100, 2)); err != nil {
			t.Fatalf("Replace() error = %v", err)
		}
		h.flush(t)

		snap := h.snapshot(t)
		if snap.Length != 2 || snap.Current != 0 || snap.CurrentID != "v100" {
			t.Errorf("unexpected feed after replace: %+v", snap)
		}
		expectLive(t, snap, 0, 1)
		if h.factory.Live() != 2 {
			t.Errorf("expected only the new decoders alive, got %d", h.factory.Live())
		}
	})

	t.Run("replace rejects invalid items", func(t *testing.T) {
		h := newHarness(t, 1, DefaultConfig())
		err := h.ctrl.Replace(context.Background(), []models.FeedItem{{ID: "x"}})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("load failure", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.provider.Err = errors.New("connection refused")

		if err := h.ctrl.Load(context.Background()); !errors.Is(err, shared.ErrFeedUnavailable) {
			t.Errorf("expected ErrFeedUnavailable, got %v", err)
		}
	})

	t.Run("empty feed", func(t *testing.T) {
		h := newHarness(t, 0, DefaultConfig())
		h.load(t)

		snap := h.snapshot(t)
		if snap.Current != -1 || snap.Live != 0 {
			t.Errorf("expected nothing current, got %+v", snap)
		}
		h.settle(t, 3)
		if len(h.settled) != 0 {
			t.Errorf("expected no settles on an empty feed, got %v", h.settled)
		}
	})

	t.Run("hidden host pauses and resumes", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.load(t)

		h.ctrl.SetVisible(false)
		h.flush(t)
		expectState(t, h.snapshot(t), 0, models.Paused)

		h.settle(t, 1)
		if snap := h.snapshot(t); snap.Playing() != -1 {
			t.Errorf("nothing should play while hidden, got %d", snap.Playing())
		}

		h.ctrl.SetVisible(true)
		h.flush(t)
		expectState(t, h.snapshot(t), 1, models.Playing)
	})

	t.Run("attach failure is reported and retried on idle", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.surface.BindErr = errors.New("surface destroyed")
		h.load(t)

		if len(h.errs) == 0 || h.errs[0].Kind != models.AttachError {
			t.Fatalf("expected an AttachError, got %v", h.errs)
		}
		if snap := h.snapshot(t); snap.Playing() != -1 {
			t.Error("nothing should play without a surface")
		}

		h.surface.BindErr = nil
		h.ctrl.ScrollStateChanged(models.ScrollIdle)
		h.flush(t)
		expectState(t, h.snapshot(t), 0, models.Playing)
	})

	t.Run("reset degraded prefetches again", func(t *testing.T) {
		h := newHarness(t, 5, DefaultConfig())
		h.factory.FailCreate(1)
		h.load(t)

		snap := h.settle(t, 2)
		if !snap.Degraded {
			t.Fatal("expected degraded")
		}
		if _, ok := snap.Slot(3); ok {
			t.Error("prefetch should be refused while degraded")
		}

		h.ctrl.ResetDegraded()
		h.flush(t)
		snap = h.snapshot(t)
		if snap.Degraded {
			t.Error("expected degraded cleared")
		}
		expectState(t, snap, 3, models.Ready)
	})

	t.Run("interactions are forwarded", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.load(t)

		if err := h.ctrl.Interact(context.Background(), models.InteractionLike, 0); err != nil {
			t.Fatalf("Interact() error = %v", err)
		}
		if len(h.actions) != 1 || h.actions[0].ItemID != "v0" || h.actions[0].Kind != models.InteractionLike {
			t.Errorf("unexpected interactions %v", h.actions)
		}

		if err := h.ctrl.Interact(context.Background(), "dance", 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := h.ctrl.Interact(context.Background(), models.InteractionShare, 9); !errors.Is(err, shared.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition, got %v", err)
		}
	})

	t.Run("pages near the end", func(t *testing.T) {
		h := newHarness(t, 6, DefaultConfig())
		h.provider.More = tu.Items(6, 10)
		h.load(t)
		h.settle(t, 1)

		var snap Snapshot
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			h.flush(t)
			if snap = h.snapshot(t); snap.Length == 16 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		if snap.Length != 16 {
			t.Fatalf("expected 16 items after paging, got %d", snap.Length)
		}
		if item, _ := snap.Item(15); item.ID != "v15" || item.Position != 15 {
			t.Errorf("unexpected last item %+v", item)
		}
		if h.provider.PageCount() != 1 {
			t.Errorf("expected one page request, got %d", h.provider.PageCount())
		}
	})

	t.Run("jump keeps the old decoder attached until the new one is ready", func(t *testing.T) {
		h := newHarness(t, 10, DefaultConfig())
		h.factory.AutoPrepare = false
		h.load(t)
		h.factory.CompletePrepare()
		h.flush(t)
		first := h.factory.Decoder(0)

		snap := h.settle(t, 5)
		if snap.Attached != 0 || h.surface.Bound() != first {
			t.Fatalf("expected 0 to stay on the surface while 5 prepares, attached %d", snap.Attached)
		}
		if first.Released() {
			t.Fatal("attached decoder was evicted before a replacement was ready")
		}
		expectState(t, snap, 0, models.Paused)
		expectLive(t, snap, 0, 4, 5)

		h.factory.CompletePrepare()
		h.flush(t)

		snap = h.snapshot(t)
		if snap.Attached != 5 || snap.Playing() != 5 {
			t.Errorf("expected 5 attached and playing, got attached %d playing %d", snap.Attached, snap.Playing())
		}
		if !first.Released() {
			t.Error("expected decoder 0 released once 5 replaced it")
		}
		expectLive(t, snap, 4, 5, 6)
		if h.surface.Violations() != 0 {
			t.Errorf("surface saw %d overlapping binds", h.surface.Violations())
		}
	})

	t.Run("failed current slot lets go of the old surface binding", func(t *testing.T) {
		h := newHarness(t, 10, DefaultConfig())
		h.factory.FailCreate(5)
		h.load(t)

		snap := h.settle(t, 5)
		if snap.Attached != -1 {
			t.Errorf("expected surface detached, got %d", snap.Attached)
		}
		if d := h.factory.Decoder(0); !d.Released() {
			t.Error("expected decoder 0 released")
		}
		expectState(t, snap, 5, models.Error)
	})

	t.Run("loop on end", func(t *testing.T) {
		tests := []struct {
			name      string
			loopOnEnd bool
			want      models.SlotState
		}{
			{name: "restarts", loopOnEnd: true, want: models.Playing},
			{name: "stays ended", loopOnEnd: false, want: models.Ended},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.LoopOnEnd = tt.loopOnEnd
				h := newHarness(t, 3, cfg)
				h.load(t)

				h.factory.Decoder(0).End()
				h.flush(t)

				snap := h.snapshot(t)
				expectState(t, snap, 0, tt.want)
				if !slices.Contains(snap.History, "End(0)") {
					t.Errorf("expected End(0) in history %v", snap.History)
				}
				seeked := h.factory.Journal.Index("seek:0") >= 0
				if seeked != tt.loopOnEnd {
					t.Errorf("expected seek to start %t, got %t", tt.loopOnEnd, seeked)
				}
			})
		}
	})

	t.Run("background releases decoders and resume rebuilds the window", func(t *testing.T) {
		h := newHarness(t, 6, DefaultConfig())
		h.load(t)
		h.settle(t, 2)

		h.ctrl.Background()
		h.flush(t)
		snap := h.snapshot(t)
		if !snap.Stopped || snap.Visible || snap.Live != 0 || snap.Attached != -1 {
			t.Fatalf("expected stopped with nothing live, got %+v", snap)
		}
		if h.factory.Live() != 0 {
			t.Errorf("expected 0 live decoders, got %d", h.factory.Live())
		}

		snap = h.settle(t, 3)
		if snap.Current != 3 || snap.Live != 0 {
			t.Errorf("expected settle without acquisition, got current %d live %d", snap.Current, snap.Live)
		}
		h.ctrl.Retry(3)
		h.flush(t)
		if h.factory.Live() != 0 {
			t.Error("retry must not acquire while backgrounded")
		}

		h.ctrl.SetVisible(true)
		h.flush(t)
		snap = h.snapshot(t)
		if snap.Stopped {
			t.Error("expected resume to clear stopped")
		}
		expectLive(t, snap, 2, 3, 4)
		expectState(t, snap, 3, models.Playing)
	})

	t.Run("close after the context ends still releases decoders", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		factory := tu.NewFakeFactory()
		surface := tu.NewFakeSurface(factory.Journal)
		ctrl := New(DefaultConfig(), tu.NewStaticProvider(3), factory, surface, Hooks{}, nil)
		ctrl.Start(ctx)

		if err := ctrl.Load(ctx); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if err := ctrl.Flush(ctx); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if factory.Live() != 2 {
			t.Fatalf("expected 2 live decoders, got %d", factory.Live())
		}

		cancel()
		<-ctrl.loop.Done()

		if err := ctrl.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if factory.Live() != 0 {
			t.Errorf("expected 0 live decoders after Close, got %d", factory.Live())
		}
		if surface.Bound() != nil {
			t.Error("expected surface unbound after Close")
		}
	})

	t.Run("close releases all decoders", func(t *testing.T) {
		h := newHarness(t, 3, DefaultConfig())
		h.load(t)

		if err := h.ctrl.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if h.factory.Live() != 0 {
			t.Errorf("expected 0 live decoders, got %d", h.factory.Live())
		}
		if err := h.ctrl.Replace(context.Background(), tu.Items(0, 1)); !errors.Is(err, shared.ErrLoopClosed) {
			t.Errorf("expected ErrLoopClosed, got %v", err)
		}
	})
}
