package pool

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
	"github.com/desertthunder/reel/internal/slot"
	tu "github.com/desertthunder/reel/internal/testing"
)

type fixture struct {
	pool    *Pool
	factory *tu.FakeFactory
	poster  *tu.ManualPoster
	events  []models.Event
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{factory: tu.NewFakeFactory(), poster: &tu.ManualPoster{}}
	f.pool = New(cfg, f.factory, f.poster, slot.NewMachine(true, nil), nil)
	f.pool.Subscribe(func(ev models.Event) { f.events = append(f.events, ev) })
	return f
}

func uri(position int) string { return fmt.Sprintf("mem://v%d.mp4", position) }

func item(position int) models.FeedItem {
	return models.FeedItem{
		ID:        fmt.Sprintf("v%d", position),
		Position:  position,
		MediaURI:  uri(position),
		PosterURI: fmt.Sprintf("mem://v%d.jpg", position),
	}
}

func (f *fixture) eventsOf(kind models.EventKind) []int {
	var out []int
	for _, ev := range f.events {
		if ev.Kind == kind {
			out = append(out, ev.Position)
		}
	}
	return out
}

func TestAcquireForPosition(t *testing.T) {
	t.Run("creates and prepares asynchronously", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())

		h := f.pool.AcquireForPosition(item(0))
		if h.State != models.Preparing {
			t.Fatalf("expected Preparing, got %s", h.State)
		}
		if h.DecoderID == "" {
			t.Error("expected a decoder id")
		}

		f.poster.Flush()
		h, _ = f.pool.Handle(0)
		if h.State != models.Ready {
			t.Errorf("expected Ready after flush, got %s", h.State)
		}
		if got := f.eventsOf(models.EventPrepared); len(got) != 1 || got[0] != 0 {
			t.Errorf("expected one prepared event for 0, got %v", got)
		}
	})

	t.Run("returns the existing instance", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())

		first := f.pool.AcquireForPosition(item(0))
		second := f.pool.AcquireForPosition(item(0))
		if first.DecoderID != second.DecoderID {
			t.Errorf("expected same decoder, got %s and %s", first.DecoderID, second.DecoderID)
		}
		if f.factory.Live() != 1 {
			t.Errorf("expected one live decoder, got %d", f.factory.Live())
		}
	})

	t.Run("invalid uri is a media source error", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())

		h := f.pool.AcquireForPosition(models.FeedItem{ID: "v0", MediaURI: "not a uri"})
		if h.State != models.Error {
			t.Fatalf("expected Error, got %s", h.State)
		}
		if h.Err.Kind != models.MediaSourceError {
			t.Errorf("expected MediaSourceError, got %s", h.Err.Kind)
		}
		if f.pool.Degraded() {
			t.Error("media source errors must not degrade the pool")
		}
		if f.factory.Live() != 0 {
			t.Error("no decoder should be created")
		}
	})

	t.Run("handles carry the item id and poster", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.factory.FailCreate(2)

		h := f.pool.AcquireForPosition(item(1))
		if h.ItemID != "v1" || h.PosterURI != "mem://v1.jpg" {
			t.Errorf("unexpected handle %+v", h)
		}

		h = f.pool.AcquireForPosition(item(2))
		if h.State != models.Error {
			t.Fatalf("expected Error, got %s", h.State)
		}
		if h.ItemID != "v2" || h.PosterURI != "mem://v2.jpg" {
			t.Errorf("failed slot lost its item: %+v", h)
		}
	})

	t.Run("preparation failure releases the decoder", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.factory.FailPrepare(uri(1), fmt.Errorf("%w: 404", shared.ErrMediaSource))

		f.pool.AcquireForPosition(item(1))
		f.poster.Flush()

		h, _ := f.pool.Handle(1)
		if h.State != models.Error || h.Err.Kind != models.MediaSourceError {
			t.Fatalf("expected MediaSourceError slot, got %s %v", h.State, h.Err)
		}
		if f.factory.Live() != 0 {
			t.Errorf("expected decoder released, %d live", f.factory.Live())
		}
		if got := f.eventsOf(models.EventFailed); len(got) != 1 {
			t.Errorf("expected one failure event, got %v", got)
		}
	})

	t.Run("recovers an error slot", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.factory.FailCreate(0)

		h := f.pool.AcquireForPosition(item(0))
		if h.State != models.Error {
			t.Fatalf("expected Error, got %s", h.State)
		}

		f.factory.ClearCreate(0)
		h = f.pool.AcquireForPosition(item(0))
		if h.State != models.Preparing {
			t.Errorf("expected recovery to Preparing, got %s", h.State)
		}
		if h.Err != nil {
			t.Errorf("expected cleared error, got %v", h.Err)
		}
	})

	t.Run("ignores stale preparation callbacks", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.factory.AutoPrepare = false

		f.pool.AcquireForPosition(item(0))
		f.pool.ReleaseForPosition(0)
		f.pool.AcquireForPosition(item(0))

		if n := f.factory.CompletePrepare(); n != 2 {
			t.Fatalf("expected 2 pending preparations, got %d", n)
		}
		f.poster.Flush()

		if got := f.eventsOf(models.EventPrepared); len(got) != 1 {
			t.Errorf("expected only the live decoder to report, got %v", got)
		}
		h, _ := f.pool.Handle(0)
		if h.State != models.Ready {
			t.Errorf("expected Ready, got %s", h.State)
		}
	})
}

func TestCapacity(t *testing.T) {
	t.Run("never exceeds K", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())

		for _, current := range []int{0, 1, 2, 3, 4, 5, 4, 3, 7, 8} {
			w := models.Window{Current: current, Radius: 1}
			f.pool.EvictOutsideWindow(w)
			f.pool.AcquireForPosition(item(current))
			f.pool.Prefetch(item(current+1))
			if current > 0 {
				f.pool.Prefetch(item(current-1))
			}
			f.poster.Flush()

			if f.pool.Live() > 3 {
				t.Fatalf("live %d exceeds capacity at %d", f.pool.Live(), current)
			}
		}
		if f.factory.MaxLive() > 3 {
			t.Errorf("factory saw %d live decoders", f.factory.MaxLive())
		}
	})

	t.Run("evicts the farthest slot, backward on ties", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 2})
		f.pool.EvictOutsideWindow(models.Window{Current: 5, Radius: 1})
		f.pool.Prefetch(item(4))
		f.pool.Prefetch(item(6))

		h := f.pool.AcquireForPosition(item(5))
		if h.State != models.Preparing {
			t.Fatalf("expected 5 Preparing, got %s", h.State)
		}
		if _, ok := f.pool.Handle(4); ok {
			t.Error("expected 4 to be evicted as the backward tie")
		}
		if _, ok := f.pool.Handle(6); !ok {
			t.Error("expected 6 to be kept")
		}

		f.pool.Prefetch(item(9))
		if _, ok := f.pool.Handle(9); ok {
			t.Error("9 is farther than every live slot and must be refused")
		}
	})

	t.Run("victims are measured from the window, not the acquired position", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 2})
		f.pool.EvictOutsideWindow(models.Window{Current: 5, Radius: 2})
		f.pool.AcquireForPosition(item(5))
		f.pool.Prefetch(item(6))

		h := f.pool.AcquireForPosition(item(7))
		if h.State != models.Unloaded {
			t.Errorf("expected 7 refused, got %s", h.State)
		}
		if _, ok := f.pool.Handle(5); !ok {
			t.Error("the window centre must not be evicted for a farther slot")
		}
		if _, ok := f.pool.Handle(6); !ok {
			t.Error("expected 6 kept")
		}
	})

	t.Run("prefetch refused when only nearer slots could be evicted", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 2})
		f.pool.AcquireForPosition(item(0))
		f.pool.Prefetch(item(1))

		h := f.pool.Prefetch(item(2))
		if h.State != models.Unloaded {
			t.Errorf("expected refusal, got %s", h.State)
		}
		if _, ok := f.pool.Handle(1); !ok {
			t.Error("nearer slot 1 must survive")
		}
	})

	t.Run("protected slots are not evicted", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 1})
		f.pool.AcquireForPosition(item(3))
		f.pool.Protect(3)

		f.pool.EvictOutsideWindow(models.Window{Current: 0, Radius: 1})
		if _, ok := f.pool.Handle(3); !ok {
			t.Fatal("protected slot was evicted by window")
		}

		h := f.pool.AcquireForPosition(item(0))
		if h.State != models.Unloaded {
			t.Errorf("expected refusal with protected slot, got %s", h.State)
		}

		f.pool.Unprotect(3)
		h = f.pool.AcquireForPosition(item(0))
		if h.State != models.Preparing {
			t.Errorf("expected acquisition after unprotect, got %s", h.State)
		}
	})
}

func TestRelease(t *testing.T) {
	t.Run("release is idempotent", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.pool.AcquireForPosition(item(0))
		d := f.factory.Decoder(0)

		f.pool.ReleaseForPosition(0)
		f.pool.ReleaseForPosition(0)
		f.pool.ReleaseForPosition(42)
		f.poster.Flush()

		if !d.Released() {
			t.Error("decoder should be released")
		}
		if f.factory.Live() != 0 {
			t.Errorf("expected 0 live, got %d", f.factory.Live())
		}
		if got := f.eventsOf(models.EventReleased); len(got) != 1 {
			t.Errorf("expected one released event, got %v", got)
		}
	})

	t.Run("evict outside window", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 5})
		for i := 0; i < 5; i++ {
			f.pool.Prefetch(item(i))
		}

		evicted := f.pool.EvictOutsideWindow(models.Window{Current: 3, Radius: 1})
		if fmt.Sprint(evicted) != "[0 1]" {
			t.Errorf("expected [0 1] evicted, got %v", evicted)
		}
		if f.pool.Live() != 3 {
			t.Errorf("expected 3 live, got %d", f.pool.Live())
		}
	})

	t.Run("release all calls the hook before releasing", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		var hooked []int
		f.pool.OnBeforeRelease(func(position int, d models.Decoder) {
			if d.(*tu.FakeDecoder).Released() {
				t.Errorf("hook for %d ran after release", position)
			}
			hooked = append(hooked, position)
		})
		f.pool.AcquireForPosition(item(0))
		f.pool.Prefetch(item(1))
		f.pool.Protect(0)

		f.pool.ReleaseAll()

		if len(hooked) != 2 || f.factory.Live() != 0 {
			t.Errorf("expected both released, hooked %v live %d", hooked, f.factory.Live())
		}
		if f.pool.Protected(0) {
			t.Error("protection should be cleared")
		}
	})
}

func TestDegradedMode(t *testing.T) {
	t.Run("first init failure disables prefetch", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.factory.FailCreate(1)

		h := f.pool.Prefetch(item(1))
		if h.State != models.Error || h.Err.Kind != models.DecoderInitError {
			t.Fatalf("expected DecoderInitError, got %s %v", h.State, h.Err)
		}
		if !errors.Is(h.Err, shared.ErrDecoderInit) {
			t.Error("slot error should unwrap to ErrDecoderInit")
		}
		if !f.pool.Degraded() {
			t.Fatal("expected degraded")
		}

		if h := f.pool.Prefetch(item(2)); h.State != models.Unloaded {
			t.Errorf("expected prefetch refused, got %s", h.State)
		}
		if h := f.pool.AcquireForPosition(item(0)); h.State != models.Preparing {
			t.Errorf("on-demand acquisition should still work, got %s", h.State)
		}

		f.pool.Reset()
		if h := f.pool.Prefetch(item(2)); h.State != models.Preparing {
			t.Errorf("expected prefetch after reset, got %s", h.State)
		}
	})

	t.Run("prefetch does not retry error slots", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 3, DegradeThreshold: 5, DegradeWindow: time.Minute})
		f.factory.FailCreate(1)
		f.pool.Prefetch(item(1))
		f.factory.ClearCreate(1)

		if h := f.pool.Prefetch(item(1)); h.State != models.Error {
			t.Errorf("expected Error to be left alone, got %s", h.State)
		}
	})

	t.Run("rate limiter refuses bursts", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 5, PrefetchRate: 0.001, PrefetchBurst: 1})

		if h := f.pool.Prefetch(item(1)); h.State != models.Preparing {
			t.Fatalf("expected first prefetch allowed, got %s", h.State)
		}
		if h := f.pool.Prefetch(item(2)); h.State != models.Unloaded {
			t.Errorf("expected second prefetch refused, got %s", h.State)
		}
	})
}

func TestPlayback(t *testing.T) {
	t.Run("play pauses the previous slot first", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.pool.AcquireForPosition(item(0))
		f.pool.Prefetch(item(1))
		f.poster.Flush()

		if err := f.pool.Play(0); err != nil {
			t.Fatalf("Play(0) error = %v", err)
		}
		if err := f.pool.Play(1); err != nil {
			t.Fatalf("Play(1) error = %v", err)
		}

		pause, play := f.factory.Journal.Index("pause:0"), f.factory.Journal.Index("play:1")
		if pause < 0 || pause > play {
			t.Errorf("expected pause:0 before play:1, journal %v", f.factory.Journal.Entries())
		}
	})

	t.Run("play failure releases the decoder", func(t *testing.T) {
		f := newFixture(t, Config{Capacity: 3, DegradeThreshold: 3})
		f.pool.AcquireForPosition(item(0))
		f.poster.Flush()
		f.factory.Decoder(0).PlayErr = errors.New("no audio device")

		if err := f.pool.Play(0); err == nil {
			t.Fatal("expected error")
		}
		h, _ := f.pool.Handle(0)
		if h.State != models.Error || h.DecoderID != "" {
			t.Errorf("expected released Error slot, got %s %q", h.State, h.DecoderID)
		}
		if f.factory.Live() != 0 {
			t.Errorf("expected 0 live, got %d", f.factory.Live())
		}
	})

	t.Run("play on untracked position", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		if err := f.pool.Play(3); !errors.Is(err, shared.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition, got %v", err)
		}
	})

	t.Run("end loops and reports", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.pool.AcquireForPosition(item(0))
		f.poster.Flush()
		_ = f.pool.Play(0)

		f.factory.Decoder(0).End()
		f.poster.Flush()

		h, _ := f.pool.Handle(0)
		if h.State != models.Playing {
			t.Errorf("expected looping back to Playing, got %s", h.State)
		}
		if got := f.eventsOf(models.EventEnded); len(got) != 1 {
			t.Errorf("expected one ended event, got %v", got)
		}
	})
}
