// Package decoder provides a simulated decoder backend. Decoders prepare on timers
// instead of real codecs, which is enough to drive the playback core from the
// terminal simulator, the replay engine and the HTTP server.
package decoder

import (
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Options configures the simulated backend.
type Options struct {
	PrepareLatency time.Duration // delay before OnPrepared fires
	MediaDuration  time.Duration // playing time before OnEnded fires, zero never ends
	FailPositions  []int         // positions whose decoder creation fails
}

// Factory creates simulated decoders and injects faults per position.
type Factory struct {
	mu     sync.Mutex
	opts   Options
	faults map[int]bool
	live   int
	logger *log.Logger
}

func NewFactory(opts Options, logger *log.Logger) *Factory {
	f := &Factory{opts: opts, faults: make(map[int]bool), logger: shared.WithLogger(logger, "component", "decoder")}
	for _, p := range opts.FailPositions {
		f.faults[p] = true
	}
	return f
}

// NewDecoder implements [models.DecoderFactory].
func (f *Factory) NewDecoder(position int) (models.Decoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.faults[position] {
		return nil, fmt.Errorf("%w: simulated fault at position %d", shared.ErrDecoderInit, position)
	}
	f.live++
	d := &Decoder{id: shared.GenerateID(), position: position, factory: f}
	f.logger.Debug("decoder created", "id", shared.ShortID(d.id), "position", position)
	return d, nil
}

// SetFault enables or clears the creation fault for position.
func (f *Factory) SetFault(position int, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.faults[position] = true
	} else {
		delete(f.faults, position)
	}
}

// ToggleFault flips the fault for position and returns the new setting.
func (f *Factory) ToggleFault(position int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	on := !f.faults[position]
	if on {
		f.faults[position] = true
	} else {
		delete(f.faults, position)
	}
	return on
}

// Faults lists positions with an active fault, ascending.
func (f *Factory) Faults() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.faults))
	for p := range f.faults {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Live returns the number of unreleased decoders.
func (f *Factory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// Decoder is a simulated decode+render pipeline.
type Decoder struct {
	id       string
	position int
	factory  *Factory

	mu       sync.Mutex
	cb       models.DecoderCallbacks
	prepared bool
	playing  bool
	released bool
	elapsed  time.Duration
	started  time.Time
	timer    *time.Timer
}

func (d *Decoder) ID() string { return d.id }

// Prepare starts preparation on a timer. URIs without a scheme, or with the
// "fail" scheme, fail with a media source error.
func (d *Decoder) Prepare(mediaURI string, cb models.DecoderCallbacks) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.cb = cb

	var err error
	u, parseErr := url.Parse(mediaURI)
	switch {
	case parseErr != nil:
		err = fmt.Errorf("%w: %v", shared.ErrMediaSource, parseErr)
	case u.Scheme == "" || u.Scheme == "fail":
		err = fmt.Errorf("%w: cannot open %q", shared.ErrMediaSource, mediaURI)
	}

	d.timer = time.AfterFunc(d.factory.opts.PrepareLatency, func() {
		d.mu.Lock()
		if d.released {
			d.mu.Unlock()
			return
		}
		d.prepared = err == nil
		onPrepared := d.cb.OnPrepared
		d.mu.Unlock()

		if onPrepared != nil {
			onPrepared(err)
		}
	})
}

func (d *Decoder) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.released:
		return fmt.Errorf("%w: decoder %s released", shared.ErrInvalidState, shared.ShortID(d.id))
	case !d.prepared:
		return fmt.Errorf("%w: decoder %s not prepared", shared.ErrDecoderInit, shared.ShortID(d.id))
	case d.playing:
		return nil
	}

	d.playing = true
	d.started = time.Now()
	if total := d.factory.opts.MediaDuration; total > 0 {
		d.timer = time.AfterFunc(max(total-d.elapsed, 0), d.finish)
	}
	return nil
}

func (d *Decoder) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return fmt.Errorf("%w: decoder %s released", shared.ErrInvalidState, shared.ShortID(d.id))
	}
	if !d.playing {
		return nil
	}
	d.playing = false
	d.elapsed += time.Since(d.started)
	d.stopTimer()
	return nil
}

func (d *Decoder) SeekToStart() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return fmt.Errorf("%w: decoder %s released", shared.ErrInvalidState, shared.ShortID(d.id))
	}
	d.elapsed = 0
	d.started = time.Now()
	return nil
}

// Release stops timers and frees the decoder. Later calls are no-ops.
func (d *Decoder) Release() {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return
	}
	d.released = true
	d.playing = false
	d.stopTimer()
	d.mu.Unlock()

	d.factory.mu.Lock()
	d.factory.live--
	d.factory.mu.Unlock()
	d.factory.logger.Debug("decoder released", "id", shared.ShortID(d.id), "position", d.position)
}

// Elapsed returns the playing time since the last seek.
func (d *Decoder) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing {
		return d.elapsed + time.Since(d.started)
	}
	return d.elapsed
}

func (d *Decoder) finish() {
	d.mu.Lock()
	if d.released || !d.playing {
		d.mu.Unlock()
		return
	}
	d.playing = false
	d.elapsed = d.factory.opts.MediaDuration
	onEnded := d.cb.OnEnded
	d.mu.Unlock()

	if onEnded != nil {
		onEnded()
	}
}

func (d *Decoder) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
