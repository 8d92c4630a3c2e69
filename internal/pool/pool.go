// Package pool implements the player pool manager: it owns every decoder instance,
// creates them lazily per feed position, releases them on eviction and keeps the
// number of live decoders within a fixed capacity.
//
// A [Pool] is not safe for concurrent use. It is driven from the control loop, and
// decoder callbacks are posted back onto that loop before any state is touched.
package pool

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/reel/internal/loop"
	"github.com/desertthunder/reel/internal/metrics"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
	"github.com/desertthunder/reel/internal/slot"
)

// Config bounds the pool.
type Config struct {
	Capacity         int           // K, maximum live decoders
	DegradeThreshold int           // DecoderInitErrors that trip degraded mode
	DegradeWindow    time.Duration // window the threshold is counted in
	PrefetchRate     float64       // speculative acquisitions per second, 0 is unlimited
	PrefetchBurst    int
}

// DefaultConfig returns K=3 with degraded mode tripping on the first init failure.
func DefaultConfig() Config {
	return Config{Capacity: 3, DegradeThreshold: 1, DegradeWindow: 30 * time.Second, PrefetchBurst: 1}
}

// Handle is a value snapshot of one slot returned by acquisition.
type Handle struct {
	Position  int               `json:"position"`
	ItemID    string            `json:"item_id,omitempty"`
	State     models.SlotState  `json:"state"`
	DecoderID string            `json:"decoder_id,omitempty"`
	PosterURI string            `json:"poster_uri,omitempty"`
	Err       *models.SlotError `json:"error,omitempty"`
}

// Pool is the player pool manager.
type Pool struct {
	cfg       Config
	factory   models.DecoderFactory
	poster    loop.Poster
	machine   *slot.Machine
	breaker   *Breaker
	limiter   *rate.Limiter
	slots     map[int]*slot.Slot
	protected map[int]bool
	started   map[string]time.Time
	center    int
	logger    *log.Logger

	subscriber    func(models.Event)
	beforeRelease func(position int, d models.Decoder)
}

// New creates a pool. Decoder callbacks are re-posted through poster, and all play
// and pause calls go through machine.
func New(cfg Config, factory models.DecoderFactory, poster loop.Poster, machine *slot.Machine, logger *log.Logger) *Pool {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	p := &Pool{
		cfg:       cfg,
		factory:   factory,
		poster:    poster,
		machine:   machine,
		breaker:   NewBreaker(cfg.DegradeThreshold, cfg.DegradeWindow),
		slots:     make(map[int]*slot.Slot),
		protected: make(map[int]bool),
		started:   make(map[string]time.Time),
		logger:    shared.WithLogger(logger, "component", "pool"),
	}
	if cfg.PrefetchRate > 0 {
		burst := max(cfg.PrefetchBurst, 1)
		p.limiter = rate.NewLimiter(rate.Limit(cfg.PrefetchRate), burst)
	}
	return p
}

// Subscribe sets the single event subscriber, replacing any previous one.
// Events are delivered through the poster after the mutation that produced them.
func (p *Pool) Subscribe(fn func(models.Event)) {
	p.subscriber = fn
}

// OnBeforeRelease registers a hook run just before a decoder is released, so a
// surface still holding it can let go first.
func (p *Pool) OnBeforeRelease(fn func(position int, d models.Decoder)) {
	p.beforeRelease = fn
}

// Machine returns the state machine driving the pool's slots.
func (p *Pool) Machine() *slot.Machine { return p.machine }

// Capacity returns K.
func (p *Pool) Capacity() int { return p.cfg.Capacity }

// AcquireForPosition returns the slot serving item.Position, creating and preparing
// a decoder if none exists. It never blocks: the returned handle is Preparing until
// the decoder reports back. An Error slot is recovered with a fresh decoder.
//
// Capacity victims are chosen relative to the centre of the last window passed to
// [Pool.EvictOutsideWindow], not relative to the acquired position.
func (p *Pool) AcquireForPosition(item models.FeedItem) Handle {
	return p.acquire(item, false)
}

// Prefetch is the speculative form of [Pool.AcquireForPosition]. It is refused while
// degraded, for slots in Error, when the prefetch rate is exhausted and when making
// room would evict a slot at least as close to the window centre.
func (p *Pool) Prefetch(item models.FeedItem) Handle {
	return p.acquire(item, true)
}

func (p *Pool) acquire(item models.FeedItem, speculative bool) Handle {
	position, mediaURI := item.Position, item.MediaURI
	if position < 0 {
		return Handle{Position: position, State: models.Unloaded}
	}

	if s, ok := p.slots[position]; ok {
		switch {
		case s.State != models.Error:
			return handleOf(s)
		case speculative:
			p.refuse(position, "error")
			return handleOf(s)
		default:
			p.logger.Info("recovering slot", "position", position, "err", s.LastError)
			p.drop(s)
		}
	}

	if speculative {
		if p.breaker.Degraded() {
			p.refuse(position, "degraded")
			return Handle{Position: position, State: models.Unloaded}
		}
		if p.limiter != nil && !p.limiter.Allow() {
			p.refuse(position, "rate")
			return Handle{Position: position, State: models.Unloaded}
		}
	}

	s := slot.New(position, item.ID, mediaURI)
	s.PosterURI = item.PosterURI
	if err := validateURI(mediaURI); err != nil {
		p.slots[position] = s
		p.failSlot(s, models.NewSlotError(position, err, models.MediaSourceError))
		return handleOf(s)
	}

	if p.Live() >= p.cfg.Capacity {
		victim := p.victim(position)
		if victim == nil {
			p.refuse(position, "capacity")
			return Handle{Position: position, State: models.Unloaded}
		}
		p.logger.Debug("evicting for capacity", "victim", victim.Position, "position", position)
		metrics.DecodersEvicted.Inc()
		p.release(victim)
	}

	d, err := p.factory.NewDecoder(position)
	if err != nil {
		p.slots[position] = s
		p.failSlot(s, models.NewSlotError(position, err, models.DecoderInitError))
		return handleOf(s)
	}

	s.Decoder = d
	p.slots[position] = s
	p.started[d.ID()] = time.Now()
	metrics.DecodersCreated.Inc()
	metrics.DecodersLive.Inc()
	if err := p.machine.Prepare(s); err != nil {
		p.logger.Warn("unexpected acquisition", "position", position, "err", err)
	}

	d.Prepare(mediaURI, models.DecoderCallbacks{
		OnPrepared: func(err error) {
			p.poster.Post(func() { p.prepared(position, d, err) })
		},
		OnEnded: func() {
			p.poster.Post(func() { p.ended(position, d) })
		},
	})
	p.logger.Debug("acquired", "position", position, "decoder", shared.ShortID(d.ID()), "speculative", speculative)
	return handleOf(s)
}

// ReleaseForPosition stops and releases the instance serving position. Releasing an
// untracked position is a no-op.
func (p *Pool) ReleaseForPosition(position int) {
	if s, ok := p.slots[position]; ok {
		p.release(s)
	}
}

// EvictOutsideWindow releases every tracked slot outside w, skipping protected
// positions, and returns the released positions in ascending order.
func (p *Pool) EvictOutsideWindow(w models.Window) []int {
	p.center = w.Current
	var evicted []int
	for _, position := range p.positions() {
		if w.Contains(position) || p.protected[position] {
			continue
		}
		s := p.slots[position]
		if s.Decoder != nil {
			metrics.DecodersEvicted.Inc()
		}
		p.release(s)
		evicted = append(evicted, position)
	}
	return evicted
}

// ReleaseAll releases every slot, protected ones included.
func (p *Pool) ReleaseAll() {
	for _, position := range p.positions() {
		p.release(p.slots[position])
	}
	clear(p.protected)
}

// Reset clears degraded mode and the failure counter.
func (p *Pool) Reset() {
	p.breaker.Reset()
	metrics.PoolDegraded.Set(0)
	p.logger.Info("degraded mode cleared")
}

// Degraded reports whether speculative acquisition is disabled.
func (p *Pool) Degraded() bool { return p.breaker.Degraded() }

// Protect exempts position from eviction while a surface holds its decoder.
func (p *Pool) Protect(position int) { p.protected[position] = true }

// Unprotect lifts [Pool.Protect].
func (p *Pool) Unprotect(position int) { delete(p.protected, position) }

// Protected reports whether position is exempt from eviction.
func (p *Pool) Protected(position int) bool { return p.protected[position] }

// Play starts position through the state machine, pausing whatever else plays first.
func (p *Pool) Play(position int) error {
	s, ok := p.slots[position]
	if !ok {
		return fmt.Errorf("%w: %d is not tracked", shared.ErrInvalidPosition, position)
	}
	err := p.machine.Play(s)
	p.collectFailures()
	return err
}

// Pause pauses position if it is playing.
func (p *Pool) Pause(position int) {
	if s, ok := p.slots[position]; ok {
		p.machine.Pause(s)
		p.collectFailures()
	}
}

// PauseActive pauses the playing slot, if any, and returns its position or -1.
func (p *Pool) PauseActive() int {
	s := p.machine.PauseActive()
	p.collectFailures()
	if s == nil {
		return -1
	}
	return s.Position
}

// Decoder returns the decoder serving position, or nil.
func (p *Pool) Decoder(position int) models.Decoder {
	if s, ok := p.slots[position]; ok {
		return s.Decoder
	}
	return nil
}

// Handle returns the current snapshot of position.
func (p *Pool) Handle(position int) (Handle, bool) {
	s, ok := p.slots[position]
	if !ok {
		return Handle{Position: position, State: models.Unloaded}, false
	}
	return handleOf(s), true
}

// Handles returns every tracked slot ordered by position.
func (p *Pool) Handles() []Handle {
	positions := p.positions()
	out := make([]Handle, 0, len(positions))
	for _, position := range positions {
		out = append(out, handleOf(p.slots[position]))
	}
	return out
}

// States maps each tracked position to its state.
func (p *Pool) States() map[int]models.SlotState {
	out := make(map[int]models.SlotState, len(p.slots))
	for position, s := range p.slots {
		out[position] = s.State
	}
	return out
}

// Live returns the number of decoders currently held.
func (p *Pool) Live() int {
	n := 0
	for _, s := range p.slots {
		if s.Decoder != nil {
			n++
		}
	}
	return n
}

func (p *Pool) prepared(position int, d models.Decoder, err error) {
	s, ok := p.slots[position]
	if !ok || s.Decoder != d {
		p.logger.Debug("dropping stale preparation", "position", position, "decoder", shared.ShortID(d.ID()))
		return
	}
	if started, ok := p.started[d.ID()]; ok {
		metrics.PrepareDurations.Observe(time.Since(started).Seconds())
		delete(p.started, d.ID())
	}

	if err != nil {
		p.failSlot(s, models.NewSlotError(position, err, models.MediaSourceError))
		return
	}
	if err := p.machine.Ready(s); err != nil {
		p.logger.Warn("unexpected preparation", "position", position, "err", err)
		return
	}
	p.emit(models.Event{Position: position, Kind: models.EventPrepared})
}

func (p *Pool) ended(position int, d models.Decoder) {
	s, ok := p.slots[position]
	if !ok || s.Decoder != d {
		return
	}
	if err := p.machine.End(s); err != nil {
		p.logger.Debug("end ignored", "position", position, "err", err)
	}
	p.collectFailures()
	p.emit(models.Event{Position: position, Kind: models.EventEnded})
}

// collectFailures finishes slots the state machine moved to Error while they still
// hold a decoder.
func (p *Pool) collectFailures() {
	for _, position := range p.positions() {
		s := p.slots[position]
		if s.State == models.Error && s.Decoder != nil {
			p.failSlot(s, s.LastError)
		}
	}
}

func (p *Pool) failSlot(s *slot.Slot, se *models.SlotError) {
	if s.State != models.Error {
		p.machine.Fail(s, se)
	}
	p.releaseDecoder(s)

	metrics.SlotFailures.WithLabelValues(se.Kind.String()).Inc()
	if se.Kind == models.DecoderInitError && p.breaker.Record() {
		metrics.PoolDegraded.Set(1)
		p.logger.Warn("entering degraded mode, prefetch disabled", "failures", p.breaker.Failures())
	}
	p.emit(models.Event{Position: s.Position, Kind: models.EventFailed, Err: se})
}

func (p *Pool) release(s *slot.Slot) {
	p.releaseDecoder(s)
	p.machine.Unload(s)
	delete(p.slots, s.Position)
	delete(p.protected, s.Position)
	p.emit(models.Event{Position: s.Position, Kind: models.EventReleased})
}

// drop forgets an Error slot without emitting, ahead of re-acquisition.
func (p *Pool) drop(s *slot.Slot) {
	p.releaseDecoder(s)
	p.machine.Unload(s)
	delete(p.slots, s.Position)
}

func (p *Pool) releaseDecoder(s *slot.Slot) {
	d := s.Decoder
	if d == nil {
		return
	}
	if p.beforeRelease != nil {
		p.beforeRelease(s.Position, d)
	}
	d.Release()
	s.Decoder = nil
	delete(p.started, d.ID())
	metrics.DecodersReleased.Inc()
	metrics.DecodersLive.Dec()
	p.logger.Debug("released", "position", s.Position, "decoder", shared.ShortID(d.ID()))
}

// victim picks the live, unprotected slot farthest from the centre that is strictly
// farther than position. Ties go to the slot behind the centre.
func (p *Pool) victim(position int) *slot.Slot {
	w := models.Window{Current: p.center}
	need := w.Distance(position)

	var best *slot.Slot
	for _, s := range p.slots {
		if s.Decoder == nil || s.Position == position || p.protected[s.Position] {
			continue
		}
		d := w.Distance(s.Position)
		if d <= need {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		bd := w.Distance(best.Position)
		if d > bd || (d == bd && s.Position < best.Position) {
			best = s
		}
	}
	return best
}

func (p *Pool) refuse(position int, reason string) {
	metrics.PrefetchRefused.WithLabelValues(reason).Inc()
	p.logger.Debug("prefetch refused", "position", position, "reason", reason)
}

func (p *Pool) emit(ev models.Event) {
	fn := p.subscriber
	if fn == nil {
		return
	}
	p.poster.Post(func() { fn(ev) })
}

func (p *Pool) positions() []int {
	out := make([]int, 0, len(p.slots))
	for position := range p.slots {
		out = append(out, position)
	}
	sort.Ints(out)
	return out
}

func handleOf(s *slot.Slot) Handle {
	return Handle{
		Position:  s.Position,
		ItemID:    s.ItemID,
		State:     s.State,
		DecoderID: s.DecoderID(),
		PosterURI: s.PosterURI,
		Err:       s.LastError,
	}
}

func validateURI(mediaURI string) error {
	if mediaURI == "" {
		return fmt.Errorf("%w: empty media uri", shared.ErrMediaSource)
	}
	u, err := url.Parse(mediaURI)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMediaSource, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: %q has no scheme", shared.ErrMediaSource, mediaURI)
	}
	return nil
}
