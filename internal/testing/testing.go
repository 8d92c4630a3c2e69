// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Journal is an ordered, goroutine-safe log of decoder and surface operations
// such as "create:0", "prepare:0", "play:1", "pause:0", "bind:1", "release:0".
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the journal.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// Index returns the index of the first occurrence of entry, or -1.
func (j *Journal) Index(entry string) int {
	for i, e := range j.Entries() {
		if e == entry {
			return i
		}
	}
	return -1
}

// LastIndex returns the index of the last occurrence of entry, or -1.
func (j *Journal) LastIndex(entry string) int {
	entries := j.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i] == entry {
			return i
		}
	}
	return -1
}

// Reset clears the journal.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// FakeDecoder is a test double for [models.Decoder].
type FakeDecoder struct {
	id       string
	position int
	factory  *FakeFactory
	uri      string
	cb       models.DecoderCallbacks
	released bool
	PlayErr  error
	PauseErr error
}

func (d *FakeDecoder) ID() string { return d.id }

func (d *FakeDecoder) Position() int { return d.position }

func (d *FakeDecoder) Released() bool {
	d.factory.mu.Lock()
	defer d.factory.mu.Unlock()
	return d.released
}

func (d *FakeDecoder) Prepare(mediaURI string, cb models.DecoderCallbacks) {
	d.uri = mediaURI
	d.cb = cb
	d.factory.Journal.Add("prepare:%d", d.position)

	d.factory.mu.Lock()
	err := d.factory.failPrepare[mediaURI]
	auto := d.factory.AutoPrepare
	if !auto {
		d.factory.pending = append(d.factory.pending, pendingPrepare{d: d, err: err})
	}
	d.factory.mu.Unlock()

	if auto && cb.OnPrepared != nil {
		cb.OnPrepared(err)
	}
}

func (d *FakeDecoder) Play() error {
	if d.PlayErr != nil {
		return d.PlayErr
	}
	d.factory.Journal.Add("play:%d", d.position)
	return nil
}

func (d *FakeDecoder) Pause() error {
	if d.PauseErr != nil {
		return d.PauseErr
	}
	d.factory.Journal.Add("pause:%d", d.position)
	return nil
}

func (d *FakeDecoder) SeekToStart() error {
	d.factory.Journal.Add("seek:%d", d.position)
	return nil
}

func (d *FakeDecoder) Release() {
	d.factory.mu.Lock()
	if d.released {
		d.factory.mu.Unlock()
		return
	}
	d.released = true
	d.factory.live--
	d.factory.mu.Unlock()
	d.factory.Journal.Add("release:%d", d.position)
}

// End simulates the decoder reaching the end of its media.
func (d *FakeDecoder) End() {
	if d.cb.OnEnded != nil {
		d.cb.OnEnded()
	}
}

type pendingPrepare struct {
	d   *FakeDecoder
	err error
}

// FakeFactory is a test double for [models.DecoderFactory] that tracks live decoders.
//
// With AutoPrepare set, preparation completes inside Prepare; otherwise completions
// wait for [FakeFactory.CompletePrepare].
type FakeFactory struct {
	Journal     *Journal
	AutoPrepare bool

	mu          sync.Mutex
	seq         int
	live        int
	maxLive     int
	failCreate  map[int]error
	failPrepare map[string]error
	pending     []pendingPrepare
	decoders    map[int]*FakeDecoder
}

// NewFakeFactory returns a factory that prepares synchronously.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{
		Journal:     &Journal{},
		AutoPrepare: true,
		failCreate:  make(map[int]error),
		failPrepare: make(map[string]error),
		decoders:    make(map[int]*FakeDecoder),
	}
}

func (f *FakeFactory) NewDecoder(position int) (models.Decoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failCreate[position]; err != nil {
		f.Journal.Add("create-failed:%d", position)
		return nil, err
	}

	f.seq++
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	d := &FakeDecoder{id: fmt.Sprintf("dec-%d", f.seq), position: position, factory: f}
	f.decoders[position] = d
	f.Journal.Add("create:%d", position)
	return d, nil
}

// FailCreate makes decoder creation for position fail with a DecoderInitError until cleared.
func (f *FakeFactory) FailCreate(position int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreate[position] = fmt.Errorf("%w: simulated fault at %d", shared.ErrDecoderInit, position)
}

// ClearCreate removes a simulated creation fault.
func (f *FakeFactory) ClearCreate(position int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failCreate, position)
}

// SetFault toggles a creation fault at position.
func (f *FakeFactory) SetFault(position int, on bool) {
	if on {
		f.FailCreate(position)
		return
	}
	f.ClearCreate(position)
}

// FailPrepare makes preparation of uri fail with err.
func (f *FakeFactory) FailPrepare(uri string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPrepare[uri] = err
}

// CompletePrepare fires every pending preparation callback and returns how many fired.
func (f *FakeFactory) CompletePrepare() int {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, p := range pending {
		if p.d.cb.OnPrepared != nil {
			p.d.cb.OnPrepared(p.err)
		}
	}
	return len(pending)
}

// Live returns the number of created and not yet released decoders.
func (f *FakeFactory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// MaxLive returns the high-water mark of live decoders.
func (f *FakeFactory) MaxLive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxLive
}

// Decoder returns the most recently created decoder for position.
func (f *FakeFactory) Decoder(position int) *FakeDecoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decoders[position]
}

// FakeSurface is a test double for [models.Surface]. It records a violation whenever
// a decoder is bound while another one is still bound.
type FakeSurface struct {
	Journal *Journal
	BindErr error

	mu         sync.Mutex
	bound      models.Decoder
	violations int
}

func NewFakeSurface(j *Journal) *FakeSurface {
	if j == nil {
		j = &Journal{}
	}
	return &FakeSurface{Journal: j}
}

func (s *FakeSurface) ID() string { return "surface-main" }

func (s *FakeSurface) Bind(d models.Decoder) error {
	if s.BindErr != nil {
		return s.BindErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound != nil && s.bound != d {
		s.violations++
	}
	s.bound = d
	s.Journal.Add("bind:%s", d.ID())
	return nil
}

func (s *FakeSurface) Unbind(d models.Decoder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == d {
		s.bound = nil
	}
	s.Journal.Add("unbind:%s", d.ID())
}

// Bound returns the currently bound decoder, or nil.
func (s *FakeSurface) Bound() models.Decoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Violations counts binds that happened while a different decoder was still bound.
func (s *FakeSurface) Violations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}

// ManualPoster queues posted functions until [ManualPoster.Flush] runs them on the test goroutine.
type ManualPoster struct {
	queue []func()
}

func (p *ManualPoster) Post(fn func()) bool {
	p.queue = append(p.queue, fn)
	return true
}

// Flush runs queued functions, including ones they post, until the queue is empty.
func (p *ManualPoster) Flush() int {
	n := 0
	for len(p.queue) > 0 {
		fn := p.queue[0]
		p.queue = p.queue[1:]
		fn()
		n++
	}
	return n
}

// Len returns the number of queued functions.
func (p *ManualPoster) Len() int { return len(p.queue) }

// StaticProvider is a test double for [models.FeedProvider] and [models.Pager].
type StaticProvider struct {
	mu    sync.Mutex
	Items []models.FeedItem
	More  []models.FeedItem
	Err   error
	Pages int
}

// NewStaticProvider builds a provider with n items whose ids are v0..vN and URIs mem://v0...
func NewStaticProvider(n int) *StaticProvider {
	return &StaticProvider{Items: Items(0, n)}
}

// Items builds n feed items starting at offset.
func Items(offset, n int) []models.FeedItem {
	items := make([]models.FeedItem, n)
	for i := range items {
		p := offset + i
		items[i] = models.FeedItem{
			ID:       fmt.Sprintf("v%d", p),
			MediaURI: fmt.Sprintf("mem://v%d.mp4", p),
			Position: p,
		}
	}
	return items
}

func (p *StaticProvider) GetFeedItems(ctx context.Context) ([]models.FeedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return append([]models.FeedItem(nil), p.Items...), nil
}

func (p *StaticProvider) NextPage(ctx context.Context, offset, limit int) ([]models.FeedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pages++
	if p.Err != nil {
		return nil, p.Err
	}
	n := min(limit, len(p.More))
	page := p.More[:n]
	p.More = p.More[n:]
	return append([]models.FeedItem(nil), page...), nil
}

// PageCount returns how many pages were requested.
func (p *StaticProvider) PageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Pages
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
