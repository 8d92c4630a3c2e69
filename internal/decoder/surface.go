package decoder

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// Surface is a simulated render target. It can be made unavailable to
// exercise attach failures.
type Surface struct {
	id string

	mu          sync.Mutex
	bound       models.Decoder
	unavailable bool
	logger      *log.Logger
}

func NewSurface(logger *log.Logger) *Surface {
	id := shared.GenerateID()
	return &Surface{id: id, logger: shared.WithLogger(logger, "component", "surface", "id", shared.ShortID(id))}
}

func (s *Surface) ID() string { return s.id }

// Bind implements [models.Surface]. Binding while another decoder is bound
// replaces it.
func (s *Surface) Bind(d models.Decoder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return fmt.Errorf("%w: surface %s", shared.ErrSurfaceUnavailable, shared.ShortID(s.id))
	}
	if s.bound != nil && s.bound != d {
		s.logger.Warn("replacing bound decoder", "old", shared.ShortID(s.bound.ID()), "new", shared.ShortID(d.ID()))
	}
	s.bound = d
	s.logger.Debug("bound", "decoder", shared.ShortID(d.ID()))
	return nil
}

// Unbind implements [models.Surface]. Unbinding a decoder that is not bound is a no-op.
func (s *Surface) Unbind(d models.Decoder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil || s.bound != d {
		return
	}
	s.bound = nil
	s.logger.Debug("unbound", "decoder", shared.ShortID(d.ID()))
}

// Bound returns the decoder currently bound, or nil.
func (s *Surface) Bound() models.Decoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// SetAvailable toggles whether Bind succeeds.
func (s *Surface) SetAvailable(ok bool) {
	s.mu.Lock()
	s.unavailable = !ok
	s.mu.Unlock()
}
