package models

// DecoderCallbacks are invoked by a [Decoder] from its own worker goroutines.
// The pool re-posts them onto the control loop before touching any state.
type DecoderCallbacks struct {
	OnPrepared func(err error) // preparation finished, err is nil on success
	OnEnded    func()          // playback reached the end of the media
}

// Decoder is an opaque decode+render pipeline. It is exclusively owned by the
// player pool and never shared between two feed items.
type Decoder interface {
	ID() string
	// Prepare binds the media URI and starts asynchronous preparation. It must not block.
	Prepare(mediaURI string, cb DecoderCallbacks)
	Play() error
	Pause() error
	SeekToStart() error
	// Release stops playback and frees every resource. Further calls are no-ops.
	Release()
}

// DecoderFactory creates decoders. Creation failures surface as DecoderInitError.
type DecoderFactory interface {
	NewDecoder(position int) (Decoder, error)
}

// Surface is the visible render target. At most one decoder is bound to it at a time.
type Surface interface {
	ID() string
	Bind(d Decoder) error
	Unbind(d Decoder)
}
