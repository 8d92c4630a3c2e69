package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Playback errors, one per slot error kind
	ErrMediaSource        = fmt.Errorf("media source unavailable")
	ErrDecoderInit        = fmt.Errorf("decoder initialization failed")
	ErrSurfaceUnavailable = fmt.Errorf("render surface unavailable")

	// Control errors
	ErrScrollActive    = fmt.Errorf("scroll not settled")
	ErrInvalidPosition = fmt.Errorf("position outside feed")
	ErrInvalidState    = fmt.Errorf("invalid slot state transition")
	ErrLoopClosed      = fmt.Errorf("control loop closed")
	ErrEmptyFeed       = fmt.Errorf("feed is empty")

	// Feed provider errors
	ErrFeedUnavailable = fmt.Errorf("feed provider unavailable")
	ErrItemNotFound    = fmt.Errorf("feed item not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
