package feed

import (
	"github.com/desertthunder/reel/internal/pool"
	"github.com/desertthunder/reel/internal/prefetch"
	"github.com/desertthunder/reel/internal/shared"
)

// Config tunes the controller and the components it owns.
type Config struct {
	Pool          pool.Config
	Radius        int
	LoopOnEnd     bool
	ItemExtent    float64
	PageThreshold int
	PageSize      int
}

// DefaultConfig matches the shipped configuration file.
func DefaultConfig() Config {
	return Config{
		Pool:          pool.DefaultConfig(),
		Radius:        prefetch.DefaultRadius,
		LoopOnEnd:     true,
		ItemExtent:    1,
		PageThreshold: 5,
		PageSize:      10,
	}
}

// ConfigFrom maps the application configuration onto a controller configuration.
func ConfigFrom(c *shared.Config) Config {
	return Config{
		Pool: pool.Config{
			Capacity:         c.Playback.PoolCapacity,
			DegradeThreshold: c.Playback.DegradeThreshold,
			DegradeWindow:    c.Playback.DegradeWindow(),
			PrefetchRate:     c.Playback.PrefetchRate,
			PrefetchBurst:    c.Playback.PrefetchBurst,
		},
		Radius:        c.Playback.PrefetchRadius,
		LoopOnEnd:     c.Playback.LoopOnEnd,
		ItemExtent:    c.Scroll.ItemExtent,
		PageThreshold: c.Scroll.PageThreshold,
		PageSize:      c.Scroll.PageSize,
	}
}
