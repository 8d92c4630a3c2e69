package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are ignored; existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with REEL_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"REEL_POOL_CAPACITY":      &c.Playback.PoolCapacity,
		"REEL_PREFETCH_RADIUS":    &c.Playback.PrefetchRadius,
		"REEL_DEGRADE_THRESHOLD":  &c.Playback.DegradeThreshold,
		"REEL_PREPARE_LATENCY_MS": &c.Decoder.PrepareLatencyMs,
		"REEL_MEDIA_DURATION_MS":  &c.Decoder.MediaDurationMs,
		"REEL_SERVER_PORT":        &c.Server.Port,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
			}
			*dst = n
		}
	}

	if v, ok := lookup("REEL_LOOP_ON_END"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: REEL_LOOP_ON_END=%q", ErrInvalidConfig, v)
		}
		c.Playback.LoopOnEnd = b
	}

	strs := map[string]*string{
		"REEL_DB_PATH":     &c.Database.Path,
		"REEL_FEED_SOURCE": &c.Feed.Source,
		"REEL_FEED_URL":    &c.Feed.URL,
		"REEL_S3_BUCKET":   &c.Feed.S3Bucket,
		"REEL_S3_PREFIX":   &c.Feed.S3Prefix,
		"REEL_S3_REGION":   &c.Feed.S3Region,
		"REEL_LOG_LEVEL":   &c.Logging.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	return c.Validate()
}
