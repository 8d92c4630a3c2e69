package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Playback PlaybackConfig `toml:"playback" yaml:"playback"`
	Scroll   ScrollConfig   `toml:"scroll" yaml:"scroll"`
	Decoder  DecoderConfig  `toml:"decoder" yaml:"decoder"`
	Feed     FeedConfig     `toml:"feed" yaml:"feed"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
}

// PlaybackConfig contains player pool and state machine settings.
type PlaybackConfig struct {
	PoolCapacity     int     `toml:"pool_capacity" yaml:"pool_capacity"`
	PrefetchRadius   int     `toml:"prefetch_radius" yaml:"prefetch_radius"`
	LoopOnEnd        bool    `toml:"loop_on_end" yaml:"loop_on_end"`
	DegradeThreshold int     `toml:"degrade_threshold" yaml:"degrade_threshold"`
	DegradeWindowMs  int     `toml:"degrade_window_ms" yaml:"degrade_window_ms"`
	PrefetchRate     float64 `toml:"prefetch_rate" yaml:"prefetch_rate"`
	PrefetchBurst    int     `toml:"prefetch_burst" yaml:"prefetch_burst"`
}

// DegradeWindow returns the failure-counting window as a [time.Duration].
func (p PlaybackConfig) DegradeWindow() time.Duration {
	return time.Duration(p.DegradeWindowMs) * time.Millisecond
}

// ScrollConfig contains scroll coordinator and pagination settings.
type ScrollConfig struct {
	ItemExtent    float64 `toml:"item_extent" yaml:"item_extent"`
	PageThreshold int     `toml:"page_threshold" yaml:"page_threshold"`
	PageSize      int     `toml:"page_size" yaml:"page_size"`
}

// DecoderConfig contains settings for the simulated decoder backend.
type DecoderConfig struct {
	PrepareLatencyMs int   `toml:"prepare_latency_ms" yaml:"prepare_latency_ms"`
	MediaDurationMs  int   `toml:"media_duration_ms" yaml:"media_duration_ms"`
	FailPositions    []int `toml:"fail_positions" yaml:"fail_positions"`
}

// PrepareLatency returns the simulated preparation time as a [time.Duration].
func (d DecoderConfig) PrepareLatency() time.Duration {
	return time.Duration(d.PrepareLatencyMs) * time.Millisecond
}

// MediaDuration returns how long a simulated item plays before it ends. Zero never ends.
func (d DecoderConfig) MediaDuration() time.Duration {
	return time.Duration(d.MediaDurationMs) * time.Millisecond
}

// FeedConfig selects and configures the feed provider.
type FeedConfig struct {
	Source       string `toml:"source" yaml:"source"`
	URL          string `toml:"url" yaml:"url"`
	S3Bucket     string `toml:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix     string `toml:"s3_prefix" yaml:"s3_prefix"`
	S3Region     string `toml:"s3_region" yaml:"s3_region"`
	PresignTTLMs int    `toml:"presign_ttl_ms" yaml:"presign_ttl_ms"`
}

// PresignTTL returns how long presigned S3 media URLs stay valid.
func (f FeedConfig) PresignTTL() time.Duration {
	return time.Duration(f.PresignTTLMs) * time.Millisecond
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// LoadConfig reads and parses a configuration file from the specified path.
//
// Files ending in .yaml or .yml are parsed as YAML, everything else as TOML.
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects settings the playback core cannot honour.
func (c *Config) Validate() error {
	switch {
	case c.Playback.PoolCapacity < 1:
		return fmt.Errorf("%w: pool_capacity must be at least 1", ErrInvalidConfig)
	case c.Playback.PrefetchRadius < 0:
		return fmt.Errorf("%w: prefetch_radius must not be negative", ErrInvalidConfig)
	case c.Playback.DegradeThreshold < 1:
		return fmt.Errorf("%w: degrade_threshold must be at least 1", ErrInvalidConfig)
	case c.Playback.PrefetchRate < 0:
		return fmt.Errorf("%w: prefetch_rate must not be negative", ErrInvalidConfig)
	case c.Decoder.MediaDurationMs < 0:
		return fmt.Errorf("%w: media_duration_ms must not be negative", ErrInvalidConfig)
	case c.Scroll.ItemExtent <= 0:
		return fmt.Errorf("%w: item_extent must be positive", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
