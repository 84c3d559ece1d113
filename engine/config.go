package engine

import (
	"net/http"
	"time"

	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/network"
	"github.com/spf13/viper"
)

// Config tunes an HLS engine.
type Config struct {
	// MaxBufferAhead is how many seconds of media may be buffered past the playhead.
	MaxBufferAhead float64
	// MaxRetries is how many times a request is retried before the failure turns fatal.
	MaxRetries int
	// RetryDelay is the first backoff step. It doubles on every retry.
	RetryDelay time.Duration
	// ABRSafety is the percentage of the measured throughput automatic selection may spend.
	ABRSafety int
	// StartLevel is the level loaded before any throughput is known, level.Auto for the first advertised one.
	StartLevel int
	// PollInterval is how often a full buffer is re-checked.
	PollInterval time.Duration
	Client       *http.Client
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		MaxBufferAhead: 30,
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
		ABRSafety:      70,
		StartLevel:     level.Auto,
		PollInterval:   250 * time.Millisecond,
		Client:         network.Client,
	}
}

// ConfigFromViper overlays the playback.* settings on DefaultConfig.
func ConfigFromViper() Config {
	cfg := DefaultConfig()

	if v := viper.GetFloat64(key.PlaybackMaxBufferAhead); v > 0 {
		cfg.MaxBufferAhead = v
	}

	if v := viper.GetInt(key.PlaybackMaxRetries); v >= 0 {
		cfg.MaxRetries = v
	}

	if v := viper.GetInt(key.PlaybackABRSafety); v > 0 && v <= 100 {
		cfg.ABRSafety = v
	}

	cfg.StartLevel = viper.GetInt(key.PlaybackStartLevel)
	return cfg
}
