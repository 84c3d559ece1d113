package playback

import (
	"time"

	"github.com/nightcrawler-video/nightcrawler/engine"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/spf13/viper"
)

const (
	// DefaultAttachSettleDelay debounces engine attachment after a session starts.
	DefaultAttachSettleDelay = 2 * time.Second
	// DefaultSwitchSettleDelay bounds how long a switch waits for the engine to confirm the new level.
	DefaultSwitchSettleDelay = 2 * time.Second
)

// EngineNative forces the sink to play the manifest itself.
const EngineNative = "native"

// Options configures the sessions a Manager creates.
type Options struct {
	AttachSettleDelay time.Duration
	SwitchSettleDelay time.Duration
	// NewEngine builds the engine of each session.
	NewEngine engine.Factory
	// Native skips the engine even when the sink could take its media.
	Native bool
	// Positions, when set, remembers where each asset was left.
	Positions PositionStore
}

// PositionStore persists the last known playback position per asset.
type PositionStore interface {
	Position(assetID string) (float64, bool)
	SavePosition(assetID string, seconds float64) error
}

// DefaultOptions returns options with the default delays and an HLS engine factory.
func DefaultOptions() Options {
	return Options{
		AttachSettleDelay: DefaultAttachSettleDelay,
		SwitchSettleDelay: DefaultSwitchSettleDelay,
		NewEngine:         engine.NewFactory(engine.DefaultConfig()),
	}
}

// OptionsFromViper reads the playback.* settings.
func OptionsFromViper() Options {
	opts := DefaultOptions()

	if d := viper.GetDuration(key.PlaybackAttachSettleDelay); d >= 0 && viper.IsSet(key.PlaybackAttachSettleDelay) {
		opts.AttachSettleDelay = d
	}

	if d := viper.GetDuration(key.PlaybackSwitchSettleDelay); d > 0 {
		opts.SwitchSettleDelay = d
	}

	opts.NewEngine = engine.NewFactory(engine.ConfigFromViper())
	opts.Native = viper.GetString(key.PlaybackEngine) == EngineNative
	return opts
}

func (o Options) withDefaults() Options {
	if o.AttachSettleDelay < 0 {
		o.AttachSettleDelay = 0
	}

	if o.SwitchSettleDelay <= 0 {
		o.SwitchSettleDelay = DefaultSwitchSettleDelay
	}

	if o.NewEngine == nil {
		o.NewEngine = engine.NewFactory(engine.DefaultConfig())
	}

	return o
}
