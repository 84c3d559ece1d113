// Package player provides the media sinks a session can render to.
// The primary sink drives an external mpv process through its JSON-IPC interface.
package player

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/nightcrawler-video/nightcrawler/where"
	"github.com/spf13/viper"
)

const (
	SinkMPV      = "mpv"
	SinkHeadless = "headless"
)

// Available lists the sink names NewSink accepts.
var Available = []string{SinkMPV, SinkHeadless}

// NewSink builds the sink called name. title labels the mpv window.
func NewSink(name, title string) (media.Sink, error) {
	switch name {
	case SinkMPV:
		return NewMPV(title), nil
	case SinkHeadless:
		return newHeadless()
	default:
		return nil, fmt.Errorf("unknown sink %q, available: %v", name, Available)
	}
}

// NewSinkFromViper builds the sink selected by player.sink.
func NewSinkFromViper(title string) (media.Sink, error) {
	return NewSink(viper.GetString(key.PlayerSink), title)
}

// newHeadless returns a clock sink, recording the stream when player.output names a file.
func newHeadless() (media.Sink, error) {
	output := viper.GetString(key.PlayerOutput)
	if output == "" {
		return media.NewClock(), nil
	}

	if !filepath.IsAbs(output) {
		output = filepath.Join(where.Recordings(), output)
	}

	file, err := filesystem.CreateAll(output)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	return &recordingClock{Clock: media.NewClock(media.WithRecorder(file)), file: file}, nil
}

// recordingClock closes its recording together with the clock.
type recordingClock struct {
	*media.Clock
	file interface{ Close() error }
}

func (r *recordingClock) Close() error {
	_ = r.Clock.Close()
	return r.file.Close()
}

// closeTimeout bounds how long Close waits for mpv to quit gracefully.
const closeTimeout = 3 * time.Second
