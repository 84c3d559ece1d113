// Package engine loads segmented (HLS) streams and feeds them to a media sink.
//
// An Engine is driven entirely through method calls and reports back through
// named events. It never decides what to do about a fatal error: that is left
// to whoever subscribed to EventError.
package engine

import (
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/media"
)

// EventName identifies an engine notification.
type EventName string

const (
	// EventManifestParsed fires once the master playlist has been parsed into a ladder.
	EventManifestParsed EventName = "manifestParsed"
	// EventLevelSwitched fires when media from a newly selected level has been buffered.
	EventLevelSwitched EventName = "levelSwitched"
	// EventFragBuffered fires after every segment appended to the sink.
	EventFragBuffered EventName = "fragBuffered"
	// EventBufferEOS fires once the last segment of a finished stream is appended.
	EventBufferEOS EventName = "bufferEOS"
	// EventError fires for both transient and fatal failures.
	EventError EventName = "error"
)

// Event carries the payload of a notification. Only the fields relevant to
// Name are set, except Generation which every event carries.
type Event struct {
	Name     EventName
	Levels   []level.QualityLevel
	Level    int
	Sequence uint64
	Err      *Error

	// Generation identifies the load that produced the event.
	Generation uint64
}

// Handler receives engine events on an engine goroutine.
type Handler func(Event)

// Engine is a segmented-stream player bound to one sink.
type Engine interface {
	// AttachMedia binds the engine to a sink. It fails with an AttachError
	// when the sink cannot accept engine-fed media.
	AttachMedia(sink media.Sink) error
	// LoadSource starts fetching the master playlist at url. Playback begins
	// at startPosition once the ladder is known.
	LoadSource(url string, startPosition float64)
	// On subscribes h to name and returns the function that unsubscribes it.
	On(name EventName, h Handler) (off func())
	Levels() []level.QualityLevel
	// CurrentLevel returns the pinned level index or level.Auto.
	CurrentLevel() int
	// ActiveLevel returns the level the buffered media currently comes from.
	ActiveLevel() int
	// SetCurrentLevel pins a level, or restores automatic selection with level.Auto.
	SetCurrentLevel(index int) error
	// Generation numbers the current load. It grows every time a load is
	// restarted, so events older than a level change can be told apart.
	Generation() uint64
	// StartLoad resumes loading after a fatal network error.
	StartLoad()
	// RecoverMediaError flushes the sink and reloads from the playhead after a fatal media error.
	RecoverMediaError()
	// Destroy stops every load and releases the sink. It is idempotent.
	Destroy()
}

// Factory constructs a fresh engine for each session.
type Factory func() Engine

// Supported reports whether an engine can drive sink.
func Supported(sink media.Sink) bool {
	_, ok := sink.(media.SourceBuffer)
	return ok
}
