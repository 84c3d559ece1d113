// Package media defines the playback surface a stream is rendered to.
//
// A Sink is the equivalent of a video element: it owns a playhead and can be
// paused, resumed and seeked. Sinks that also implement SourceBuffer accept
// media fed by the segmented-stream engine; the others can only be handed a
// manifest URL and play it themselves.
package media

// EventName identifies a sink notification.
type EventName string

const (
	// MetadataLoaded fires once a natively loaded source has its duration and tracks.
	MetadataLoaded EventName = "loadedmetadata"
	// TimeUpdate fires periodically while the playhead advances.
	TimeUpdate EventName = "timeupdate"
	// Ended fires when the playhead reaches the end of the stream.
	Ended EventName = "ended"
)

// Event is delivered to sink listeners.
type Event struct {
	Name     EventName
	Position float64
}

// Listener receives sink events. Listeners run on the sink's own goroutine
// and must hand work off rather than block.
type Listener func(Event)

// Sink is a playback surface.
type Sink interface {
	Play() error
	Pause() error
	Paused() bool
	// CurrentTime returns the playhead position in seconds.
	CurrentTime() float64
	Seek(seconds float64) error
	// CanPlayNative reports whether the sink can fetch and play a source of the given MIME type by itself.
	CanPlayNative(mime string) bool
	LoadNative(url string) error
	// AddListener subscribes fn to name and returns the function that removes it.
	AddListener(name EventName, fn Listener) (remove func())
	Close() error
}

// Chunk is one media segment handed to a SourceBuffer.
type Chunk struct {
	Level    int
	Sequence uint64
	Start    float64
	Duration float64
	Data     []byte
}

// End returns the presentation time the chunk ends at.
func (c Chunk) End() float64 {
	return c.Start + c.Duration
}

// SourceBuffer is implemented by sinks that accept engine-fed media.
type SourceBuffer interface {
	Sink
	Append(c Chunk) error
	// Flush drops everything buffered so no previously appended media is presented.
	Flush() error
	// EndOfStream marks the last chunk as appended.
	EndOfStream()
}

// Interruptible is a SourceBuffer whose Append can block for a long time,
// typically because a downstream player stopped reading.
type Interruptible interface {
	// Interrupt makes blocked and later appends fail fast until resume is called.
	Interrupt() (resume func())
}
