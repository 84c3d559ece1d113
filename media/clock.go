package media

import (
	"errors"
	"io"
	"sort"
	"sync"
	"time"
)

// ErrNativeUnsupported is returned by sinks that cannot fetch sources themselves.
var ErrNativeUnsupported = errors.New("sink cannot play sources natively")

// ErrClosed is returned once a sink has been closed.
var ErrClosed = errors.New("sink is closed")

const epsilon = 1e-3

type span struct {
	start, end float64
}

// Clock is a headless SourceBuffer. It keeps a virtual playhead that advances
// in wall-clock time while playing and stalls at the edge of the buffered
// media. Appended bytes are optionally copied to a recorder.
type Clock struct {
	mu sync.Mutex

	now    func() time.Time
	tick   time.Duration
	record io.Writer

	playing bool
	base    float64
	since   time.Time
	spans   []span
	eos     bool
	ended   bool
	bytes   int64

	listeners map[EventName]map[int]Listener
	nextID    int

	stop   chan struct{}
	closed bool
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithNow replaces the wall clock the playhead advances with.
func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) {
		c.now = now
	}
}

// WithTick sets how often TimeUpdate fires while playing.
func WithTick(d time.Duration) ClockOption {
	return func(c *Clock) {
		c.tick = d
	}
}

// WithRecorder copies every appended chunk to w.
func WithRecorder(w io.Writer) ClockOption {
	return func(c *Clock) {
		c.record = w
	}
}

// NewClock returns a paused Clock positioned at zero.
func NewClock(options ...ClockOption) *Clock {
	c := &Clock{
		now:       time.Now,
		tick:      250 * time.Millisecond,
		listeners: make(map[EventName]map[int]Listener),
		stop:      make(chan struct{}),
	}

	for _, option := range options {
		option(c)
	}

	c.since = c.now()
	go c.run()
	return c
}

func (c *Clock) run() {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.update()
		}
	}
}

func (c *Clock) update() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}

	pos := c.position()
	var events []Event
	events = append(events, Event{Name: TimeUpdate, Position: pos})

	if c.eos && !c.ended && len(c.spans) > 0 && pos >= c.spans[len(c.spans)-1].end-epsilon {
		c.ended = true
		c.playing = false
		c.base = pos
		events = append(events, Event{Name: Ended, Position: pos})
	}
	c.mu.Unlock()

	for _, event := range events {
		c.emit(event)
	}
}

// position must be called with mu held.
func (c *Clock) position() float64 {
	if !c.playing {
		return c.base
	}

	pos := c.base + c.now().Sub(c.since).Seconds()
	if edge := c.edge(c.base); pos > edge {
		pos = edge
	}
	return pos
}

// edge returns the end of the contiguous buffered span containing from.
func (c *Clock) edge(from float64) float64 {
	for _, s := range c.spans {
		if s.start <= from+epsilon && from < s.end {
			return s.end
		}
	}
	return from
}

// rebase folds elapsed time into base so stalls are not counted twice.
func (c *Clock) rebase() {
	c.base = c.position()
	c.since = c.now()
}

func (c *Clock) insert(s span) {
	c.spans = append(c.spans, s)
	sort.Slice(c.spans, func(i, j int) bool {
		return c.spans[i].start < c.spans[j].start
	})

	merged := c.spans[:1]
	for _, next := range c.spans[1:] {
		last := &merged[len(merged)-1]
		if next.start <= last.end+epsilon {
			last.end = max(last.end, next.end)
			continue
		}
		merged = append(merged, next)
	}
	c.spans = merged
}

func (c *Clock) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if !c.playing {
		c.playing = true
		c.since = c.now()
	}
	return nil
}

func (c *Clock) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.base = c.position()
	c.playing = false
	return nil
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.playing
}

func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position()
}

func (c *Clock) Seek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.base = max(seconds, 0)
	c.since = c.now()
	c.ended = false
	return nil
}

// BufferedEnd returns the end of the contiguous buffered range at the playhead.
func (c *Clock) BufferedEnd() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edge(c.position())
}

// BytesAppended returns the total size of every chunk appended so far.
func (c *Clock) BytesAppended() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

func (c *Clock) CanPlayNative(string) bool {
	return false
}

func (c *Clock) LoadNative(string) error {
	return ErrNativeUnsupported
}

func (c *Clock) Append(chunk Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.record != nil {
		if _, err := c.record.Write(chunk.Data); err != nil {
			return err
		}
	}

	c.rebase()
	c.insert(span{start: chunk.Start, end: chunk.End()})
	c.bytes += int64(len(chunk.Data))
	return nil
}

func (c *Clock) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.base = c.position()
	c.since = c.now()
	c.spans = nil
	c.eos = false
	return nil
}

func (c *Clock) EndOfStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eos = true
}

func (c *Clock) AddListener(name EventName, fn Listener) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	if c.listeners[name] == nil {
		c.listeners[name] = make(map[int]Listener)
	}
	c.listeners[name][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[name], id)
	}
}

func (c *Clock) emit(event Event) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners[event.Name]))
	for _, fn := range c.listeners[event.Name] {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (c *Clock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.playing = false
	close(c.stop)
	return nil
}
