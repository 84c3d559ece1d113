package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nightcrawler-video/nightcrawler/engine"
	"github.com/nightcrawler-video/nightcrawler/internal/loop"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/nightcrawler-video/nightcrawler/recovery"
	"github.com/samber/mo"
)

var ladder = []level.QualityLevel{
	{Index: 0, Height: mo.Some(360), Bitrate: 500_000},
	{Index: 1, Height: mo.Some(720), Bitrate: 1_500_000},
}

// fakeEngine records calls and lets tests fire events at the session.
type fakeEngine struct {
	mu sync.Mutex

	sink      media.Sink
	url       string
	start     float64
	levels    []level.QualityLevel
	manual    int
	loads     uint64
	handlers  map[engine.EventName]map[int]engine.Handler
	next      int
	destroyed bool

	attachErr  error
	setErr     error
	confirm    bool
	startLoads int
	recoveries int
}

func (f *fakeEngine) AttachMedia(sink media.Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	f.sink = sink
	return nil
}

func (f *fakeEngine) LoadSource(url string, start float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url, f.start = url, start
}

func (f *fakeEngine) On(name engine.EventName, h engine.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	if f.handlers[name] == nil {
		f.handlers[name] = make(map[int]engine.Handler)
	}
	f.handlers[name][id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[name], id)
	}
}

func (f *fakeEngine) Levels() []level.QualityLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]level.QualityLevel(nil), f.levels...)
}

func (f *fakeEngine) CurrentLevel() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manual
}

func (f *fakeEngine) ActiveLevel() int {
	return f.CurrentLevel()
}

func (f *fakeEngine) SetCurrentLevel(index int) error {
	f.mu.Lock()
	if f.setErr != nil {
		f.mu.Unlock()
		return f.setErr
	}
	f.manual = index
	f.loads++
	loads := f.loads
	confirm := f.confirm
	sink := f.sink
	f.mu.Unlock()

	// Flushing and refilling moves the playhead away from where the switch started.
	if s, ok := sink.(*bufferSink); ok {
		s.drift()
	}

	if confirm {
		active := index
		if active == level.Auto {
			active = 0
		}
		f.fire(engine.Event{Name: engine.EventLevelSwitched, Level: active, Generation: loads})
	}
	return nil
}

func (f *fakeEngine) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeEngine) StartLoad() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startLoads++
}

func (f *fakeEngine) RecoverMediaError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recoveries++
}

func (f *fakeEngine) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	f.sink = nil
}

func (f *fakeEngine) fire(event engine.Event) {
	f.mu.Lock()
	var handlers []engine.Handler
	for _, h := range f.handlers[event.Name] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func (f *fakeEngine) parse(levels []level.QualityLevel) {
	f.mu.Lock()
	f.levels = levels
	f.mu.Unlock()
	f.fire(engine.Event{Name: engine.EventManifestParsed, Levels: levels})
}

func (f *fakeEngine) fail(kind engine.Kind, category recovery.Category, fatal bool) {
	f.fire(engine.Event{Name: engine.EventError, Err: &engine.Error{Kind: kind, Category: category, Fatal: fatal}})
}

func (f *fakeEngine) isDestroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

func (f *fakeEngine) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, hs := range f.handlers {
		n += len(hs)
	}
	return n
}

func (f *fakeEngine) counts() (startLoads, recoveries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startLoads, f.recoveries
}

// engines builds fake engines and remembers whether two were ever live at once.
type engines struct {
	mu       sync.Mutex
	built    []*fakeEngine
	overlap  bool
	setup    func(*fakeEngine)
	attached func() bool
}

func (e *engines) factory() engine.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, prev := range e.built {
		if !prev.isDestroyed() {
			e.overlap = true
		}
	}

	f := &fakeEngine{
		manual:   level.Auto,
		confirm:  true,
		handlers: make(map[engine.EventName]map[int]engine.Handler),
	}
	if e.setup != nil {
		e.setup(f)
	}
	e.built = append(e.built, f)
	return f
}

func (e *engines) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.built)
}

func (e *engines) last() *fakeEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.built) == 0 {
		return nil
	}
	return e.built[len(e.built)-1]
}

func (e *engines) live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, f := range e.built {
		if !f.isDestroyed() {
			n++
		}
	}
	return n
}

// nativeSink can only play manifests by itself.
type nativeSink struct {
	mu        sync.Mutex
	position  float64
	paused    bool
	seeks     []float64
	native    bool
	loaded    string
	listeners map[media.EventName]map[int]media.Listener
	next      int
}

func newNativeSink(native bool) *nativeSink {
	return &nativeSink{paused: true, native: native, listeners: make(map[media.EventName]map[int]media.Listener)}
}

func (s *nativeSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *nativeSink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *nativeSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *nativeSink) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *nativeSink) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = seconds
	s.seeks = append(s.seeks, seconds)
	return nil
}

func (s *nativeSink) CanPlayNative(string) bool {
	return s.native
}

func (s *nativeSink) LoadNative(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = url
	return nil
}

func (s *nativeSink) AddListener(name media.EventName, fn media.Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	if s.listeners[name] == nil {
		s.listeners[name] = make(map[int]media.Listener)
	}
	s.listeners[name][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[name], id)
	}
}

func (s *nativeSink) Close() error {
	return nil
}

func (s *nativeSink) fire(event media.Event) {
	s.mu.Lock()
	var listeners []media.Listener
	for _, fn := range s.listeners[event.Name] {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (s *nativeSink) subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ls := range s.listeners {
		n += len(ls)
	}
	return n
}

func (s *nativeSink) set(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
}

func (s *nativeSink) lastSeek() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seeks) == 0 {
		return 0, false
	}
	return s.seeks[len(s.seeks)-1], true
}

func (s *nativeSink) source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// bufferSink accepts engine-fed media.
type bufferSink struct {
	*nativeSink
}

func newBufferSink() *bufferSink {
	return &bufferSink{nativeSink: newNativeSink(false)}
}

func (s *bufferSink) Append(media.Chunk) error { return nil }
func (s *bufferSink) Flush() error             { return nil }
func (s *bufferSink) EndOfStream()             {}

func (s *bufferSink) drift() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = 0
}

// memoryPositions is an in-memory PositionStore.
type memoryPositions struct {
	mu        sync.Mutex
	positions map[string]float64
}

func (m *memoryPositions) Position(id string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	return p, ok
}

func (m *memoryPositions) SavePosition(id string, seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[id] = seconds
	return nil
}

type harness struct {
	manager *Manager
	engines *engines
	loop    *loop.Loop
}

func newHarness(t *testing.T, sink media.Sink, configure func(*Options), setup func(*fakeEngine)) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	l := loop.New(ctx, 64)
	e := &engines{setup: setup}

	opts := Options{
		AttachSettleDelay: 20 * time.Millisecond,
		SwitchSettleDelay: 2 * time.Second,
		NewEngine:         e.factory,
	}
	if configure != nil {
		configure(&opts)
	}

	h := &harness{
		manager: NewManager(l, sink, "http://backend/api/v1", opts),
		engines: e,
		loop:    l,
	}

	t.Cleanup(func() {
		_ = h.manager.Close()
		cancel()
		l.Wait()
	})
	return h
}

// barrier waits until everything already posted to the loop has run.
func (h *harness) barrier() {
	_ = h.loop.Do(func() {})
}

func (h *harness) state() State {
	return h.manager.Snapshot().State
}

// waitFor polls cond until it holds or a second passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func (h *harness) waitState(state State) bool {
	return waitFor(func() bool { return h.state() == state })
}

// playing selects id and drives the session to Playing with the fixture ladder.
func (h *harness) playing(id string) *fakeEngine {
	if err := h.manager.Select(id); err != nil {
		panic(err)
	}
	if !h.waitState(ManifestPending) {
		panic("session never attached")
	}
	eng := h.engines.last()
	eng.parse(ladder)
	if !h.waitState(Playing) {
		panic("session never started playing")
	}
	return eng
}

// drain returns every event already published.
func (h *harness) drain() []Event {
	h.barrier()
	var events []Event
	for {
		select {
		case e, ok := <-h.manager.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

func states(events []Event) []State {
	var out []State
	for _, e := range events {
		if e.Kind == StateChanged {
			out = append(out, e.State)
		}
	}
	return out
}
