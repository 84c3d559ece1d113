package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/nightcrawler-video/nightcrawler/network"
	"github.com/nightcrawler-video/nightcrawler/recovery"
	"github.com/sirupsen/logrus"
)

const tsSyncByte = 0x47

// generationKey carries the generation of a load in its context.
type generationKey struct{}

// HLS is the Engine implementation for HTTP Live Streaming sources.
//
// Every load runs on its own goroutine bound to a context. Starting a new
// load cancels the previous one and waits out the append it has in flight,
// so no media from a superseded load reaches the sink after the call that
// superseded it returns. Appends happen outside the engine lock; a sink
// that can block in Append should be media.Interruptible.
type HLS struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	abr    *estimator
	logger *logrus.Entry

	// feed is held across the context check and Append. It is never held
	// together with mu by a load.
	feed sync.Mutex

	mu         sync.Mutex
	sink       media.SourceBuffer
	source     string
	start      float64
	levels     []level.QualityLevel
	variants   map[int]*variant
	keys       map[string][]byte
	manual     int
	active     int
	announce   bool
	generation uint64
	stopLoad   context.CancelFunc
	destroyed  bool
	handlers   map[EventName]map[int]Handler
	nextHandle int
}

// NewHLS returns an engine with no media attached.
func NewHLS(cfg Config) *HLS {
	if cfg.Client == nil {
		cfg.Client = network.Client
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HLS{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		abr:      newEstimator(),
		logger:   log.With(log.Fields{"component": "engine"}),
		manual:   level.Auto,
		active:   level.Auto,
		variants: make(map[int]*variant),
		keys:     make(map[string][]byte),
		handlers: make(map[EventName]map[int]Handler),
	}
}

// NewFactory returns a Factory producing HLS engines configured with cfg.
func NewFactory(cfg Config) Factory {
	return func() Engine {
		return NewHLS(cfg)
	}
}

func (h *HLS) AttachMedia(sink media.Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return &Error{Kind: AttachError, Category: recovery.CategoryOther, Fatal: true, Err: ErrDestroyed}
	}

	buffer, ok := sink.(media.SourceBuffer)
	if !ok {
		return &Error{Kind: AttachError, Category: recovery.CategoryOther, Fatal: true, Err: ErrIncompatibleSink}
	}

	h.sink = buffer
	return nil
}

func (h *HLS) LoadSource(source string, startPosition float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return
	}

	h.source = source
	h.start = startPosition
	h.levels = nil
	h.variants = make(map[int]*variant)

	ctx := h.restartLocked()
	go h.loadManifest(ctx)
}

func (h *HLS) On(name EventName, handler Handler) (off func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return func() {}
	}

	id := h.nextHandle
	h.nextHandle++

	if h.handlers[name] == nil {
		h.handlers[name] = make(map[int]Handler)
	}
	h.handlers[name][id] = handler

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.handlers[name], id)
	}
}

func (h *HLS) Levels() []level.QualityLevel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]level.QualityLevel(nil), h.levels...)
}

func (h *HLS) CurrentLevel() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manual
}

func (h *HLS) ActiveLevel() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *HLS) SetCurrentLevel(index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.destroyed:
		return ErrDestroyed
	case index != level.Auto && (index < 0 || index >= len(h.levels)):
		return fmt.Errorf("%w: %d", ErrLevelOutOfRange, index)
	case h.sink == nil:
		return ErrNotAttached
	}

	h.manual = index
	if len(h.levels) == 0 {
		return nil
	}

	h.announce = true
	h.stopLocked()

	pos := h.sink.CurrentTime()
	if err := h.sink.Flush(); err != nil {
		return err
	}

	h.logger.WithField("level", index).Debugf("switching level at %.2fs", pos)

	ctx := h.restartLocked()
	go h.load(ctx, pos)
	return nil
}

func (h *HLS) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

func (h *HLS) StartLoad() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed || h.source == "" {
		return
	}

	ctx := h.restartLocked()
	if len(h.levels) == 0 {
		go h.loadManifest(ctx)
		return
	}

	if h.sink == nil {
		return
	}

	go h.load(ctx, h.sink.CurrentTime())
}

func (h *HLS) RecoverMediaError() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed || h.sink == nil || len(h.levels) == 0 {
		return
	}

	h.stopLocked()
	pos := h.sink.CurrentTime()
	if err := h.sink.Flush(); err != nil {
		h.logger.Warnf("flush before media recovery: %v", err)
	}

	h.keys = make(map[string][]byte)
	ctx := h.restartLocked()
	go h.load(ctx, pos)
}

func (h *HLS) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}

	h.destroyed = true
	h.stopLocked()
	h.cancel()
	h.handlers = nil
	sink := h.sink
	h.sink = nil
	h.mu.Unlock()

	if sink != nil {
		if err := sink.Flush(); err != nil {
			h.logger.Warnf("flush on destroy: %v", err)
		}
	}
}

// stopLocked cancels the running load, if any, and returns once it can no
// longer append.
func (h *HLS) stopLocked() {
	if h.stopLoad == nil {
		return
	}

	h.stopLoad()
	h.stopLoad = nil

	resume := func() {}
	if sink, ok := h.sink.(media.Interruptible); ok {
		resume = sink.Interrupt()
	}
	h.feed.Lock()
	h.feed.Unlock()
	resume()
}

// restartLocked cancels the running load and returns the context of the next one.
func (h *HLS) restartLocked() context.Context {
	h.stopLocked()
	h.generation++
	ctx, cancel := context.WithCancel(context.WithValue(h.ctx, generationKey{}, h.generation))
	h.stopLoad = cancel
	return ctx
}

func (h *HLS) emit(ctx context.Context, event Event) {
	event.Generation, _ = ctx.Value(generationKey{}).(uint64)

	h.mu.Lock()
	if h.destroyed || ctx.Err() != nil {
		h.mu.Unlock()
		return
	}

	handlers := make([]Handler, 0, len(h.handlers[event.Name]))
	for _, handler := range h.handlers[event.Name] {
		handlers = append(handlers, handler)
	}
	h.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// fail reports err as fatal unless ctx was cancelled first.
func (h *HLS) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	engineErr, ok := err.(*Error)
	if !ok {
		engineErr = &Error{Kind: SegmentError, Category: recovery.CategoryOther, Fatal: true, Err: err}
	}

	h.logger.WithField("kind", engineErr.Kind).Error(engineErr)
	h.emit(ctx, Event{Name: EventError, Err: engineErr})
}

func (h *HLS) loadManifest(ctx context.Context) {
	h.mu.Lock()
	source, start := h.source, h.start
	h.mu.Unlock()

	body, _, err := h.fetch(ctx, ManifestError, source)
	if err != nil {
		h.fail(ctx, err)
		return
	}

	base, err := url.Parse(source)
	if err != nil {
		h.fail(ctx, &Error{Kind: ManifestError, Category: recovery.CategoryOther, Fatal: true, URL: source, Err: err})
		return
	}

	levels, err := parseMaster(bytes.NewReader(body), base)
	if err != nil {
		h.fail(ctx, &Error{Kind: ManifestError, Category: recovery.CategoryOther, Fatal: true, URL: source, Err: err})
		return
	}

	h.mu.Lock()
	if ctx.Err() != nil {
		h.mu.Unlock()
		return
	}
	h.levels = levels
	if h.manual >= len(levels) {
		h.manual = level.Auto
	}
	sink := h.sink
	h.mu.Unlock()

	h.logger.Infof("parsed %d levels from %s", len(levels), source)
	h.emit(ctx, Event{Name: EventManifestParsed, Levels: append([]level.QualityLevel(nil), levels...)})

	if sink == nil {
		h.fail(ctx, &Error{Kind: AttachError, Category: recovery.CategoryOther, Fatal: true, Err: ErrNotAttached})
		return
	}

	if start > 0 {
		if err := sink.Seek(start); err != nil {
			h.logger.Warnf("seek to start position: %v", err)
		}
	}

	h.load(ctx, start)
}

// nextLevelLocked chooses the level of the next segment.
func (h *HLS) nextLevelLocked() int {
	if h.manual != level.Auto {
		return h.manual
	}

	if bps, ok := h.abr.estimate(); ok {
		return chooseLevel(h.levels, bps, h.cfg.ABRSafety)
	}

	if h.cfg.StartLevel >= 0 && h.cfg.StartLevel < len(h.levels) {
		return h.cfg.StartLevel
	}

	return 0
}

func (h *HLS) load(ctx context.Context, pos float64) {
	for ctx.Err() == nil {
		h.mu.Lock()
		index := h.nextLevelLocked()
		sink := h.sink
		h.mu.Unlock()

		if sink == nil {
			h.fail(ctx, &Error{Kind: AttachError, Category: recovery.CategoryOther, Fatal: true, Err: ErrNotAttached})
			return
		}

		playlist, err := h.variant(ctx, index)
		if err != nil {
			h.fail(ctx, err)
			return
		}

		seg, ok := playlist.segmentAt(pos)
		if !ok {
			if playlist.Closed {
				sink.EndOfStream()
				h.emit(ctx, Event{Name: EventBufferEOS, Level: index})
				return
			}

			h.forget(index)
			if !sleep(ctx, time.Duration(playlist.TargetDuration*float64(time.Second)/2)) {
				return
			}
			continue
		}

		if pos-sink.CurrentTime() > h.cfg.MaxBufferAhead {
			if !sleep(ctx, h.cfg.PollInterval) {
				return
			}
			continue
		}

		data, err := h.segment(ctx, seg)
		if err != nil {
			h.fail(ctx, err)
			return
		}

		h.feed.Lock()
		if ctx.Err() != nil {
			h.feed.Unlock()
			return
		}
		err = sink.Append(media.Chunk{
			Level:    index,
			Sequence: seg.Sequence,
			Start:    seg.Start,
			Duration: seg.Duration,
			Data:     data,
		})
		h.feed.Unlock()

		h.mu.Lock()
		if ctx.Err() != nil {
			// superseded while appending; an interrupted append is not a fault
			h.mu.Unlock()
			return
		}
		switched := h.announce || index != h.active
		if err == nil {
			h.active = index
			h.announce = false
		}
		h.mu.Unlock()

		if err != nil {
			h.fail(ctx, &Error{Kind: MediaDecodeError, Category: recovery.CategoryMedia, Fatal: true, URL: seg.URI, Err: err})
			return
		}

		if switched {
			h.emit(ctx, Event{Name: EventLevelSwitched, Level: index})
		}
		h.emit(ctx, Event{Name: EventFragBuffered, Level: index, Sequence: seg.Sequence})

		pos = seg.End()
	}
}

func (h *HLS) forget(index int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.variants, index)
}

// variant returns the playlist of level index, fetching it on first use.
func (h *HLS) variant(ctx context.Context, index int) (*variant, error) {
	h.mu.Lock()
	if v, ok := h.variants[index]; ok {
		h.mu.Unlock()
		return v, nil
	}
	uri := h.levels[index].URI
	h.mu.Unlock()

	body, _, err := h.fetch(ctx, ManifestError, uri)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(uri)
	if err != nil {
		return nil, &Error{Kind: ManifestError, Category: recovery.CategoryOther, Fatal: true, URL: uri, Err: err}
	}

	v, err := parseMedia(bytes.NewReader(body), base)
	if err != nil {
		return nil, &Error{Kind: ManifestError, Category: recovery.CategoryOther, Fatal: true, URL: uri, Err: err}
	}

	h.mu.Lock()
	h.variants[index] = v
	h.mu.Unlock()
	return v, nil
}

// segment downloads, decrypts and validates one segment.
func (h *HLS) segment(ctx context.Context, seg segment) ([]byte, error) {
	data, elapsed, err := h.fetch(ctx, SegmentError, seg.URI)
	if err != nil {
		return nil, err
	}
	h.abr.observe(len(data), elapsed)

	if seg.Key != nil {
		if seg.Key.Method != "AES-128" {
			return nil, &Error{Kind: KeyError, Category: recovery.CategoryOther, Fatal: true, URL: seg.Key.URI, Err: fmt.Errorf("%w: %s", ErrUnsupportedCipher, seg.Key.Method)}
		}

		key, err := h.key(ctx, seg.Key.URI)
		if err != nil {
			return nil, err
		}

		data, err = decryptSegment(data, key, seg.Key.IV, seg.Sequence)
		if err != nil {
			return nil, &Error{Kind: MediaDecodeError, Category: recovery.CategoryMedia, Fatal: true, URL: seg.URI, Err: err}
		}
	}

	if isTransportStream(seg.URI) && (len(data) == 0 || data[0] != tsSyncByte) {
		return nil, &Error{Kind: MediaDecodeError, Category: recovery.CategoryMedia, Fatal: true, URL: seg.URI, Err: ErrInvalidSegment}
	}

	return data, nil
}

func (h *HLS) key(ctx context.Context, uri string) ([]byte, error) {
	h.mu.Lock()
	if k, ok := h.keys[uri]; ok {
		h.mu.Unlock()
		return k, nil
	}
	h.mu.Unlock()

	k, _, err := h.fetch(ctx, KeyError, uri)
	if err != nil {
		return nil, err
	}

	if len(k) != 16 {
		return nil, &Error{Kind: KeyError, Category: recovery.CategoryOther, Fatal: true, URL: uri, Err: fmt.Errorf("key is %d bytes, want 16", len(k))}
	}

	h.mu.Lock()
	h.keys[uri] = k
	h.mu.Unlock()
	return k, nil
}

// fetch GETs uri, retrying with exponential backoff. Every failed attempt but
// the last is reported as a transient error; the last one is returned fatal.
func (h *HLS) fetch(ctx context.Context, kind Kind, uri string) ([]byte, time.Duration, error) {
	var last error
	for attempt := 0; ; attempt++ {
		started := time.Now()
		body, err := h.get(ctx, uri)
		if err == nil {
			return body, time.Since(started), nil
		}

		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}

		last = err
		if attempt >= h.cfg.MaxRetries {
			break
		}

		h.logger.WithField("attempt", attempt+1).Warnf("%s request failed: %v", kind, err)
		h.emit(ctx, Event{Name: EventError, Err: &Error{Kind: kind, Category: recovery.CategoryNetwork, URL: uri, Err: err}})

		if !sleep(ctx, h.cfg.RetryDelay<<attempt) {
			return nil, 0, ctx.Err()
		}
	}

	return nil, 0, &Error{Kind: kind, Category: recovery.CategoryNetwork, Fatal: true, URL: uri, Err: last}
}

func (h *HLS) get(ctx context.Context, uri string) ([]byte, error) {
	req, err := network.NewRequest(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func isTransportStream(uri string) bool {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return path.Ext(parsed.Path) == ".ts"
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
