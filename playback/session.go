package playback

import (
	"github.com/google/uuid"
	"github.com/nightcrawler-video/nightcrawler/constant"
	"github.com/nightcrawler-video/nightcrawler/engine"
	"github.com/nightcrawler-video/nightcrawler/internal/loop"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/nightcrawler-video/nightcrawler/recovery"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Session plays one asset on one sink.
//
// Every method runs on the owning loop. Engine and sink callbacks are posted
// back to that loop and dropped once the session is destroyed or its engine
// has been replaced.
type Session struct {
	ID       uuid.UUID
	AssetID  string
	URL      string
	StartsAt float64

	loop        *loop.Loop
	sink        media.Sink
	opts        Options
	coordinator *Coordinator
	publish     func(Event)
	logger      *logrus.Entry

	state    State
	resume   State
	played   bool
	loading  bool
	native   bool
	engine   engine.Engine
	offs     []func()
	levels   []level.QualityLevel
	current  int
	active   int
	position float64
	failure  error
	attempts map[recovery.Category]int
	attach   *loop.Task
	pending  *pendingSwitch
}

func newSession(l *loop.Loop, sink media.Sink, assetID, url string, startAt float64, opts Options, publish func(Event)) *Session {
	id := uuid.New()
	return &Session{
		ID:          id,
		AssetID:     assetID,
		URL:         url,
		StartsAt:    startAt,
		loop:        l,
		sink:        sink,
		opts:        opts,
		coordinator: &Coordinator{delay: opts.SwitchSettleDelay},
		publish:     publish,
		logger:      log.With(log.Fields{"session": id.String(), "asset": assetID}),
		state:       Idle,
		current:     level.Auto,
		active:      level.Auto,
		position:    startAt,
		attempts:    make(map[recovery.Category]int),
	}
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return s.state
}

// Catalog returns a snapshot of the ladder and the selected level.
func (s *Session) Catalog() level.Catalog {
	return level.NewCatalog(s.levels, s.current)
}

// ActiveLevel returns the level media is currently buffered from.
func (s *Session) ActiveLevel() int {
	return s.active
}

// Native reports whether the sink plays the manifest by itself.
func (s *Session) Native() bool {
	return s.native
}

// Position returns the last known playhead position.
func (s *Session) Position() float64 {
	if s.state.Live() {
		s.position = s.sink.CurrentTime()
	}
	return s.position
}

// Watched reports whether playback ever started.
func (s *Session) Watched() bool {
	return s.played
}

func (s *Session) emit(event Event) {
	event.SessionID = s.ID
	event.AssetID = s.AssetID
	s.publish(event)
}

func (s *Session) transition(to State) {
	if s.state == to {
		return
	}

	s.logger.Debugf("%s -> %s", s.state, to)
	s.state = to
	if to == Playing {
		s.played = true
	}
	s.emit(Event{Kind: StateChanged, State: to})
}

func (s *Session) setLoading(loading bool) {
	if s.loading == loading {
		return
	}

	s.loading = loading
	s.emit(Event{Kind: LoadingChanged, Loading: loading})
}

func (s *Session) publishLevels() {
	s.emit(Event{Kind: LevelsChanged, Levels: s.Catalog()})
}

// start moves the session to Attaching and schedules the attach step.
func (s *Session) start() {
	s.transition(Attaching)
	s.setLoading(true)
	s.attach = s.loop.AfterFunc(s.opts.AttachSettleDelay, s.attachMedia)
}

func (s *Session) attachMedia() {
	s.attach = nil
	if s.state != Attaching {
		return
	}

	s.subscribeSink()

	if s.opts.Native || !engine.Supported(s.sink) {
		s.attachNative()
		return
	}

	eng := s.opts.NewEngine()
	s.engine = eng
	s.subscribeEngine(eng)

	if err := eng.AttachMedia(s.sink); err != nil {
		s.fail(err)
		return
	}

	s.transition(ManifestPending)
	eng.LoadSource(s.URL, s.StartsAt)
}

func (s *Session) attachNative() {
	if !s.sink.CanPlayNative(constant.MimeHLSPlaylist) {
		s.fail(&engine.Error{Kind: engine.AttachError, Category: recovery.CategoryOther, Fatal: true, URL: s.URL, Err: ErrNoPlaybackPath})
		return
	}

	s.native = true
	s.transition(ManifestPending)

	if err := s.sink.LoadNative(s.URL); err != nil {
		s.fail(&engine.Error{Kind: engine.AttachError, Category: recovery.CategoryOther, Fatal: true, URL: s.URL, Err: err})
	}
}

// on posts engine callbacks to the loop, dropping them once eng is stale.
func (s *Session) on(eng engine.Engine, name engine.EventName, fn func(engine.Event)) {
	off := eng.On(name, func(event engine.Event) {
		s.loop.Post(func() {
			if s.state == Destroyed || s.engine != eng {
				return
			}
			fn(event)
		})
	})
	s.offs = append(s.offs, off)
}

func (s *Session) subscribeEngine(eng engine.Engine) {
	s.on(eng, engine.EventManifestParsed, s.onManifestParsed)
	s.on(eng, engine.EventLevelSwitched, s.onLevelSwitched)
	s.on(eng, engine.EventFragBuffered, s.onProgress)
	s.on(eng, engine.EventError, s.onError)
	s.on(eng, engine.EventBufferEOS, func(engine.Event) {
		s.logger.Debug("end of stream buffered")
	})
}

func (s *Session) listen(name media.EventName, fn func(media.Event)) {
	off := s.sink.AddListener(name, func(event media.Event) {
		s.loop.Post(func() {
			if s.state == Destroyed {
				return
			}
			fn(event)
		})
	})
	s.offs = append(s.offs, off)
}

func (s *Session) subscribeSink() {
	s.listen(media.MetadataLoaded, s.onMetadataLoaded)
	s.listen(media.TimeUpdate, func(event media.Event) {
		s.position = event.Position
	})
	s.listen(media.Ended, s.onEnded)
}

func (s *Session) onManifestParsed(event engine.Event) {
	if s.state == Recovering && s.resume == ManifestPending {
		s.recovered()
	}

	s.levels = append([]level.QualityLevel(nil), event.Levels...)
	s.current = s.engine.CurrentLevel()
	s.publishLevels()

	if s.state != ManifestPending {
		return
	}

	s.transition(Playing)
	if err := s.sink.Play(); err != nil {
		s.logger.Warnf("play: %v", err)
	}
	s.setLoading(false)
}

func (s *Session) onMetadataLoaded(media.Event) {
	if !s.native || s.state != ManifestPending {
		return
	}

	s.publishLevels()
	s.transition(Playing)
	if err := s.sink.Play(); err != nil {
		s.logger.Warnf("play: %v", err)
	}
	s.setLoading(false)
}

func (s *Session) onLevelSwitched(event engine.Event) {
	if s.pending != nil {
		if event.Generation >= s.pending.generation {
			s.active = event.Level
		}
		s.coordinator.confirm(s, event)
		return
	}

	s.active = event.Level

	s.emit(Event{Kind: LevelSwitched, Level: event.Level})
}

// onProgress resets recovery bookkeeping once the engine buffers media again.
func (s *Session) onProgress(engine.Event) {
	clear(s.attempts)

	if s.state == Recovering {
		s.recovered()
	}
}

func (s *Session) onError(event engine.Event) {
	fault := event.Err
	if fault == nil {
		return
	}

	action := recovery.Classify(fault, s.attempts[fault.Category])
	s.logger.WithFields(logrus.Fields{
		"kind":   fault.Kind,
		"action": action,
	}).Warn(fault)

	switch action {
	case recovery.Ignore:
	case recovery.RetryNetwork:
		s.attempts[fault.Category]++
		s.recovering()
		s.engine.StartLoad()
	case recovery.RecoverMedia:
		s.attempts[fault.Category]++
		s.recovering()
		s.engine.RecoverMediaError()
	default:
		s.fail(fault)
	}
}

func (s *Session) recovering() {
	if s.state == Switching {
		s.coordinator.settle(s)
	}

	if s.state == Recovering {
		return
	}

	s.resume = s.state
	s.transition(Recovering)
	s.setLoading(true)
}

func (s *Session) recovered() {
	to := s.resume
	s.transition(to)

	if to == Playing {
		s.setLoading(false)
	}
}

func (s *Session) onEnded(media.Event) {
	if !s.state.Live() {
		return
	}

	if err := s.sink.Seek(0); err != nil {
		s.logger.Warnf("rewind: %v", err)
	}

	if err := s.sink.Pause(); err != nil {
		s.logger.Warnf("pause: %v", err)
	}
	s.position = 0
}

// fail releases the engine and parks the session in Failed.
func (s *Session) fail(err error) {
	if s.state.Terminal() {
		return
	}

	s.cancelTasks()
	s.release()

	if err := s.sink.Pause(); err != nil {
		s.logger.Warnf("pause: %v", err)
	}

	s.logger.Errorf("session failed: %v", err)
	s.failure = err
	s.transition(Failed)
	s.setLoading(false)
	s.emit(Event{Kind: ErrorOccurred, Err: err, Terminal: true})
}

// destroy tears the session down. Calling it again is a no-op.
func (s *Session) destroy() {
	if s.state == Destroyed {
		return
	}

	if s.state.Live() {
		s.position = s.sink.CurrentTime()
	}

	s.cancelTasks()
	s.release()

	if s.state != Idle {
		if err := s.sink.Pause(); err != nil {
			s.logger.Warnf("pause: %v", err)
		}
	}

	s.levels = nil
	s.current = level.Auto
	s.transition(Destroyed)
	s.setLoading(false)
}

func (s *Session) cancelTasks() {
	s.attach.Cancel()
	s.attach = nil
	s.coordinator.abandon(s)
}

// release detaches every listener and destroys the engine.
func (s *Session) release() {
	lo.ForEach(s.offs, func(off func(), _ int) {
		off()
	})
	s.offs = nil

	if s.engine != nil {
		s.engine.Destroy()
		s.engine = nil
	}
}
