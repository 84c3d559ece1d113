package playback

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/internal/loop"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/sirupsen/logrus"
)

// Snapshot is a consistent view of the live session taken on the loop.
type Snapshot struct {
	SessionID   uuid.UUID
	AssetID     string
	State       State
	Levels      level.Catalog
	ActiveLevel int
	Position    float64
	Native      bool
	// Err is why the session failed, nil unless State is Failed.
	Err         error
}

// Manager keeps at most one live session bound to its sink.
//
// Host calls block until the loop has run them, so when Select returns the
// previous session is already destroyed and the next one is attaching.
type Manager struct {
	loop    *loop.Loop
	sink    media.Sink
	baseURL string
	opts    Options
	events  chan Event
	logger  *logrus.Entry

	current *Session
	closed  bool

	mu         sync.Mutex
	backlog    []Event
	forwarding bool
	closing    bool
}

// NewManager binds a manager to sink. baseURL locates the catalog API the
// manifests are served from.
func NewManager(l *loop.Loop, sink media.Sink, baseURL string, opts Options) *Manager {
	return &Manager{
		loop:    l,
		sink:    sink,
		baseURL: baseURL,
		opts:    opts.withDefaults(),
		events:  make(chan Event, 256),
		logger:  log.With(log.Fields{"component": "playback"}),
	}
}

// Events streams every session's notifications in the order they happened.
// Nothing is dropped: once the buffer fills, later events wait in a backlog
// until the reader catches up.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) publish(event Event) {
	if m.closed {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.backlog) == 0 {
		select {
		case m.events <- event:
			return
		default:
		}
	}

	m.backlog = append(m.backlog, event)
	if !m.forwarding {
		m.forwarding = true
		m.logger.Debugf("event buffer full, queueing %s", event.Kind)
		go m.forward()
	}
}

// forward moves the backlog into the event channel. The head stays queued
// until it is sent so publish cannot overtake it.
func (m *Manager) forward() {
	for {
		m.mu.Lock()
		if len(m.backlog) == 0 {
			m.forwarding = false
			if m.closing {
				close(m.events)
			}
			m.mu.Unlock()
			return
		}
		head := m.backlog[0]
		m.mu.Unlock()

		m.events <- head

		m.mu.Lock()
		m.backlog[0] = Event{}
		m.backlog = m.backlog[1:]
		m.mu.Unlock()
	}
}

// Select tears down the live session and starts playing assetID from the
// beginning. An empty assetID only tears down.
func (m *Manager) Select(assetID string) error {
	return m.SelectAt(assetID, 0)
}

// Continue is Select starting from the position the asset was left at.
func (m *Manager) Continue(assetID string) error {
	var position float64
	if m.opts.Positions != nil {
		if saved, ok := m.opts.Positions.Position(assetID); ok {
			position = saved
		}
	}

	return m.SelectAt(assetID, position)
}

// SelectAt is Select starting from position seconds.
func (m *Manager) SelectAt(assetID string, position float64) error {
	return m.loop.Do(func() {
		m.teardown()

		if assetID == "" || m.closed {
			return
		}

		url := catalog.ManifestURL(m.baseURL, assetID)
		m.current = newSession(m.loop, m.sink, assetID, url, position, m.opts, m.publish)
		m.current.logger.Infof("selected %s", url)
		m.current.start()
	})
}

// Teardown destroys the live session, leaving the sink unbound.
func (m *Manager) Teardown() error {
	return m.loop.Do(m.teardown)
}

func (m *Manager) teardown() {
	s := m.current
	if s == nil || s.state == Destroyed {
		return
	}

	s.destroy()

	if m.opts.Positions != nil && s.Watched() {
		if err := m.opts.Positions.SavePosition(s.AssetID, s.Position()); err != nil {
			s.logger.Warnf("save position: %v", err)
		}
	}
}

// RequestLevelChange pins a level of the live session, or restores
// automatic selection with level.Auto.
func (m *Manager) RequestLevelChange(index int) error {
	var err error
	if doErr := m.loop.Do(func() {
		s := m.current
		if s == nil || s.state == Destroyed {
			err = ErrNoSession
			return
		}
		err = s.coordinator.RequestLevel(s, index)
	}); doErr != nil {
		return doErr
	}

	return err
}

// Snapshot describes the live session. The zero Snapshot has State Idle.
func (m *Manager) Snapshot() Snapshot {
	var snapshot Snapshot
	_ = m.loop.Do(func() {
		s := m.current
		if s == nil {
			snapshot.ActiveLevel = level.Auto
			snapshot.Levels = level.NewCatalog(nil, level.Auto)
			return
		}

		snapshot = Snapshot{
			SessionID:   s.ID,
			AssetID:     s.AssetID,
			State:       s.state,
			Levels:      s.Catalog(),
			ActiveLevel: s.active,
			Position:    s.Position(),
			Native:      s.native,
			Err:         s.failure,
		}
	})

	return snapshot
}

// Levels returns the ladder of the live session.
func (m *Manager) Levels() []level.QualityLevel {
	return m.Snapshot().Levels.List()
}

// CurrentLevel returns the selected level of the live session, or level.Auto.
func (m *Manager) CurrentLevel() int {
	return m.Snapshot().Levels.Current()
}

// Close tears down the live session and closes the event stream once the
// backlog has been delivered.
func (m *Manager) Close() error {
	return m.loop.Do(func() {
		if m.closed {
			return
		}

		m.teardown()
		m.closed = true

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.forwarding {
			m.closing = true
			return
		}
		close(m.events)
	})
}
