package playback

import (
	"fmt"
	"time"

	"github.com/nightcrawler-video/nightcrawler/engine"
	"github.com/nightcrawler-video/nightcrawler/internal/loop"
	"github.com/nightcrawler-video/nightcrawler/level"
)

type pendingSwitch struct {
	target     int
	position   float64
	generation uint64
	deadline   *loop.Task
}

// Coordinator changes a session's level without losing its position.
//
// A switch pauses the sink, hands the new level to the engine and waits for
// the engine to buffer media from it. The wait is bounded by the settle
// delay; whichever comes first restores the position and resumes playback.
type Coordinator struct {
	delay time.Duration
}

// RequestLevel pins index, or restores automatic selection with level.Auto.
// Rejected requests leave the session untouched.
func (c *Coordinator) RequestLevel(s *Session, index int) error {
	switch {
	case s.state == Switching:
		return ErrSwitchInProgress
	case s.state != Playing:
		return fmt.Errorf("%w: %s", ErrNotPlaying, s.state)
	case s.native:
		return ErrNativePlayback
	case !s.Catalog().Valid(index):
		return fmt.Errorf("%w: %d of %d", ErrLevelOutOfRange, index, len(s.levels))
	}

	position := s.sink.CurrentTime()
	if err := s.sink.Pause(); err != nil {
		s.logger.Warnf("pause before switch: %v", err)
	}

	s.transition(Switching)

	if err := s.engine.SetCurrentLevel(index); err != nil {
		s.logger.Warnf("level %d rejected: %v", index, err)
		s.transition(Playing)
		c.resume(s)
		return fmt.Errorf("%w: %w", ErrSwitch, err)
	}

	s.position = position
	s.current = index
	s.publishLevels()

	p := &pendingSwitch{target: index, position: position, generation: s.engine.Generation()}
	p.deadline = s.loop.AfterFunc(c.delay, func() {
		if s.pending == p {
			s.logger.Debugf("level %d not confirmed within %s", index, c.delay)
			c.settle(s)
		}
	})
	s.pending = p
	return nil
}

// confirm completes the pending switch once media from the requested level
// is buffered. Events from loads the switch superseded confirm nothing.
func (c *Coordinator) confirm(s *Session, event engine.Event) {
	p := s.pending
	if p == nil {
		return
	}

	if event.Generation < p.generation {
		s.logger.Debugf("ignoring level %d buffered before the switch", event.Level)
		return
	}

	if p.target != level.Auto && p.target != event.Level {
		return
	}

	c.settle(s)
}

// settle restores the captured position and returns the session to Playing.
func (c *Coordinator) settle(s *Session) {
	p := s.pending
	if p == nil || s.state != Switching {
		return
	}

	p.deadline.Cancel()
	s.pending = nil

	if err := s.sink.Seek(p.position); err != nil {
		s.logger.Warnf("restore position: %v", err)
	}

	s.transition(Playing)
	c.resume(s)
	s.emit(Event{Kind: LevelSwitched, Level: s.active})
}

// abandon drops an in-flight switch without touching the sink.
func (c *Coordinator) abandon(s *Session) {
	if s.pending == nil {
		return
	}

	s.pending.deadline.Cancel()
	s.pending = nil
}

func (c *Coordinator) resume(s *Session) {
	if err := s.sink.Play(); err != nil {
		s.logger.Warnf("resume: %v", err)
	}
}
