package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/nightcrawler-video/nightcrawler/engine"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/recovery"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestQualitySwitch(t *testing.T) {
	Convey("Given a playing session", t, func() {
		sink := newBufferSink()
		h := newHarness(t, sink, nil, nil)
		eng := h.playing("a1")
		sink.set(42)
		h.drain()

		Convey("Pinning a level switches and restores the position", func() {
			So(h.manager.RequestLevelChange(1), ShouldBeNil)
			So(h.waitState(Playing), ShouldBeTrue)

			So(h.manager.CurrentLevel(), ShouldEqual, 1)
			So(eng.CurrentLevel(), ShouldEqual, 1)
			So(sink.CurrentTime(), ShouldEqual, 42)
			So(sink.Paused(), ShouldBeFalse)

			events := h.drain()
			So(states(events), ShouldResemble, []State{Switching, Playing})

			switched, ok := lo.Find(events, func(e Event) bool { return e.Kind == LevelSwitched })
			So(ok, ShouldBeTrue)
			So(switched.Level, ShouldEqual, 1)
			So(h.manager.Snapshot().ActiveLevel, ShouldEqual, 1)
		})

		Convey("A sequence of accepted switches ends at the last request", func() {
			for _, index := range []int{1, level.Auto, 0, 1} {
				sink.set(float64(10 + index))
				So(h.manager.RequestLevelChange(index), ShouldBeNil)
				So(h.waitState(Playing), ShouldBeTrue)
				So(sink.CurrentTime(), ShouldEqual, float64(10+index))
			}

			So(h.manager.CurrentLevel(), ShouldEqual, 1)
			So(h.state(), ShouldEqual, Playing)
		})

		Convey("Restoring automatic selection is accepted", func() {
			So(h.manager.RequestLevelChange(1), ShouldBeNil)
			So(h.waitState(Playing), ShouldBeTrue)
			So(h.manager.RequestLevelChange(level.Auto), ShouldBeNil)
			So(h.waitState(Playing), ShouldBeTrue)
			So(h.manager.CurrentLevel(), ShouldEqual, level.Auto)
		})

		Convey("An out of range index is rejected without mutation", func() {
			for _, index := range []int{2, 7, -2} {
				err := h.manager.RequestLevelChange(index)
				So(errors.Is(err, ErrLevelOutOfRange), ShouldBeTrue)
			}

			So(h.state(), ShouldEqual, Playing)
			So(h.manager.CurrentLevel(), ShouldEqual, level.Auto)
			So(eng.CurrentLevel(), ShouldEqual, level.Auto)
			So(sink.Paused(), ShouldBeFalse)
			So(h.drain(), ShouldBeEmpty)
		})

		Convey("An engine refusal keeps playing at the prior level", func() {
			eng.mu.Lock()
			eng.setErr = engine.ErrLevelOutOfRange
			eng.mu.Unlock()

			err := h.manager.RequestLevelChange(1)
			So(errors.Is(err, ErrSwitch), ShouldBeTrue)
			So(errors.Is(err, engine.ErrLevelOutOfRange), ShouldBeTrue)

			So(h.state(), ShouldEqual, Playing)
			So(h.manager.CurrentLevel(), ShouldEqual, level.Auto)
			So(sink.Paused(), ShouldBeFalse)
		})
	})

	Convey("Given an engine that never confirms a switch", t, func() {
		sink := newBufferSink()
		h := newHarness(t, sink, func(o *Options) { o.SwitchSettleDelay = 40 * time.Millisecond }, func(f *fakeEngine) {
			f.confirm = false
		})
		eng := h.playing("a1")
		sink.set(42)

		Convey("The settle delay completes the switch", func() {
			So(h.manager.RequestLevelChange(1), ShouldBeNil)
			So(h.state(), ShouldEqual, Switching)
			So(sink.Paused(), ShouldBeTrue)

			So(h.waitState(Playing), ShouldBeTrue)
			So(sink.CurrentTime(), ShouldEqual, 42)
			So(h.manager.CurrentLevel(), ShouldEqual, 1)
		})

		Convey("A second request while switching is rejected", func() {
			So(h.manager.RequestLevelChange(1), ShouldBeNil)

			err := h.manager.RequestLevelChange(0)
			So(errors.Is(err, ErrSwitchInProgress), ShouldBeTrue)
			So(h.manager.CurrentLevel(), ShouldEqual, 1)
			So(eng.CurrentLevel(), ShouldEqual, 1)

			So(h.waitState(Playing), ShouldBeTrue)
			So(h.manager.CurrentLevel(), ShouldEqual, 1)
		})

		Convey("Teardown invalidates the pending switch", func() {
			So(h.manager.RequestLevelChange(1), ShouldBeNil)
			So(h.manager.Teardown(), ShouldBeNil)

			time.Sleep(80 * time.Millisecond)
			So(h.state(), ShouldEqual, Destroyed)
			So(sink.Paused(), ShouldBeTrue)
			_, seeked := sink.lastSeek()
			So(seeked, ShouldBeFalse)
		})

		Convey("A terminal error mid-switch fails the session", func() {
			So(h.manager.RequestLevelChange(1), ShouldBeNil)
			eng.fail(engine.ManifestError, recovery.CategoryOther, true)

			So(h.waitState(Failed), ShouldBeTrue)
			So(eng.isDestroyed(), ShouldBeTrue)

			time.Sleep(80 * time.Millisecond)
			So(h.state(), ShouldEqual, Failed)
		})
	})

	Convey("Given an engine that confirms only when told", t, func() {
		sink := newBufferSink()
		h := newHarness(t, sink, nil, func(f *fakeEngine) {
			f.confirm = false
		})
		eng := h.playing("a1")
		sink.set(42)

		Convey("Media buffered by the superseded load does not confirm an automatic switch", func() {
			before := eng.Generation()
			So(h.manager.RequestLevelChange(level.Auto), ShouldBeNil)
			So(eng.Generation(), ShouldBeGreaterThan, before)

			eng.fire(engine.Event{Name: engine.EventLevelSwitched, Level: 1, Generation: before})
			h.barrier()
			So(h.state(), ShouldEqual, Switching)
			So(sink.Paused(), ShouldBeTrue)
			So(h.manager.Snapshot().ActiveLevel, ShouldNotEqual, 1)

			eng.fire(engine.Event{Name: engine.EventLevelSwitched, Level: 0, Generation: eng.Generation()})
			So(h.waitState(Playing), ShouldBeTrue)
			So(sink.CurrentTime(), ShouldEqual, 42)
			So(h.manager.Snapshot().ActiveLevel, ShouldEqual, 0)
		})
	})

	Convey("Given a session that is not playing yet", t, func() {
		sink := newBufferSink()
		h := newHarness(t, sink, nil, nil)
		So(h.manager.Select("a1"), ShouldBeNil)
		So(h.waitState(ManifestPending), ShouldBeTrue)

		Convey("Switch requests are rejected without mutation", func() {
			err := h.manager.RequestLevelChange(level.Auto)
			So(errors.Is(err, ErrNotPlaying), ShouldBeTrue)
			So(h.state(), ShouldEqual, ManifestPending)
			So(h.engines.last().CurrentLevel(), ShouldEqual, level.Auto)
		})
	})
}

func TestRecovery(t *testing.T) {
	Convey("Given a playing session", t, func() {
		sink := newBufferSink()
		h := newHarness(t, sink, nil, nil)
		eng := h.playing("a1")
		So(h.manager.RequestLevelChange(1), ShouldBeNil)
		So(h.waitState(Playing), ShouldBeTrue)
		h.drain()

		Convey("A fatal network segment error reloads in place", func() {
			eng.fail(engine.SegmentError, recovery.CategoryNetwork, true)
			So(h.waitState(Recovering), ShouldBeTrue)

			startLoads, _ := eng.counts()
			So(startLoads, ShouldEqual, 1)
			So(h.manager.Levels(), ShouldHaveLength, 2)
			So(h.manager.CurrentLevel(), ShouldEqual, 1)
			So(eng.isDestroyed(), ShouldBeFalse)

			Convey("Progress returns the session to Playing", func() {
				eng.fire(engine.Event{Name: engine.EventFragBuffered, Level: 1})
				So(h.waitState(Playing), ShouldBeTrue)
				So(h.manager.Levels(), ShouldHaveLength, 2)
				So(h.manager.CurrentLevel(), ShouldEqual, 1)

				loading := lo.Filter(h.drain(), func(e Event, _ int) bool { return e.Kind == LoadingChanged })
				So(lo.Map(loading, func(e Event, _ int) bool { return e.Loading }), ShouldResemble, []bool{true, false})

				Convey("And the next failure is recovered again", func() {
					eng.fail(engine.SegmentError, recovery.CategoryNetwork, true)
					So(h.waitState(Recovering), ShouldBeTrue)
					startLoads, _ := eng.counts()
					So(startLoads, ShouldEqual, 2)
				})
			})

			Convey("A repeated failure without progress terminates", func() {
				eng.fail(engine.SegmentError, recovery.CategoryNetwork, true)
				So(h.waitState(Failed), ShouldBeTrue)
				So(eng.isDestroyed(), ShouldBeTrue)

				failure, ok := lo.Find(h.drain(), func(e Event) bool { return e.Kind == ErrorOccurred })
				So(ok, ShouldBeTrue)
				So(failure.Terminal, ShouldBeTrue)
			})
		})

		Convey("A fatal media error is recovered in place", func() {
			eng.fail(engine.MediaDecodeError, recovery.CategoryMedia, true)
			So(h.waitState(Recovering), ShouldBeTrue)

			_, recoveries := eng.counts()
			So(recoveries, ShouldEqual, 1)
			So(h.manager.CurrentLevel(), ShouldEqual, 1)
		})

		Convey("Transient errors are ignored", func() {
			eng.fail(engine.SegmentError, recovery.CategoryNetwork, false)
			h.barrier()

			So(h.state(), ShouldEqual, Playing)
			startLoads, recoveries := eng.counts()
			So(startLoads+recoveries, ShouldEqual, 0)
		})

		Convey("An unrecoverable error fails the session", func() {
			eng.fail(engine.KeyError, recovery.CategoryOther, true)
			So(h.waitState(Failed), ShouldBeTrue)
			So(eng.isDestroyed(), ShouldBeTrue)
			So(h.manager.RequestLevelChange(0), ShouldNotBeNil)

			Convey("Only teardown follows a failure", func() {
				eng.fire(engine.Event{Name: engine.EventFragBuffered})
				h.barrier()
				So(h.state(), ShouldEqual, Failed)

				So(h.manager.Teardown(), ShouldBeNil)
				So(h.state(), ShouldEqual, Destroyed)
			})
		})
	})

	Convey("Given a session waiting for its manifest", t, func() {
		sink := newBufferSink()
		h := newHarness(t, sink, nil, nil)
		So(h.manager.Select("a1"), ShouldBeNil)
		So(h.waitState(ManifestPending), ShouldBeTrue)
		eng := h.engines.last()

		Convey("A manifest fetch failure retries and the parse resumes playback", func() {
			eng.fail(engine.ManifestError, recovery.CategoryNetwork, true)
			So(h.waitState(Recovering), ShouldBeTrue)

			eng.parse(ladder)
			So(h.waitState(Playing), ShouldBeTrue)
			So(h.manager.Levels(), ShouldHaveLength, 2)
		})

		Convey("A terminal error fails it", func() {
			eng.fail(engine.ManifestError, recovery.CategoryOther, true)
			So(h.waitState(Failed), ShouldBeTrue)
			So(eng.isDestroyed(), ShouldBeTrue)
		})
	})
}
