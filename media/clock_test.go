package media

import (
	"bytes"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func chunk(start, duration float64) Chunk {
	return Chunk{Start: start, Duration: duration, Data: []byte{0x47, 0x00, 0x00}}
}

func TestClock(t *testing.T) {
	Convey("Given a headless clock sink", t, func() {
		now := &fakeNow{t: time.Unix(0, 0)}
		var recorded bytes.Buffer
		clock := NewClock(WithNow(now.Now), WithTick(5*time.Millisecond), WithRecorder(&recorded))
		defer clock.Close()

		Convey("It starts paused at zero", func() {
			So(clock.Paused(), ShouldBeTrue)
			So(clock.CurrentTime(), ShouldEqual, 0)
		})

		Convey("The playhead advances only through buffered media", func() {
			So(clock.Append(chunk(0, 10)), ShouldBeNil)
			So(clock.Play(), ShouldBeNil)

			now.Advance(4 * time.Second)
			So(clock.CurrentTime(), ShouldAlmostEqual, 4, 0.001)

			now.Advance(20 * time.Second)
			So(clock.CurrentTime(), ShouldAlmostEqual, 10, 0.001)

			Convey("And resumes from the stall point when more media arrives", func() {
				So(clock.Append(chunk(10, 10)), ShouldBeNil)
				So(clock.CurrentTime(), ShouldAlmostEqual, 10, 0.001)

				now.Advance(3 * time.Second)
				So(clock.CurrentTime(), ShouldAlmostEqual, 13, 0.001)
				So(clock.BufferedEnd(), ShouldAlmostEqual, 20, 0.001)
			})
		})

		Convey("Pausing freezes the playhead", func() {
			So(clock.Append(chunk(0, 10)), ShouldBeNil)
			So(clock.Play(), ShouldBeNil)
			now.Advance(2 * time.Second)
			So(clock.Pause(), ShouldBeNil)
			now.Advance(5 * time.Second)
			So(clock.CurrentTime(), ShouldAlmostEqual, 2, 0.001)
		})

		Convey("Seeking moves the playhead", func() {
			So(clock.Seek(42.5), ShouldBeNil)
			So(clock.CurrentTime(), ShouldEqual, 42.5)
		})

		Convey("Flushing drops every buffered range", func() {
			So(clock.Append(chunk(0, 10)), ShouldBeNil)
			So(clock.Flush(), ShouldBeNil)
			So(clock.BufferedEnd(), ShouldEqual, 0)
		})

		Convey("Appended bytes are recorded", func() {
			So(clock.Append(chunk(0, 10)), ShouldBeNil)
			So(clock.Append(chunk(10, 10)), ShouldBeNil)
			So(recorded.Len(), ShouldEqual, 6)
			So(clock.BytesAppended(), ShouldEqual, 6)
		})

		Convey("Reaching the end of stream fires Ended", func() {
			ended := make(chan Event, 1)
			remove := clock.AddListener(Ended, func(e Event) {
				select {
				case ended <- e:
				default:
				}
			})
			defer remove()

			So(clock.Append(chunk(0, 4)), ShouldBeNil)
			clock.EndOfStream()
			So(clock.Play(), ShouldBeNil)
			now.Advance(5 * time.Second)

			select {
			case e := <-ended:
				So(e.Position, ShouldAlmostEqual, 4, 0.001)
			case <-time.After(time.Second):
				So("ended event", ShouldEqual, "received")
			}
			So(clock.Paused(), ShouldBeTrue)
		})

		Convey("Native playback is unsupported", func() {
			So(clock.CanPlayNative("application/vnd.apple.mpegurl"), ShouldBeFalse)
			So(clock.LoadNative("http://localhost/master.m3u8"), ShouldEqual, ErrNativeUnsupported)
		})

		Convey("A closed clock rejects appends", func() {
			So(clock.Close(), ShouldBeNil)
			So(clock.Append(chunk(0, 1)), ShouldEqual, ErrClosed)
		})
	})
}
