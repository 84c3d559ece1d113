package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoop(t *testing.T) {
	Convey("Given a running loop", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		l := New(ctx, 16)

		Convey("Posted callbacks run in order", func() {
			var order []int
			for i := 0; i < 5; i++ {
				i := i
				So(l.Post(func() { order = append(order, i) }), ShouldBeTrue)
			}
			So(l.Do(func() {}), ShouldBeNil)
			So(order, ShouldResemble, []int{0, 1, 2, 3, 4})
		})

		Convey("Do waits for the callback to finish", func() {
			var ran atomic.Bool
			So(l.Do(func() {
				time.Sleep(5 * time.Millisecond)
				ran.Store(true)
			}), ShouldBeNil)
			So(ran.Load(), ShouldBeTrue)
		})

		Convey("AfterFunc runs the continuation on the loop", func() {
			fired := make(chan struct{})
			l.AfterFunc(time.Millisecond, func() { close(fired) })
			select {
			case <-fired:
			case <-time.After(time.Second):
				So("continuation did not fire", ShouldBeEmpty)
			}
		})

		Convey("A cancelled task never runs", func() {
			var ran atomic.Bool
			task := l.AfterFunc(5*time.Millisecond, func() { ran.Store(true) })
			So(task.Cancel(), ShouldBeTrue)
			time.Sleep(20 * time.Millisecond)
			So(l.Do(func() {}), ShouldBeNil)
			So(ran.Load(), ShouldBeFalse)
		})

		Convey("A task cancelled while queued behind other work never runs", func() {
			var ran atomic.Bool
			var task *Task
			release := make(chan struct{})
			l.Post(func() { <-release })
			task = l.AfterFunc(0, func() { ran.Store(true) })
			time.Sleep(10 * time.Millisecond)
			task.Cancel()
			close(release)
			So(l.Do(func() {}), ShouldBeNil)
			So(ran.Load(), ShouldBeFalse)
		})

		Convey("A closed loop rejects work", func() {
			l.Close()
			l.Wait()
			So(l.Post(func() {}), ShouldBeFalse)
			So(l.Do(func() {}), ShouldEqual, ErrClosed)
		})
	})
}
