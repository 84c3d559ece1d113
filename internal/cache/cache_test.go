package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPrune(t *testing.T) {
	Convey("Given a directory with old and fresh recordings", t, func() {
		filesystem.SetMemMapFs()
		fs := filesystem.API()

		dir := "/cache/recordings"
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		old := filepath.Join(dir, "old.ts")
		fresh := filepath.Join(dir, "nested", "fresh.ts")
		So(fs.WriteFile(old, []byte{0x47}, 0644), ShouldBeNil)
		So(fs.WriteFile(fresh, []byte{0x47}, 0644), ShouldBeNil)
		So(fs.Chtimes(old, now.Add(-8*24*time.Hour), now.Add(-8*24*time.Hour)), ShouldBeNil)
		So(fs.Chtimes(fresh, now.Add(-time.Hour), now.Add(-time.Hour)), ShouldBeNil)

		Convey("Prune should only remove expired files", func() {
			n, err := Prune(dir, TTL, now)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			exists, _ := fs.Exists(old)
			So(exists, ShouldBeFalse)
			exists, _ = fs.Exists(fresh)
			So(exists, ShouldBeTrue)
		})

		Convey("A missing directory should be ignored", func() {
			n, err := Prune("/nowhere", TTL, now)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})
}
