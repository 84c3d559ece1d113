package version

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestCompare(t *testing.T) {
	Convey("Compare orders semantic versions", t, func() {
		cmp, err := Compare("v1.2.3", "1.2.3")
		So(err, ShouldBeNil)
		So(cmp, ShouldEqual, 0)

		cmp, _ = Compare("1.10.0", "1.9.9")
		So(cmp, ShouldEqual, 1)

		cmp, _ = Compare("0.3.1", "0.4.0")
		So(cmp, ShouldEqual, -1)

		_, err = Compare("latest", "0.3.1")
		So(errors.Is(err, ErrMalformed), ShouldBeTrue)
	})

	Convey("Given release tags with prereleases and build metadata", t, func() {
		Convey("A prerelease sorts before its release", func() {
			cmp, err := Compare("0.5.0-rc.1", "0.5.0")
			So(err, ShouldBeNil)
			So(cmp, ShouldEqual, -1)
		})

		Convey("Numeric identifiers compare as numbers", func() {
			cmp, _ := Compare("0.5.0-rc.10", "0.5.0-rc.9")
			So(cmp, ShouldEqual, 1)

			cmp, _ = Compare("0.5.0-alpha", "0.5.0-alpha.1")
			So(cmp, ShouldEqual, -1)
		})

		Convey("Build metadata is ignored and short tags are padded", func() {
			release, err := Parse("v1.2+linux")
			So(err, ShouldBeNil)
			So(release, ShouldResemble, Release{Major: 1, Minor: 2})
			So(release.String(), ShouldEqual, "1.2.0")
		})

		Convey("Only a parsed later release is newer", func() {
			So(Newer("0.4.1", "0.4.0"), ShouldBeTrue)
			So(Newer("0.4.0", "0.4.0"), ShouldBeFalse)
			So(Newer("nightly", "0.4.0"), ShouldBeFalse)
			So(Newer("1.0.0", "1.0.0-rc.2"), ShouldBeTrue)
		})

		Convey("Malformed tags are rejected", func() {
			for _, tag := range []string{"", "v", "1.2.3.4", "1.-2.0", "x.y.z"} {
				_, err := Parse(tag)
				So(errors.Is(err, ErrMalformed), ShouldBeTrue)
			}
		})
	})
}

func TestLatest(t *testing.T) {
	Convey("Given a release registry", t, func() {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte(`{"tag_name":"v0.4.0"}`))
		}))
		defer srv.Close()

		previous := releasesURL
		releasesURL = srv.URL
		defer func() { releasesURL = previous }()

		Convey("The tag is returned without its prefix and cached", func() {
			v, err := Latest(context.Background())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "0.4.0")

			v, err = Latest(context.Background())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "0.4.0")
			So(hits.Load(), ShouldEqual, 1)
		})
	})
}
