package query

import (
	"testing"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
	// Ensure suggestions are enabled for tests
	viper.Set(key.SearchShowQuerySuggestions, true)
}

func TestQuery(t *testing.T) {
	Convey("Given query history", t, func() {
		// suggestionCache is package state, so every case uses its own queries.

		q1 := "night drive"
		q2 := "harbor"

		Convey("When remembering queries", func() {
			err := Remember(q1, 1)
			So(err, ShouldBeNil)
			err = Remember(q2, 10) // Higher weight
			So(err, ShouldBeNil)

			Convey("Then suggestions should be sorted by rank", func() {
				suggestionCache = make(map[string][]*queryRecord)
				viper.Set(key.SearchShowQuerySuggestions, true)

				s := SuggestMany("harb")
				So(len(s), ShouldBeGreaterThanOrEqualTo, 1)
				So(s[0], ShouldEqual, "harbor")
			})

			Convey("It sanitizes input", func() {
				So(sanitize("  HARBOR  "), ShouldEqual, "harbor")
			})
		})
	})
}

func TestFilter(t *testing.T) {
	Convey("Given catalog titles", t, func() {
		titles := []string{"Night Drive", "Harbor at Dawn", "Night Market"}
		identity := func(s string) string { return s }

		Convey("An empty query keeps everything in order", func() {
			So(Filter(titles, "  ", identity), ShouldResemble, titles)
		})

		Convey("Fuzzy matches are kept and ranked", func() {
			So(Filter(titles, "night", identity), ShouldResemble, []string{"Night Drive", "Night Market"})
			So(Filter(titles, "hbr", identity), ShouldResemble, []string{"Harbor at Dawn"})
		})

		Convey("Rank reports positions in the input", func() {
			So(Rank("market", titles), ShouldResemble, []int{2})
			So(Rank("", titles), ShouldResemble, []int{0, 1, 2})
		})

		Convey("Nothing matches nonsense", func() {
			So(Filter(titles, "zzz", identity), ShouldBeEmpty)
		})
	})
}
