package cmd

import (
	"testing"

	"github.com/nightcrawler-video/nightcrawler/config"
	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestConfigHelpers(t *testing.T) {
	Convey("Given the settings registry", t, func() {
		So(config.Setup(), ShouldBeNil)

		Convey("A misspelled key suggests the closest registered one", func() {
			_, err := field("playback.abr_safty")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, key.PlaybackABRSafety)

			f, err := field(key.PlaybackABRSafety)
			So(err, ShouldBeNil)
			So(f.Value, ShouldEqual, 70)
		})

		Convey("A parsed value is persisted to a new config file", func() {
			f, err := field(key.PlaybackMaxRetries)
			So(err, ShouldBeNil)
			value, err := f.Parse("5")
			So(err, ShouldBeNil)

			viper.Set(f.Key, value)
			Reset(func() { viper.Set(f.Key, f.Value) })
			So(persist(), ShouldBeNil)

			exists, err := filesystem.API().Exists(configFile())
			So(err, ShouldBeNil)
			So(exists, ShouldBeTrue)

			data, err := filesystem.API().ReadFile(configFile())
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "max_retries = 5")
		})
	})
}
