package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		Convey("Should initialize without error", func() {
			err := Setup()
			So(err, ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			_ = Setup()
			for name := range Default {
				So(viper.Get(name), ShouldNotBeNil)
			}
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			result := EnvKeyReplacer.Replace("playback.attach_settle_delay")
			So(result, ShouldEqual, "playback_attach_settle_delay")
		})
	})
}

func TestFieldEnv(t *testing.T) {
	Convey("Given a registered field", t, func() {
		field := Default[key.PlaybackSwitchSettleDelay]

		Convey("Env should be prefixed with the application name", func() {
			So(field.Env(), ShouldEqual, "NIGHTCRAWLER_PLAYBACK_SWITCH_SETTLE_DELAY")
		})

		Convey("Settle delays should parse as durations", func() {
			_ = Setup()
			So(viper.GetDuration(key.PlaybackAttachSettleDelay).Seconds(), ShouldEqual, 2)
			So(viper.GetDuration(key.PlaybackSwitchSettleDelay).Seconds(), ShouldEqual, 2)
		})
	})
}

func TestFieldParse(t *testing.T) {
	Convey("Given values typed on the command line", t, func() {
		parse := func(k string, raw ...string) (any, error) {
			field := Default[k]
			return field.Parse(raw...)
		}

		Convey("Every registered key accepts its own default", func() {
			for k, field := range Default {
				raw := []string{fmt.Sprint(field.Value)}
				if list, ok := field.Value.([]string); ok {
					raw = list
				}
				if len(raw) == 0 {
					continue
				}

				_, err := field.Parse(raw...)
				So(err, ShouldBeNil)
				So(k, ShouldEqual, field.Key)
			}
		})

		Convey("Values are decoded to the type of the default", func() {
			v, err := parse(key.PlaybackMaxRetries, "5")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 5)

			v, err = parse(key.TUIShowURLs, "true")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, true)

			v, err = parse(key.PlaybackSwitchSettleDelay, "750ms")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "750ms")
		})

		Convey("Values that do not fit the key are rejected", func() {
			for _, c := range []struct {
				key string
				raw []string
			}{
				{key.PlaybackMaxRetries, []string{"three"}},
				{key.PlaybackABRSafety, []string{"0"}},
				{key.PlaybackStartLevel, []string{"-2"}},
				{key.LogsJson, []string{"maybe"}},
				{key.PlaybackAttachSettleDelay, []string{"2"}},
				{key.CatalogCacheTTL, []string{"-1m"}},
				{key.PlaybackEngine, []string{"dash"}},
				{key.PlayerSink, []string{"vlc"}},
				{key.CatalogBaseURL, []string{"localhost:8000"}},
				{key.LogsLevel, []string{"info", "debug"}},
				{key.IconsVariant, nil},
			} {
				_, err := parse(c.key, c.raw...)
				So(errors.Is(err, ErrInvalidValue), ShouldBeTrue)
			}
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given the factory defaults", t, func() {
		So(Setup(), ShouldBeNil)
		So(Validate(), ShouldBeNil)

		Convey("A bad override from any source is reported with its key", func() {
			viper.Set(key.PlaybackABRSafety, 0)
			viper.Set(key.PlayerSink, "vlc")
			Reset(func() {
				viper.Set(key.PlaybackABRSafety, Default[key.PlaybackABRSafety].Value)
				viper.Set(key.PlayerSink, Default[key.PlayerSink].Value)
			})

			err := Validate()
			So(errors.Is(err, ErrInvalidValue), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, key.PlaybackABRSafety)
			So(err.Error(), ShouldContainSubstring, key.PlayerSink)
		})
	})
}
