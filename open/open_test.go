package open

import (
	"testing"

	"github.com/nightcrawler-video/nightcrawler/constant"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCommand(t *testing.T) {
	Convey("Command should pick the platform launcher", t, func() {
		cmd, err := Command(constant.Linux, "/tmp/nightcrawler")
		So(err, ShouldBeNil)
		So(cmd.Args, ShouldResemble, []string{"xdg-open", "/tmp/nightcrawler"})

		cmd, err = Command(constant.Darwin, "/tmp/nightcrawler")
		So(err, ShouldBeNil)
		So(cmd.Args[0], ShouldEqual, "open")

		_, err = Command("plan9", "/tmp/nightcrawler")
		So(err, ShouldNotBeNil)
	})
}
