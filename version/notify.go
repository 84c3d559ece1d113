package version

import (
	"context"
	"fmt"
	"time"

	"github.com/nightcrawler-video/nightcrawler/color"
	"github.com/nightcrawler-video/nightcrawler/constant"
	"github.com/nightcrawler-video/nightcrawler/icon"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/style"
	"github.com/nightcrawler-video/nightcrawler/util"
	"github.com/spf13/viper"
)

// Notify prints a banner when a newer release exists. The check gives up
// after a few seconds so a slow network never delays the command.
func Notify() {
	if !viper.GetBool(key.CliVersionCheck) {
		return
	}

	erase := util.PrintErasable(fmt.Sprintf("%s Checking if new version is available...", icon.Get(icon.Loading)))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	version, err := Latest(ctx)
	cancel()
	erase()
	if err != nil {
		return
	}

	if !Newer(version, constant.Version) {
		return
	}

	fmt.Printf(`
%s New version is available %s %s
%s

`,
		style.Fg(color.Green)("▇▇▇"),
		style.Bold(version),
		style.Faint(fmt.Sprintf("(You're on %s)", constant.Version)),
		style.Faint("https://github.com/"+constant.Repository+"/releases/tag/v"+version),
	)
}
