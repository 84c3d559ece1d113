// Package main is the entry point for nightcrawler.
package main

import (
	"github.com/nightcrawler-video/nightcrawler/cmd"
	"github.com/nightcrawler-video/nightcrawler/config"
	"github.com/nightcrawler-video/nightcrawler/internal/cache"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/where"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cache.CollectGarbage(where.Recordings, where.Logs)

	cmd.Execute()
}
