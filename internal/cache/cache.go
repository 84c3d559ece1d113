// Package cache prunes stale artifacts left behind by earlier runs, such as
// headless recordings and temporary files.
package cache

import (
	"os"
	"time"

	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/log"
)

// TTL is how long an artifact survives after its last modification.
const TTL = 7 * 24 * time.Hour

// Prune removes every regular file under dir older than ttl and reports how
// many files were removed. A missing dir is not an error.
func Prune(dir string, ttl time.Duration, now time.Time) (int, error) {
	fs := filesystem.API()

	exists, err := fs.DirExists(dir)
	if err != nil || !exists {
		return 0, err
	}

	var removed int
	err = fs.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		if now.Sub(info.ModTime()) > ttl {
			if err := fs.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})

	return removed, err
}

// CollectGarbage prunes every dir in the background.
func CollectGarbage(dirs ...func() string) {
	go func() {
		for _, dir := range dirs {
			path := dir()
			n, err := Prune(path, TTL, time.Now())
			if err != nil {
				log.Warnf("prune %s: %v", path, err)
				continue
			}
			if n > 0 {
				log.Infof("pruned %d stale files from %s", n, path)
			}
		}
	}()
}
