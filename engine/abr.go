package engine

import (
	"sync"
	"time"

	"github.com/nightcrawler-video/nightcrawler/level"
)

// estimator tracks throughput as an exponentially weighted moving average.
type estimator struct {
	mu     sync.Mutex
	alpha  float64
	bps    float64
	sample bool
}

func newEstimator() *estimator {
	return &estimator{alpha: 0.3}
}

// observe records that n bytes took elapsed to download.
func (e *estimator) observe(n int, elapsed time.Duration) {
	if n <= 0 {
		return
	}

	elapsed = max(elapsed, time.Millisecond)
	bps := float64(n*8) / elapsed.Seconds()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sample {
		e.bps = bps
		e.sample = true
		return
	}

	e.bps = e.alpha*bps + (1-e.alpha)*e.bps
}

// estimate returns the smoothed throughput and whether any sample exists.
func (e *estimator) estimate() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bps, e.sample
}

// chooseLevel picks the highest bitrate that fits within safety percent of
// the estimate, or the cheapest level when none does.
func chooseLevel(levels []level.QualityLevel, bps float64, safety int) int {
	if len(levels) == 0 {
		return level.Auto
	}

	budget := bps * float64(safety) / 100
	best, cheapest := -1, 0
	for i, l := range levels {
		if l.Bitrate < levels[cheapest].Bitrate {
			cheapest = i
		}

		if float64(l.Bitrate) <= budget && (best == -1 || l.Bitrate > levels[best].Bitrate) {
			best = i
		}
	}

	if best == -1 {
		return cheapest
	}

	return best
}
