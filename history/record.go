package history

import (
	"fmt"
	"time"
)

// Record is where playback of one asset was left.
type Record struct {
	AssetID   string    `json:"asset_id"`
	Title     string    `json:"title"`
	Position  float64   `json:"position"`
	WatchedAt time.Time `json:"watched_at"`
}

func (r *Record) String() string {
	name := r.Title
	if name == "" {
		name = r.AssetID
	}

	return fmt.Sprintf("%s @ %s", name, time.Duration(r.Position*float64(time.Second)).Truncate(time.Second))
}
