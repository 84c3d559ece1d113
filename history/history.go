// Package history remembers the playback position of every asset watched.
package history

import (
	"sort"
	"time"

	"github.com/metafates/gache"
	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/where"
	"github.com/spf13/viper"
)

// cacher provides an abstracted, disk-backed registry of positions keyed by asset.
var cacher = gache.New[map[string]*Record](
	&gache.Options{
		Path:       where.History(),
		FileSystem: filesystem.Gache(),
	},
)

// Get returns every saved record.
func Get() (map[string]*Record, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*Record), nil
	}
	return cached, nil
}

// Recent returns the records, most recently watched first.
func Recent() ([]*Record, error) {
	saved, err := Get()
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(saved))
	for _, r := range saved {
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].WatchedAt.After(records[j].WatchedAt)
	})

	return records, nil
}

// Save stores the position of assetID. An empty title keeps the one saved before.
func Save(assetID, title string, position float64) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	record := &Record{
		AssetID:   assetID,
		Title:     title,
		Position:  max(position, 0),
		WatchedAt: time.Now(),
	}

	if existing, ok := saved[assetID]; ok && title == "" {
		record.Title = existing.Title
	}

	saved[assetID] = record
	return cacher.Set(saved)
}

// Remove forgets assetID.
func Remove(assetID string) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	delete(saved, assetID)
	return cacher.Set(saved)
}

// Store adapts the registry to a session manager's position store.
type Store struct {
	// Title labels records with the asset's name. It may be nil and is
	// called from the playback loop.
	Title func(assetID string) string
}

func (s Store) Position(assetID string) (float64, bool) {
	saved, err := Get()
	if err != nil {
		return 0, false
	}

	record, ok := saved[assetID]
	if !ok {
		return 0, false
	}
	return record.Position, true
}

// SavePosition is a no-op unless history.save_on_watch is enabled.
func (s Store) SavePosition(assetID string, seconds float64) error {
	if !viper.GetBool(key.HistorySaveOnWatch) {
		return nil
	}

	var title string
	if s.Title != nil {
		title = s.Title(assetID)
	}

	return Save(assetID, title, seconds)
}
