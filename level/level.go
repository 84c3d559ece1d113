// Package level models the quality ladder advertised by a stream's master playlist.
package level

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Auto is the level index that delegates quality selection to the engine.
const Auto = -1

// QualityLevel is one rendition of the advertised bitrate ladder.
// Index is stable for the lifetime of one parsed manifest.
type QualityLevel struct {
	Index   int            `json:"index"`
	Height  mo.Option[int] `json:"height"`
	Width   mo.Option[int] `json:"width"`
	Bitrate int            `json:"bitrate"`
	Codecs  string         `json:"codecs,omitempty"`
	URI     string         `json:"-"`
}

// Kbps returns the bitrate rounded to the nearest kilobit per second.
func (l QualityLevel) Kbps() int {
	return int(math.Round(float64(l.Bitrate) / 1000))
}

// Catalog is a read-only snapshot of a session's ladder and current selection.
type Catalog struct {
	levels  []QualityLevel
	current int
}

// NewCatalog copies levels so later mutation by the owner cannot leak into the snapshot.
func NewCatalog(levels []QualityLevel, current int) Catalog {
	return Catalog{
		levels:  append([]QualityLevel(nil), levels...),
		current: current,
	}
}

// List returns the ordered ladder.
func (c Catalog) List() []QualityLevel {
	return append([]QualityLevel(nil), c.levels...)
}

// Current returns the selected index, or Auto.
func (c Catalog) Current() int {
	return c.current
}

// Len returns the number of advertised levels.
func (c Catalog) Len() int {
	return len(c.levels)
}

// Valid reports whether index is Auto or addresses a level of the ladder.
func (c Catalog) Valid(index int) bool {
	return index == Auto || (index >= 0 && index < len(c.levels))
}

// Label describes the level at index, "Auto" for Auto.
func (c Catalog) Label(index int) string {
	if index == Auto {
		return "Auto"
	}
	l, ok := lo.Find(c.levels, func(l QualityLevel) bool { return l.Index == index })
	if !ok {
		return fmt.Sprintf("Level %d", index)
	}
	return Describe(l)
}

// Describe renders a level as "720p (1500 kbps)", falling back to its
// position when the manifest advertised no resolution.
func Describe(l QualityLevel) string {
	name := fmt.Sprintf("Level %d", l.Index)
	if h, ok := l.Height.Get(); ok && h > 0 {
		name = fmt.Sprintf("%dp", h)
	}
	return fmt.Sprintf("%s (%d kbps)", name, l.Kbps())
}
