package inline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/nightcrawler-video/nightcrawler/playback"
	"github.com/nightcrawler-video/nightcrawler/util"
	"github.com/samber/mo"
)

// Picker chooses one asset out of the filtered catalog.
type Picker func([]catalog.Video) (catalog.Video, bool)

// Lister is the part of the catalog client inline mode needs.
type Lister interface {
	List(ctx context.Context) ([]catalog.Video, error)
	BaseURL() string
}

type Options struct {
	Out     io.Writer
	Catalog Lister
	Query   string
	Picker  mo.Option[Picker]
	Json    bool

	// Play starts a session for the picked asset instead of printing it.
	Play     bool
	Sink     media.Sink
	Playback playback.Options
	// Level is pinned once the session is playing. level.Auto keeps ABR.
	Level    int
	Continue bool
	// Duration stops playback early. Zero plays until the stream ends.
	Duration time.Duration
}

// ParsePicker understands "first", "last", a zero-based index, or an exact
// asset id or title.
func ParsePicker(value string) (Picker, error) {
	switch value {
	case "":
		return nil, fmt.Errorf("empty asset selector")
	case "first":
		return func(videos []catalog.Video) (catalog.Video, bool) {
			if len(videos) == 0 {
				return catalog.Video{}, false
			}
			return videos[0], true
		}, nil
	case "last":
		return func(videos []catalog.Video) (catalog.Video, bool) {
			if len(videos) == 0 {
				return catalog.Video{}, false
			}
			return videos[len(videos)-1], true
		}, nil
	}

	if idx, err := strconv.ParseUint(value, 10, 16); err == nil {
		return func(videos []catalog.Video) (catalog.Video, bool) {
			if len(videos) == 0 {
				return catalog.Video{}, false
			}
			return videos[util.Min(int(idx), len(videos)-1)], true
		}, nil
	}

	return func(videos []catalog.Video) (catalog.Video, bool) {
		for _, v := range videos {
			if v.ID == value || v.Title == value {
				return v, true
			}
		}
		return catalog.Video{}, false
	}, nil
}
