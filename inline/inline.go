// Package inline implements the non-interactive mode: resolve an asset from
// the catalog and either print it or play it while streaming session events.
package inline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/internal/loop"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/media"
	"github.com/nightcrawler-video/nightcrawler/playback"
	"github.com/nightcrawler-video/nightcrawler/query"
)

// ErrNoMatch is returned when playback is requested but nothing was picked.
var ErrNoMatch = errors.New("no asset matches")

func Run(ctx context.Context, options *Options) error {
	if options.Out == nil {
		options.Out = os.Stdout
	}

	videos, err := options.Catalog.List(ctx)
	if err != nil {
		return err
	}

	videos = query.Filter(videos, options.Query, func(v catalog.Video) string {
		return v.Title
	})

	if options.Picker.IsPresent() {
		if picked, ok := options.Picker.MustGet()(videos); ok {
			videos = []catalog.Video{picked}
		} else {
			videos = nil
		}
	}

	if !options.Play {
		if options.Json {
			return writeJson(options.Out, videos, options)
		}

		for _, v := range videos {
			fmt.Fprintf(options.Out, "%s\t%s\n", v.ID, v.Title)
		}
		return nil
	}

	if len(videos) == 0 {
		return ErrNoMatch
	}

	return play(ctx, videos[0], options)
}

func play(ctx context.Context, video catalog.Video, options *Options) error {
	if options.Sink == nil {
		return errors.New("no sink to play on")
	}

	// the loop outlives ctx so the session is torn down cleanly on interrupt
	l := loop.New(context.WithoutCancel(ctx), 64)
	defer l.Wait()
	defer l.Close()

	manager := playback.NewManager(l, options.Sink, options.Catalog.BaseURL(), options.Playback)
	defer func() {
		if err := manager.Close(); err != nil && !errors.Is(err, loop.ErrClosed) {
			log.Warnf("close manager: %v", err)
		}
	}()

	ended := make(chan struct{}, 1)
	remove := options.Sink.AddListener(media.Ended, func(media.Event) {
		select {
		case ended <- struct{}{}:
		default:
		}
	})
	defer remove()

	var err error
	if options.Continue {
		err = manager.Continue(video.ID)
	} else {
		err = manager.Select(video.ID)
	}
	if err != nil {
		return err
	}

	var deadline <-chan time.Time
	if options.Duration > 0 {
		timer := time.NewTimer(options.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	pinned := options.Level == level.Auto
	levels := level.NewCatalog(nil, level.Auto)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ended:
			return nil
		case event, ok := <-manager.Events():
			if !ok {
				return nil
			}

			if event.Kind == playback.LevelsChanged {
				levels = event.Levels
			}

			if err := write(options, levels, event); err != nil {
				return err
			}

			if event.Kind == playback.StateChanged && event.State == playback.Playing && !pinned {
				pinned = true
				if err := manager.RequestLevelChange(options.Level); err != nil {
					log.Warnf("pin level %d: %v", options.Level, err)
					fmt.Fprintf(os.Stderr, "cannot pin level %d: %v\n", options.Level, err)
				}
			}

			if event.Kind == playback.ErrorOccurred && event.Terminal {
				return event.Err
			}
		}
	}
}

func write(options *Options, levels level.Catalog, event playback.Event) error {
	if options.Json {
		data, err := json.Marshal(eventJson(event))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(options.Out, "%s\n", data)
		return err
	}

	var line string
	switch event.Kind {
	case playback.StateChanged:
		line = event.State.String()
	case playback.LoadingChanged:
		line = fmt.Sprintf("loading %t", event.Loading)
	case playback.LevelsChanged:
		line = fmt.Sprintf("levels %d, current %s", event.Levels.Len(), event.Levels.Label(event.Levels.Current()))
	case playback.LevelSwitched:
		line = fmt.Sprintf("switched to %s", levels.Label(event.Level))
	case playback.ErrorOccurred:
		line = fmt.Sprintf("error %v", event.Err)
		if event.Terminal {
			line += " (terminal)"
		}
	}

	_, err := fmt.Fprintf(options.Out, "%s\t%s\n", event.AssetID, line)
	return err
}
