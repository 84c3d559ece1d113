package inline

import (
	"encoding/json"
	"io"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/playback"
	"github.com/samber/lo"
)

type Asset struct {
	catalog.Video
	// Manifest is the master playlist a session would load.
	Manifest string `json:"manifest"`
}

type Output struct {
	Query  string   `json:"query"`
	Result []*Asset `json:"result"`
}

type Level struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Height  *int   `json:"height,omitempty"`
	Bitrate int    `json:"bitrate"`
}

// Event is one line of the JSON stream written while playing.
type Event struct {
	Kind     string   `json:"kind"`
	Session  string   `json:"session"`
	Asset    string   `json:"asset"`
	State    string   `json:"state,omitempty"`
	Loading  *bool    `json:"loading,omitempty"`
	Levels   []*Level `json:"levels,omitempty"`
	Current  *int     `json:"current,omitempty"`
	Level    *int     `json:"level,omitempty"`
	Error    string   `json:"error,omitempty"`
	Terminal bool     `json:"terminal,omitempty"`
}

func asJson(videos []catalog.Video, query, base string) ([]byte, error) {
	result := lo.Map(videos, func(v catalog.Video, _ int) *Asset {
		return &Asset{Video: v, Manifest: catalog.ManifestURL(base, v.ID)}
	})

	return json.Marshal(&Output{
		Query:  query,
		Result: result,
	})
}

func levelsJson(c level.Catalog) []*Level {
	return lo.Map(c.List(), func(l level.QualityLevel, _ int) *Level {
		out := &Level{
			Index:   l.Index,
			Label:   level.Describe(l),
			Bitrate: l.Bitrate,
		}
		if h, ok := l.Height.Get(); ok {
			out.Height = &h
		}
		return out
	})
}

func eventJson(e playback.Event) *Event {
	out := &Event{
		Kind:    e.Kind.String(),
		Session: e.SessionID.String(),
		Asset:   e.AssetID,
	}

	switch e.Kind {
	case playback.LoadingChanged:
		out.Loading = lo.ToPtr(e.Loading)
	case playback.LevelsChanged:
		out.Levels = levelsJson(e.Levels)
		out.Current = lo.ToPtr(e.Levels.Current())
	case playback.StateChanged:
		out.State = e.State.String()
	case playback.LevelSwitched:
		out.Level = lo.ToPtr(e.Level)
	case playback.ErrorOccurred:
		if e.Err != nil {
			out.Error = e.Err.Error()
		}
		out.Terminal = e.Terminal
	}

	return out
}

func writeJson(out io.Writer, videos []catalog.Video, options *Options) error {
	data, err := asJson(videos, options.Query, options.Catalog.BaseURL())
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
