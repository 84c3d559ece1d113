package tui

import (
	"fmt"
	"time"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/history"
	"github.com/nightcrawler-video/nightcrawler/icon"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/style"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
)

// listItem wraps the catalog, history and quality entries the lists show.
type listItem struct {
	internal interface{}
	marked   bool
	// base is the API root manifest urls are shown against.
	base string
}

// qualityOption is one row of the quality picker.
type qualityOption struct {
	index  int
	label  string
	active bool
}

func (t *listItem) getMark() string {
	switch t.internal.(type) {
	case catalog.Video:
		return lipgloss.NewStyle().Foreground(style.SecondaryColor).Render(icon.Get(icon.Mark))
	case qualityOption:
		return lipgloss.NewStyle().Bold(true).Foreground(style.AccentColor).Render(icon.Get(icon.Mark))
	default:
		return ""
	}
}

func (t *listItem) Title() (title string) {
	switch e := t.internal.(type) {
	case catalog.Video:
		title = e.Title
		if title == "" {
			title = e.ID
		}
	case *history.Record:
		title = e.Title
		if title == "" {
			title = e.AssetID
		}
	case qualityOption:
		title = e.label
		if e.active {
			title = fmt.Sprintf("%s %s", title, style.Faint("playing"))
		}
	default:
		title = t.FilterValue()
	}

	if title != "" && t.marked {
		title = fmt.Sprintf("%s %s", title, t.getMark())
	}

	return
}

func (t *listItem) Description() (description string) {
	switch e := t.internal.(type) {
	case catalog.Video:
		description = e.Description
		if viper.GetBool(key.TUIShowURLs) {
			manifest := style.Faint(catalog.ManifestURL(t.base, e.ID))
			if description == "" {
				description = manifest
			} else {
				description += " " + manifest
			}
		}
	case *history.Record:
		position := time.Duration(e.Position * float64(time.Second)).Truncate(time.Second)
		description = fmt.Sprintf("Left at %s on %s", position, e.WatchedAt.Format(time.DateTime))
	}

	return
}

func (t *listItem) FilterValue() string {
	switch e := t.internal.(type) {
	case catalog.Video:
		return e.Title
	case *history.Record:
		return e.Title
	case qualityOption:
		return e.label
	default:
		return ""
	}
}

// qualityOptions lists Auto followed by the ladder, marking the selection mode.
func qualityOptions(c level.Catalog, active int) []*listItem {
	items := []*listItem{{
		internal: qualityOption{index: level.Auto, label: c.Label(level.Auto)},
		marked:   c.Current() == level.Auto,
	}}

	for _, l := range c.List() {
		items = append(items, &listItem{
			internal: qualityOption{index: l.Index, label: level.Describe(l), active: l.Index == active},
			marked:   c.Current() == l.Index,
		})
	}

	return items
}
