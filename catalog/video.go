// Package catalog talks to the asset catalog and storage backend.
package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nightcrawler-video/nightcrawler/constant"
)

// Video is one asset of the catalog.
type Video struct {
	ID          string `json:"videoId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"contentType,omitempty"`
}

func (v Video) String() string {
	if v.Title == "" {
		return v.ID
	}
	return fmt.Sprintf("%s (%s)", v.Title, v.ID)
}

// ManifestURL returns the master playlist location of an asset.
func ManifestURL(base, id string) string {
	return fmt.Sprintf("%s/videos/%s/%s", strings.TrimRight(base, "/"), url.PathEscape(id), constant.MasterPlaylistName)
}
