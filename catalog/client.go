package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/metafates/gache"
	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/network"
	"github.com/nightcrawler-video/nightcrawler/util"
	"github.com/nightcrawler-video/nightcrawler/where"
	"github.com/spf13/viper"
	"golang.org/x/sync/singleflight"
)

const listingKey = "videos"

// Client lists, locates and uploads assets.
type Client struct {
	base string
	http *http.Client

	// listings in flight are shared between List and Refresh callers
	group singleflight.Group

	mu    sync.Mutex
	cache *gache.Cache[[]Video]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the shared network client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithCache keeps listings on disk for ttl. A zero ttl disables caching.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}

		c.cache = gache.New[[]Video](&gache.Options{
			Path:       where.Catalog(),
			Lifetime:   ttl,
			FileSystem: filesystem.Gache(),
		})
	}
}

// New returns a client for the API rooted at base, e.g. http://localhost:8000/api/v1.
func New(base string, options ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: network.Client,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// NewFromViper builds a client from the catalog.* settings.
func NewFromViper() *Client {
	return New(
		viper.GetString(key.CatalogBaseURL),
		WithCache(viper.GetDuration(key.CatalogCacheTTL)),
	)
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// ManifestURL returns the master playlist location of id on this backend.
func (c *Client) ManifestURL(id string) string {
	return ManifestURL(c.base, id)
}

// List returns the catalog, served from cache while it is fresh. Callers
// missing the cache at once share one request.
func (c *Client) List(ctx context.Context) ([]Video, error) {
	if cached, ok := c.cached(); ok {
		return cached, nil
	}

	return c.share(ctx)
}

// Refresh bypasses the cache and stores the fresh listing. It never joins a
// request already in flight, so the listing reflects every upload that
// finished before the call.
func (c *Client) Refresh(ctx context.Context) ([]Video, error) {
	c.group.Forget(listingKey)
	return c.share(ctx)
}

// share joins the listing request in flight or starts one. The request runs
// detached from ctx so one caller giving up does not fail the others.
func (c *Client) share(ctx context.Context) ([]Video, error) {
	ch := c.group.DoChan(listingKey, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.([]Video), nil
	}
}

func (c *Client) cached() ([]Video, bool) {
	if c.cache == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, expired, err := c.cache.Get()
	if err != nil || expired || cached == nil {
		return nil, false
	}

	return cached, true
}

func (c *Client) fetch(ctx context.Context) ([]Video, error) {
	req, err := network.NewRequest(ctx, http.MethodGet, c.base+"/videos", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer util.Ignore(resp.Body.Close)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list videos: unexpected status %s", resp.Status)
	}

	var videos []Video
	if err := json.NewDecoder(resp.Body).Decode(&videos); err != nil {
		return nil, fmt.Errorf("decode video list: %w", err)
	}

	if videos == nil {
		videos = []Video{}
	}

	if c.cache != nil {
		c.mu.Lock()
		if err := c.cache.Set(videos); err != nil {
			log.Warnf("cache video list: %v", err)
		}
		c.mu.Unlock()
	}

	return videos, nil
}
