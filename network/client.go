// Package network provides the pre-configured HTTP client shared by the catalog client and the stream engine.
package network

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/nightcrawler-video/nightcrawler/constant"
	"golang.org/x/net/http2"
)

// Client is the singleton HTTP client shared across the application.
// It carries no overall timeout: segment downloads and uploads are bounded by their request contexts.
var Client = &http.Client{
	Transport: newTransport(),
}

// newTransport initializes a tuned http.Transport with pool and timeout parameters suited to segment fetching.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 32
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = 5 * time.Second

	// h2 health pings catch a dead connection before a segment fetch stalls on it
	if h2, err := http2.ConfigureTransports(t); err == nil {
		h2.ReadIdleTimeout = 30 * time.Second
		h2.PingTimeout = 10 * time.Second
	}
	return t
}

// NewRequest builds a request bound to ctx with the application User-Agent set.
func NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", constant.UserAgent)
	return req, nil
}
