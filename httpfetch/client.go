// Package httpfetch is the plain (non-JS) downloader used by the migration
// core's DownloadHandler, CSSFileHandler, and HTMLFileHandler: a connection-
// limited net/http client that records the full redirect chain a URL took,
// since the Source Registry aliases every hop to the same local path.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Result is one completed fetch: the response body, the URL the response
// was actually served from (after following redirects), every URL visited
// along the way (including the requested URL and the final one), and the
// content type (the response header, or sniffed from the body when the
// header is absent).
type Result struct {
	Body        []byte
	RequestURL  string
	FinalURL    string
	RedirectLog []string
	ContentType string
}

// Client is a bounded HTTP downloader. The zero value is not usable; use New.
type Client struct {
	http *http.Client
}

// New creates a Client with a connection-limited Transport, matching the
// literal &http.Transport{...} construction idiom used by the crawler
// examples in the retrieval pack.
func New(timeout time.Duration, maxConnsPerHost int) *Client {
	transport := &http.Transport{
		MaxConnsPerHost:     maxConnsPerHost,
		MaxIdleConnsPerHost: maxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

// Fetch downloads url, following redirects, and returns the final body along
// with the chain of URLs visited.
func (c *Client) Fetch(ctx context.Context, url string) (*Result, error) {
	var chain []string

	client := &http.Client{
		Transport: c.http.Transport,
		Timeout:   c.http.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			chain = append(chain, req.URL.String())
			return c.http.CheckRedirect(req, via)
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; maffarchive/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	finalURL := resp.Request.URL.String()
	full := append([]string{url}, chain...)
	if len(full) == 0 || full[len(full)-1] != finalURL {
		full = append(full, finalURL)
	}

	return &Result{
		Body:        body,
		RequestURL:  url,
		FinalURL:    finalURL,
		RedirectLog: full,
		ContentType: contentType,
	}, nil
}
