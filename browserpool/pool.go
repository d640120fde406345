// Package browserpool is the headless-browser client pool behind
// HTMLMigrationWithJSExecution: a bounded set of chromedp browser tabs,
// checked out and returned the way the reference implementation's
// ClientPool wrapped an asyncio.Semaphore around a fixed set of browser
// instances (lemmiwinks/httplib/provider.py).
package browserpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// Result mirrors httpfetch.Result closely enough for the migration drivers
// to treat a rendered page the same as a plain HTTP fetch once JS execution
// has produced a settled DOM. RedirectLog is populated from the browser's
// own network events so the Source Registry's redirect-aliasing invariant
// (spec.md §3, Source Registry) holds for JS-rendered navigations too, not
// only for the plain HTTP downloader.
type Result struct {
	Body        []byte
	FinalURL    string
	ContentType string
	RedirectLog []string
}

// Pool bounds concurrent headless-browser usage to size tabs at a time.
// Acquire/Release is a scoped pattern: every exit path (including a panic
// recovered by the caller) must release the slot, mirroring the teacher's
// defer-based cleanup idiom used throughout converter.ImageCache.
type Pool struct {
	sem         *semaphore.Weighted
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
}

// New creates a pool that allows at most size concurrent browser tabs.
func New(size int64, timeout time.Duration) *Pool {
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
		)...,
	)

	return &Pool{
		sem:         semaphore.NewWeighted(size),
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     timeout,
	}
}

// Close releases the underlying browser allocator.
func (p *Pool) Close() {
	p.allocCancel()
}

// Render acquires a tab, navigates to url, waits for the document to settle,
// and returns the fully rendered DOM's outer HTML along with the chain of
// URLs the navigation visited (captured via the CDP Network domain so
// redirects issued before any JavaScript ran are still recorded). The tab is
// always released before Render returns, regardless of outcome.
func (p *Pool) Render(ctx context.Context, url string) (*Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring browser slot for %s: %w", url, err)
	}
	defer p.sem.Release(1)

	tabCtx, cancel := chromedp.NewContext(p.allocCtx)
	defer cancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, p.timeout)
	defer timeoutCancel()

	var mu sync.Mutex
	var chain []string
	seen := make(map[string]bool)

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.RedirectResponse != nil {
				mu.Lock()
				if hop := e.RedirectResponse.URL; hop != "" && !seen[hop] {
					seen[hop] = true
					chain = append(chain, hop)
				}
				mu.Unlock()
			}
		case *network.EventResponseReceived:
			mu.Lock()
			if hop := e.Response.URL; hop != "" && !seen[hop] {
				seen[hop] = true
				chain = append(chain, hop)
			}
			mu.Unlock()
		}
	})

	var html string
	var finalURL string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}

	mu.Lock()
	full := append([]string{url}, chain...)
	if len(full) == 0 || full[len(full)-1] != finalURL {
		full = append(full, finalURL)
	}
	mu.Unlock()

	return &Result{
		Body:        []byte(html),
		FinalURL:    finalURL,
		ContentType: "text/html",
		RedirectLog: full,
	}, nil
}
