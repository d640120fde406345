package archive

import "sync"

// entry records the local filename a fetched URL ended up at ("" if the
// fetch or write failed) and a channel closed once that result is known.
type entry struct {
	localPath string
	ready     chan struct{}
}

// SourceRegistry is the shared, concurrency-safe map from a resolved URL to
// its local archive path, guaranteeing every distinct URL is fetched at most
// once. Concurrent callers racing to register the same URL all block on the
// first caller's in-flight fetch rather than triggering duplicate downloads.
//
// Redirect hops are recorded as aliases: every URL visited while following a
// redirect chain is registered to the same local path as the requested URL,
// so a later reference to any URL of an already-fetched chain reuses that
// path without a new fetch. Claims are keyed on the requested URL, so two
// different URLs that redirect to the same resource are each fetched.
type SourceRegistry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewSourceRegistry creates an empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{entries: make(map[string]*entry)}
}

// Claim returns the local path already registered for url, and true, if one
// exists. Otherwise it registers url as in-flight and returns false; the
// caller is responsible for calling Resolve once the fetch completes (success
// or failure) to unblock any other goroutine that called Claim for the same
// URL in the meantime.
func (r *SourceRegistry) Claim(url string) (path string, alreadyClaimed bool) {
	r.mu.Lock()
	e, exists := r.entries[url]
	if !exists {
		e = &entry{ready: make(chan struct{})}
		r.entries[url] = e
	}
	r.mu.Unlock()

	if exists {
		<-e.ready
		return e.localPath, true
	}
	return "", false
}

// Resolve completes the in-flight claim for url with localPath, unblocking
// any other goroutine waiting on Claim for the same URL.
func (r *SourceRegistry) Resolve(url, localPath string) {
	r.mu.Lock()
	e, exists := r.entries[url]
	if !exists {
		e = &entry{ready: make(chan struct{})}
		r.entries[url] = e
	}
	r.mu.Unlock()

	e.localPath = localPath
	close(e.ready)
}

// Alias records that redirectURL resolved to the same destination as
// finalURL, which must already have a completed entry. It is a no-op if
// redirectURL already has an entry (another goroutine beat this one to it).
func (r *SourceRegistry) Alias(redirectURL, finalURL string) {
	r.mu.Lock()
	if _, exists := r.entries[redirectURL]; exists {
		r.mu.Unlock()
		return
	}
	final, ok := r.entries[finalURL]
	r.mu.Unlock()
	if !ok {
		return
	}

	<-final.ready
	r.mu.Lock()
	if _, exists := r.entries[redirectURL]; !exists {
		r.entries[redirectURL] = &entry{localPath: final.localPath, ready: closedChan}
	}
	r.mu.Unlock()
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Count returns the number of distinct URLs registered, including aliases.
func (r *SourceRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
