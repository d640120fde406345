package httpfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientFetchReturnsBodyAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	c := New(5*time.Second, 4)
	res, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(res.Body) != "hello" {
		t.Errorf("Body = %q, want %q", res.Body, "hello")
	}
	if !strings.Contains(res.ContentType, "text/plain") {
		t.Errorf("ContentType = %q, want to contain text/plain", res.ContentType)
	}
	if res.FinalURL != srv.URL {
		t.Errorf("FinalURL = %q, want %q", res.FinalURL, srv.URL)
	}
}

func TestClientFetchSniffsContentTypeWhenHeaderMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A nil value stops net/http from sniffing and setting the header itself.
		w.Header()["Content-Type"] = nil
		fmt.Fprint(w, "<html><body>hi</body></html>")
	}))
	defer srv.Close()

	c := New(5*time.Second, 4)
	res, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(res.ContentType, "html") {
		t.Errorf("ContentType = %q, want sniffed html type", res.ContentType)
	}
}

func TestClientFetchFollowsRedirectsAndRecordsChain(t *testing.T) {
	var final string
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	final = srv.URL + "/b"

	c := New(5*time.Second, 4)
	res, err := c.Fetch(context.Background(), srv.URL+"/a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.FinalURL != final {
		t.Errorf("FinalURL = %q, want %q", res.FinalURL, final)
	}
	if len(res.RedirectLog) < 2 {
		t.Fatalf("RedirectLog = %v, want at least 2 hops", res.RedirectLog)
	}
	if res.RedirectLog[0] != srv.URL+"/a" {
		t.Errorf("RedirectLog[0] = %q, want the originally requested URL", res.RedirectLog[0])
	}
	if res.RedirectLog[len(res.RedirectLog)-1] != final {
		t.Errorf("RedirectLog last hop = %q, want %q", res.RedirectLog[len(res.RedirectLog)-1], final)
	}
}

func TestClientFetchErrorsOnHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(5*time.Second, 4)
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected an error for a 404 response")
	}
}

func TestClientFetchErrorsOnTooManyRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(5*time.Second, 4)
	if _, err := c.Fetch(context.Background(), srv.URL+"/loop"); err == nil {
		t.Error("expected an error for a redirect loop")
	}
}
