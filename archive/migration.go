// Package archive implements the migration core: a concurrent, bounded-depth
// graph traversal rooted at one HTML (or plain) response that discovers
// every transitively referenced resource, fetches each at most once through
// a shared Source Registry, rewrites references to local relative paths,
// and writes the rewritten documents to disk ahead of MAFF packaging.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sirupsen/logrus"

	"maffarchive/browserpool"
	"maffarchive/httpfetch"
)

// MigrationContext carries every piece of shared state a recursive migration
// needs: the Source Registry (at-most-once fetch), the Path Allocator
// (unique local filenames), the plain HTTP fetcher, an optional headless
// browser pool (nil unless JS-execution mode is on), the recursion budget,
// and a bounded semaphore limiting total in-flight fetches regardless of
// which driver issued them.
type MigrationContext struct {
	Registry *SourceRegistry
	Alloc    *PathAllocator
	Fetcher  *httpfetch.Client
	Browser  *browserpool.Pool
	MaxDepth int
	Logger   *logrus.Logger

	sem *semaphore.Weighted
}

// NewMigrationContext creates a migration context rooted at indexFilesDir,
// the directory that every downloaded asset is written into.
func NewMigrationContext(indexFilesDir string, fetcher *httpfetch.Client, browser *browserpool.Pool, maxDepth int, poolSize int64, logger *logrus.Logger) *MigrationContext {
	return &MigrationContext{
		Registry: NewSourceRegistry(),
		Alloc:    NewPathAllocator(indexFilesDir),
		Fetcher:  fetcher,
		Browser:  browser,
		MaxDepth: maxDepth,
		Logger:   logger,
		sem:      semaphore.NewWeighted(poolSize),
	}
}

// IndexFile is the result of migrating one root response: where its
// rewritten content landed, and the metadata rdf.go needs to emit index.rdf.
type IndexFile struct {
	Path         string // absolute path to the written index.<ext>
	IndexName    string // filename only, e.g. "index.html"
	Title        string
	Charset      string
	OriginalURL  string
	AccessedURL  string
	IsHTML       bool
}

// MigrateRoot fetches rootURL (via the headless browser if jsExec is set)
// and produces a fully migrated IndexFile written under tabDir.
func (mc *MigrationContext) MigrateRoot(ctx context.Context, rootURL, tabDir string, jsExec bool) (*IndexFile, error) {
	var body []byte
	var finalURL, contentType string

	if jsExec {
		res, err := mc.Browser.Render(ctx, rootURL)
		if err != nil {
			return nil, fmt.Errorf("rendering root %s: %w", rootURL, err)
		}
		body, finalURL, contentType = res.Body, res.FinalURL, res.ContentType
	} else {
		res, err := mc.fetch(ctx, rootURL)
		if err != nil {
			return nil, fmt.Errorf("fetching root %s: %w", rootURL, err)
		}
		body, finalURL, contentType = res.Body, res.FinalURL, res.ContentType
	}

	idx := &IndexFile{OriginalURL: rootURL, AccessedURL: finalURL}

	if !strings.Contains(contentType, "text/html") {
		idx.IsHTML = false
		idx.IndexName = "index" + extensionFor(body, finalURL)
		idx.Path = filepath.Join(tabDir, idx.IndexName)
		if err := os.WriteFile(idx.Path, body, 0o644); err != nil {
			return nil, fmt.Errorf("writing root response: %w", err)
		}
		return idx, nil
	}

	doc, filter, err := ScanHTML(body)
	if err != nil {
		return nil, fmt.Errorf("parsing root HTML: %w", err)
	}

	idx.IsHTML = true
	idx.Title = filter.Title
	idx.Charset = filter.Charset
	idx.IndexName = "index.html"
	idx.Path = filepath.Join(tabDir, idx.IndexName)

	rewritten, err := mc.migrateDocument(ctx, doc, filter, finalURL, idx.Path, 1, jsExec)
	if err != nil {
		return nil, fmt.Errorf("migrating root document: %w", err)
	}

	if err := os.WriteFile(idx.Path, rewritten, 0o644); err != nil {
		return nil, fmt.Errorf("writing root document: %w", err)
	}

	return idx, nil
}

// HTMLMigration parses rawHTML and rewrites every reference it contains,
// recursing into iframes (via HTMLFileHandler/HTMLFileWithJsExecutionHandler)
// up to the recursion budget. It is the entry point used by HTMLFileHandler
// and HTMLFileWithJsExecutionHandler for nested documents.
func (mc *MigrationContext) HTMLMigration(ctx context.Context, rawHTML []byte, baseURL, currentFile string, depth int, jsExec bool) ([]byte, error) {
	doc, filter, err := ScanHTML(rawHTML)
	if err != nil {
		return nil, err
	}
	return mc.migrateDocument(ctx, doc, filter, baseURL, currentFile, depth, jsExec)
}

func (mc *MigrationContext) migrateDocument(ctx context.Context, doc *html.Node, filter *HTMLFilter, baseURL, currentFile string, depth int, jsExec bool) ([]byte, error) {
	effectiveBase := baseURL
	if filter.Base != nil {
		if href := attrVal(filter.Base, "href"); href != "" {
			if resolved, err := ResolveURL(baseURL, href); err == nil {
				effectiveBase = resolved
			}
		}
	}
	RemoveBase(filter)

	g, gctx := errgroup.WithContext(ctx)

	dispatch := func(refs []ElementRef, handler func(context.Context, string) string) {
		for _, ref := range refs {
			ref := ref
			raw := attrVal(ref.Node, ref.Attr)
			if !IsFetchable(raw) {
				continue
			}
			g.Go(func() error {
				resolved, err := ResolveURL(effectiveBase, raw)
				if err != nil {
					mc.Logger.WithError(err).WithField("ref", raw).Warn("could not resolve reference, leaving as-is")
					return nil
				}
				local := handler(gctx, resolved)
				UpdateAttributeSource(ref.Node, ref.Attr, local)
				return nil
			})
		}
	}

	dispatch(filter.Elements, func(ctx context.Context, u string) string {
		return mc.DownloadHandler(ctx, u, currentFile)
	})
	dispatch(filter.StylesheetLinks, func(ctx context.Context, u string) string {
		return mc.CSSFileHandler(ctx, u, currentFile, depth)
	})

	scriptHandler := func(ctx context.Context, u string) string {
		return mc.DownloadHandler(ctx, u, currentFile)
	}
	if jsExec {
		scriptHandler = func(ctx context.Context, u string) string {
			return mc.JSFileHandler(ctx, u, currentFile)
		}
	}
	dispatch(filter.JSScripts, scriptHandler)

	frameHandler := mc.HTMLFileHandler
	if jsExec {
		frameHandler = mc.HTMLFileWithJsExecutionHandler
	}
	dispatch(filter.Frames, func(ctx context.Context, u string) string {
		return frameHandler(ctx, u, currentFile, depth)
	})

	for _, node := range filter.Styles {
		node := node
		g.Go(func() error {
			rewritten := mc.CssStyleHandler(gctx, textOf(node), effectiveBase, currentFile, depth)
			UpdateString(node, rewritten)
			return nil
		})
	}

	for _, ref := range filter.DescriptionStyles {
		ref := ref
		g.Go(func() error {
			rewritten := mc.CssDeclarationHandler(gctx, attrVal(ref.Node, ref.Attr), effectiveBase, currentFile)
			UpdateAttribute(ref.Node, ref.Attr, rewritten)
			return nil
		})
	}

	if jsExec {
		for _, node := range filter.InlineScripts {
			node := node
			g.Go(func() error {
				rewritten := mc.InlineJSHandler(textOf(node))
				UpdateString(node, rewritten)
				neutralizeScriptType(node)
				return nil
			})
		}

		for _, ref := range filter.Events {
			ref := ref
			g.Go(func() error {
				rewritten := mc.EventAttrHandler(attrVal(ref.Node, ref.Attr))
				if rewritten == "" {
					RemoveAttribute(ref.Node, ref.Attr)
				} else {
					UpdateAttribute(ref.Node, ref.Attr, rewritten)
				}
				return nil
			})
		}
	}

	_ = g.Wait()

	if jsExec {
		for _, ref := range filter.JSScripts {
			neutralizeScriptType(ref.Node)
		}
	}

	return RenderHTML(doc)
}

// fetch bounds total concurrent HTTP fetches regardless of which driver
// issued them, mirroring spec.md's "bounded semaphore" client-pool language.
func (mc *MigrationContext) fetch(ctx context.Context, url string) (*httpfetch.Result, error) {
	if err := mc.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer mc.sem.Release(1)

	return mc.Fetcher.Fetch(ctx, url)
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// neutralizeScriptType flips a <script> tag's type attribute so a browser
// opening the archived page offline will not execute it. The driver calls it
// only in JS-execution mode; plain-mode archives leave script types as-is.
func neutralizeScriptType(n *html.Node) {
	if n.Data != "script" {
		return
	}
	t := attrVal(n, "type")
	if t == "" || strings.Contains(t, "javascript") || t == "module" {
		UpdateAttribute(n, "type", "text/plain")
	}
}
