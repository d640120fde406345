package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// The nine handlers below are the leaves of the migration core: each one
// resolves a single reference to a local archive path (or, on any failure,
// returns the reference unchanged per the soft-failure policy — a broken
// image or an unreachable stylesheet must never abort the rest of the
// archive). Every handler that performs a plain HTTP fetch routes through
// downloadAndRegister so the Source Registry's at-most-once guarantee and
// redirect aliasing apply uniformly; HTMLFileWithJsExecutionHandler renders
// through the browser pool instead and performs the same claim, resolve and
// alias steps itself.

// neutralizedJSComment is the body JSFileHandler writes in place of a
// script's real source in JS-execution mode.
const neutralizedJSComment = "// script source removed during archival\n"

// DownloadHandler fetches a binary resource (image, font, video, poster) and
// registers it under index_files/.
func (mc *MigrationContext) DownloadHandler(ctx context.Context, rawURL string, currentFile string) string {
	return mc.downloadAndRegister(ctx, rawURL, currentFile, nil)
}

// JSFileHandler mints a local path for an external script and writes a
// neutralized placeholder in its place, never fetching the real source: in
// JS-execution mode the script would otherwise run offline with no live
// server behind it, so the archived reference is a stub rather than a trap.
func (mc *MigrationContext) JSFileHandler(ctx context.Context, rawURL string, currentFile string) string {
	if path, claimed := mc.Registry.Claim(rawURL); claimed {
		return mc.localRef(currentFile, path, rawURL)
	}

	name := mc.Alloc.Allocate([]byte(neutralizedJSComment), rawURL)
	if err := mc.writeAsset(name, []byte(neutralizedJSComment)); err != nil {
		mc.Logger.WithError(err).WithField("url", rawURL).Warn("write failed, leaving reference unresolved")
		mc.Registry.Resolve(rawURL, "")
		return rawURL
	}

	mc.Registry.Resolve(rawURL, name)
	return mc.localRef(currentFile, name, rawURL)
}

// CSSFileHandler fetches an external stylesheet, recursively migrates its
// own url()/@import references, and registers the rewritten file. At the
// recursion limit the stylesheet is still fetched and archived verbatim;
// only its own further @import recursion is suppressed.
func (mc *MigrationContext) CSSFileHandler(ctx context.Context, rawURL string, currentFile string, depth int) string {
	if inChain(ctx, rawURL) {
		mc.Logger.WithField("url", rawURL).Warn("cyclic @import detected, leaving reference unresolved")
		return rawURL
	}
	ctx = withVisited(ctx, rawURL)
	recurse := depth <= mc.MaxDepth

	return mc.downloadAndRegister(ctx, rawURL, currentFile, func(body []byte, finalURL string) []byte {
		if !recurse {
			mc.Logger.WithField("url", rawURL).Warn("CSS recursion limit reached, archiving verbatim")
			return body
		}
		rewritten := mc.CSSMigration(ctx, string(body), finalURL, currentFile, depth+1)
		return []byte(rewritten)
	})
}

// HTMLFileHandler fetches a framed document (iframe/frame target) over
// plain HTTP, recursively migrates it, and registers the rewritten file. At
// the recursion limit the document is still fetched and archived verbatim;
// only its own further frame recursion is suppressed.
func (mc *MigrationContext) HTMLFileHandler(ctx context.Context, rawURL string, currentFile string, depth int) string {
	if inChain(ctx, rawURL) {
		mc.Logger.WithField("url", rawURL).Warn("cyclic frame reference detected, leaving reference unresolved")
		return rawURL
	}
	ctx = withVisited(ctx, rawURL)
	recurse := depth <= mc.MaxDepth

	return mc.downloadAndRegister(ctx, rawURL, currentFile, func(body []byte, finalURL string) []byte {
		if !recurse {
			mc.Logger.WithField("url", rawURL).Warn("HTML recursion limit reached, archiving verbatim")
			return body
		}
		rewritten, err := mc.HTMLMigration(ctx, body, finalURL, currentFile, depth+1, false)
		if err != nil {
			mc.Logger.WithError(err).WithField("url", rawURL).Warn("nested HTML migration failed, archiving as-is")
			return body
		}
		return rewritten
	})
}

// HTMLFileWithJsExecutionHandler renders a framed document through the
// headless browser pool before recursively migrating it, for archives
// requesting the JS-execution mode. At the recursion limit the rendered
// document is still archived verbatim; only its own further frame recursion
// is suppressed.
func (mc *MigrationContext) HTMLFileWithJsExecutionHandler(ctx context.Context, rawURL string, currentFile string, depth int) string {
	if inChain(ctx, rawURL) {
		mc.Logger.WithField("url", rawURL).Warn("cyclic frame reference detected, leaving reference unresolved")
		return rawURL
	}
	ctx = withVisited(ctx, rawURL)
	recurse := depth <= mc.MaxDepth

	if path, claimed := mc.Registry.Claim(rawURL); claimed {
		return mc.localRef(currentFile, path, rawURL)
	}

	res, err := mc.Browser.Render(ctx, rawURL)
	if err != nil {
		mc.Logger.WithError(err).WithField("url", rawURL).Warn("headless render failed, leaving reference unresolved")
		mc.Registry.Resolve(rawURL, "")
		return rawURL
	}

	rewritten := res.Body
	if recurse {
		rewritten, err = mc.HTMLMigration(ctx, res.Body, res.FinalURL, currentFile, depth+1, true)
		if err != nil {
			mc.Logger.WithError(err).WithField("url", rawURL).Warn("nested HTML migration failed, archiving as-is")
			rewritten = res.Body
		}
	} else {
		mc.Logger.WithField("url", rawURL).Warn("HTML recursion limit reached, archiving verbatim")
	}

	name := mc.Alloc.Allocate(rewritten, rawURL)
	if err := mc.writeAsset(name, rewritten); err != nil {
		mc.Logger.WithError(err).WithField("url", rawURL).Warn("write failed, leaving reference unresolved")
		mc.Registry.Resolve(rawURL, "")
		return rawURL
	}

	mc.Registry.Resolve(rawURL, name)
	for _, hop := range res.RedirectLog {
		if hop != rawURL {
			mc.Registry.Alias(hop, rawURL)
		}
	}

	return mc.localRef(currentFile, name, rawURL)
}

// CssStyleHandler rewrites the url()/@import references inside an inline
// <style> block, returning the rewritten CSS text (no separate file is
// written; the caller splices the result back into the document).
func (mc *MigrationContext) CssStyleHandler(ctx context.Context, cssText, baseURL, currentFile string, depth int) string {
	return mc.CSSMigration(ctx, cssText, baseURL, currentFile, depth)
}

// CssDeclarationHandler rewrites url() references inside a single inline
// style="..." attribute value. @import has no meaning inside a declaration
// list, so only asset references are handled, never recursive stylesheets.
func (mc *MigrationContext) CssDeclarationHandler(ctx context.Context, cssText, baseURL, currentFile string) string {
	refs := ScanCSS(cssText)
	out := cssText
	for _, tok := range refs.URLs {
		resolved, err := ResolveURL(baseURL, tok.Value)
		if err != nil {
			continue
		}
		local := mc.DownloadHandler(ctx, resolved, currentFile)
		out = UpdateTokenValue(out, tok, local)
	}
	return out
}

// InlineJSHandler neutralizes an inline <script> body by discarding it: the
// archived element is left with no text. The HTML driver additionally flips
// the element's type attribute so it is never treated as executable.
func (mc *MigrationContext) InlineJSHandler(jsText string) string {
	return ""
}

// EventAttrHandler neutralizes an inline event-handler attribute (onclick,
// onload, ...) by discarding its value outright: unlike a <script> tag,
// there is nowhere to preserve the text that wouldn't simply re-enable the
// handler when the archive is reopened.
func (mc *MigrationContext) EventAttrHandler(jsText string) string {
	return ""
}

// downloadAndRegister is the shared fetch-claim-write-resolve sequence every
// fetching handler uses. process, if non-nil, transforms the fetched body
// (used by CSSFileHandler/HTMLFileHandler to recurse) before it is written
// and registered.
func (mc *MigrationContext) downloadAndRegister(ctx context.Context, rawURL, currentFile string, process func(body []byte, finalURL string) []byte) string {
	if path, claimed := mc.Registry.Claim(rawURL); claimed {
		return mc.localRef(currentFile, path, rawURL)
	}

	result, err := mc.fetch(ctx, rawURL)
	if err != nil {
		mc.Logger.WithError(err).WithField("url", rawURL).Warn("fetch failed, leaving reference unresolved")
		mc.Registry.Resolve(rawURL, "")
		return rawURL
	}

	body := result.Body
	if process != nil {
		body = process(result.Body, result.FinalURL)
	}

	name := mc.Alloc.Allocate(body, rawURL)
	if err := mc.writeAsset(name, body); err != nil {
		mc.Logger.WithError(err).WithField("url", rawURL).Warn("write failed, leaving reference unresolved")
		mc.Registry.Resolve(rawURL, "")
		return rawURL
	}

	mc.Registry.Resolve(rawURL, name)
	for _, hop := range result.RedirectLog {
		if hop != rawURL {
			mc.Registry.Alias(hop, rawURL)
		}
	}

	return mc.localRef(currentFile, name, rawURL)
}

// localRef turns an allocated index_files filename into a path relative to
// currentFile, or falls back to the original reference if name is empty
// (the fetch/write failed and nothing was registered).
func (mc *MigrationContext) localRef(currentFile, name, fallback string) string {
	if name == "" {
		return fallback
	}
	return RelativeOf(currentFile, filepath.Join(mc.Alloc.Dir(), name))
}

func (mc *MigrationContext) writeAsset(name string, body []byte) error {
	if err := os.MkdirAll(mc.Alloc.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating index_files directory: %w", err)
	}
	return os.WriteFile(filepath.Join(mc.Alloc.Dir(), name), body, 0o644)
}
