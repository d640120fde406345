package archive

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CSSMigration rewrites every url() and @import reference in a stylesheet's
// text, fetching assets via DownloadHandler and recursing into imported
// stylesheets via CSSFileHandler up to the recursion budget. It is the
// driver shared by CssStyleHandler (inline <style> blocks) and
// CSSFileHandler (every fetched stylesheet, whether linked or @imported).
func (mc *MigrationContext) CSSMigration(ctx context.Context, cssText, baseURL, currentFile string, depth int) string {
	refs := ScanCSS(cssText)
	if len(refs.URLs) == 0 && len(refs.Imports) == 0 {
		return cssText
	}

	type replacement struct {
		tok   CSSToken
		value string
	}

	results := make([]replacement, len(refs.URLs)+len(refs.Imports))
	g, gctx := errgroup.WithContext(ctx)

	for i, tok := range refs.URLs {
		i, tok := i, tok
		g.Go(func() error {
			resolved, err := ResolveURL(baseURL, tok.Value)
			if err != nil {
				results[i] = replacement{tok, tok.Value}
				return nil
			}
			results[i] = replacement{tok, mc.DownloadHandler(gctx, resolved, currentFile)}
			return nil
		})
	}

	offset := len(refs.URLs)
	for j, tok := range refs.Imports {
		j, tok := j, tok
		idx := offset + j
		g.Go(func() error {
			resolved, err := ResolveURL(baseURL, tok.Value)
			if err != nil {
				results[idx] = replacement{tok, tok.Value}
				return nil
			}
			results[idx] = replacement{tok, mc.CSSFileHandler(gctx, resolved, currentFile, depth)}
			return nil
		})
	}

	_ = g.Wait()

	out := cssText
	for _, r := range results {
		out = UpdateTokenValue(out, r.tok, r.value)
	}
	return out
}
