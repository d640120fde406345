package archive

import "golang.org/x/net/html"

// The four value updaters bridge "a place in a parsed tree" with whatever a
// handler produced for it. They are intentionally thin: all of the decision
// making (fetch, recurse, neutralize) happens in the handlers; updaters only
// know how to splice a result back into the tree or source text it came
// from.

// UpdateAttributeSource rewrites a URL-bearing attribute (src, href, data,
// poster, ...) to a handler's resolved local path.
func UpdateAttributeSource(n *html.Node, attr, value string) {
	setAttr(n, attr, value)
}

// UpdateAttribute rewrites a non-URL attribute (style=, or a neutralized
// event handler) to a handler's output text.
func UpdateAttribute(n *html.Node, attr, value string) {
	setAttr(n, attr, value)
}

// RemoveAttribute deletes an attribute outright, used by EventAttrHandler to
// neutralize an inline event handler that a handler could not safely
// preserve as text.
func RemoveAttribute(n *html.Node, attr string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != attr {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// UpdateString replaces the text content of an element (inline <script> or
// <style> body) with a handler's rewritten output.
func UpdateString(n *html.Node, value string) {
	n.FirstChild = nil
	n.LastChild = nil
	if value == "" {
		return
	}
	text := &html.Node{Type: html.TextNode, Data: value}
	n.AppendChild(text)
}

// UpdateTokenValue replaces the first occurrence of tok's reference text in
// source with replacement, used by the CSS-side handlers to rewrite one
// url()/@import reference at a time before the final stylesheet text is
// reassembled. tok.Start is not consulted.
func UpdateTokenValue(source string, tok CSSToken, replacement string) string {
	// CSSToken.Value already holds the unwrapped reference text; find and
	// replace its first literal occurrence.
	return replaceAt(source, tok.Value, replacement)
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// replaceAt replaces the first occurrence of needle with replacement. Using
// first-occurrence rather than an offset-anchored splice is safe here
// because the Source Registry guarantees a given reference maps to exactly
// one replacement value everywhere it appears in a given stylesheet.
func replaceAt(source, needle, replacement string) string {
	idx := indexOf(source, needle)
	if idx < 0 {
		return source
	}
	return source[:idx] + replacement + source[idx+len(needle):]
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}
