package archive

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ElementRef is one discovered reference inside a parsed HTML tree: an
// element and the attribute on it that carries a resource URL, or an event
// attribute whose value is a script body rather than a URL.
type ElementRef struct {
	Node *html.Node
	Attr string // attribute name, "" for element-source refs like <script>body</script>
}

// htmlElementSources lists tag -> attribute names that carry a resource URL,
// the Go translation of ElementFilterRules.__element_sources.
var htmlElementSources = map[string][]string{
	"img":    {"src", "data-src"},
	"video":  {"src", "poster"},
	"embed":  {"src"},
	"source": {"src"},
	"audio":  {"src"},
	"input":  {"src"},
	"object": {"data", "codebase"},
	"track":  {"src"},
}

// eventAttrs is the closed list of inline event-handler attributes that may
// carry a JS body, the Go translation of ElementFilterRules.__events.
var eventAttrs = map[string]bool{
	"onafterprint": true, "onbeforeprint": true, "onbeforeunload": true, "onerror": true,
	"onhashchange": true, "onload": true, "onmessage": true, "onoffline": true, "ononline": true,
	"onpagehide": true, "onpageshow": true, "onpopstate": true, "onresize": true,
	"onstorage": true, "onunload": true, "onblur": true, "onchange": true, "oncontextmenu": true,
	"onfocus": true, "oninput": true, "oninvalid": true, "onreset": true, "onsearch": true,
	"onselect": true, "onsubmit": true, "onkeydown": true, "onkeypress": true, "onkeyup": true,
	"onclick": true, "ondblclick": true, "onmousedown": true, "onmousemove": true,
	"onmouseout": true, "onmouseover": true, "onmouseup": true, "onmousewheel": true,
	"onwheel": true, "ondrag": true, "ondragend": true, "ondragenter": true, "ondragleave": true,
	"ondragover": true, "ondragstart": true, "ondrop": true, "onscroll": true, "oncopy": true,
	"oncut": true, "onpaste": true, "onabort": true, "oncanplay": true, "oncanplaythrough": true,
	"oncuechange": true, "ondurationchange": true, "onemptied": true, "onended": true,
	"onloadeddata": true, "onloadedmetadata": true, "onloadstart": true,
	"onpause": true, "onplay": true, "onplaying": true, "onprogress": true, "onratechange": true,
	"onseeked": true, "onseeking": true, "onstalled": true, "onsuspend": true,
	"ontimeupdate": true, "onvolumechange": true, "onwaiting": true, "onshow": true,
	"ontoggle": true,
}

// HTMLFilter walks a parsed document once and classifies every node of
// interest into the buckets the migration drivers dispatch on, mirroring
// HTMLFilter in the reference implementation.
type HTMLFilter struct {
	Elements          []ElementRef // resource-bearing attributes (img/video/embed/...)
	StylesheetLinks   []ElementRef // <link rel="stylesheet" href="...">
	JSScripts         []ElementRef // <script src="...">
	InlineScripts     []*html.Node // <script>...</script> with no src
	Styles            []*html.Node // <style>...</style>
	DescriptionStyles []ElementRef // any element's style="..." attribute
	Frames            []ElementRef // <frame>/<iframe src="...">
	Events            []ElementRef // inline event-handler attributes
	Base              *html.Node   // <base href="..."> if present
	Title             string
	Charset           string
}

// ScanHTML parses raw HTML bytes and returns the parsed document along with
// a populated HTMLFilter.
func ScanHTML(data []byte) (*html.Node, *HTMLFilter, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	f := &HTMLFilter{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			f.classify(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return doc, f, nil
}

func (f *HTMLFilter) classify(n *html.Node) {
	tag := n.Data

	if attrs, ok := htmlElementSources[tag]; ok {
		for _, name := range attrs {
			if hasAttr(n, name) {
				f.Elements = append(f.Elements, ElementRef{Node: n, Attr: name})
			}
		}
	}

	if tag == "link" && attrVal(n, "rel") == "stylesheet" && hasAttr(n, "href") {
		f.StylesheetLinks = append(f.StylesheetLinks, ElementRef{Node: n, Attr: "href"})
	}

	if tag == "script" {
		if hasAttr(n, "src") {
			f.JSScripts = append(f.JSScripts, ElementRef{Node: n, Attr: "src"})
		} else {
			f.InlineScripts = append(f.InlineScripts, n)
		}
	}

	if tag == "style" {
		f.Styles = append(f.Styles, n)
	}

	if hasAttr(n, "style") {
		f.DescriptionStyles = append(f.DescriptionStyles, ElementRef{Node: n, Attr: "style"})
	}

	if (tag == "frame" || tag == "iframe") && hasAttr(n, "src") {
		f.Frames = append(f.Frames, ElementRef{Node: n, Attr: "src"})
	}

	for _, a := range n.Attr {
		if eventAttrs[a.Key] {
			f.Events = append(f.Events, ElementRef{Node: n, Attr: a.Key})
		}
	}

	if tag == "base" && n.DataAtom == atom.Base {
		f.Base = n
	}

	if tag == "title" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
		f.Title = n.FirstChild.Data
	}

	if tag == "meta" && attrVal(n, "charset") != "" {
		f.Charset = attrVal(n, "charset")
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// RemoveBase deletes the <base> element from its parent, matching the
// reference implementation's BsHTMLParser.base deleter: once every reference
// in the document has been rewritten to an archive-relative path, the base
// tag would otherwise re-introduce the original origin.
func RemoveBase(f *HTMLFilter) {
	if f.Base != nil && f.Base.Parent != nil {
		f.Base.Parent.RemoveChild(f.Base)
		f.Base = nil
	}
}

// RenderHTML serializes a parsed document back to bytes.
func RenderHTML(doc *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
