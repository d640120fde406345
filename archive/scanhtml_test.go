package archive

import (
	"strings"
	"testing"
)

func TestScanHTMLClassifiesElements(t *testing.T) {
	doc := `<html><head><title>Hi</title><link rel="stylesheet" href="s.css">
<style>body{color:red}</style>
<script src="a.js"></script>
<script>console.log(1)</script>
</head><body onload="init()">
<img src="a.png" data-src="b.png">
<video src="v.mp4" poster="p.png"></video>
<object data="o.swf" codebase="base/"></object>
<div style="background:url(x.png)"></div>
<iframe src="f.html"></iframe>
</body></html>`

	_, f, err := ScanHTML([]byte(doc))
	if err != nil {
		t.Fatalf("ScanHTML() error = %v", err)
	}

	if f.Title != "Hi" {
		t.Errorf("Title = %q, want %q", f.Title, "Hi")
	}
	if len(f.StylesheetLinks) != 1 {
		t.Errorf("StylesheetLinks = %d, want 1", len(f.StylesheetLinks))
	}
	if len(f.JSScripts) != 1 {
		t.Errorf("JSScripts = %d, want 1", len(f.JSScripts))
	}
	if len(f.InlineScripts) != 1 {
		t.Errorf("InlineScripts = %d, want 1", len(f.InlineScripts))
	}
	if len(f.Styles) != 1 {
		t.Errorf("Styles = %d, want 1", len(f.Styles))
	}
	if len(f.DescriptionStyles) != 1 {
		t.Errorf("DescriptionStyles = %d, want 1", len(f.DescriptionStyles))
	}
	if len(f.Frames) != 1 {
		t.Errorf("Frames = %d, want 1", len(f.Frames))
	}
	if len(f.Events) != 1 {
		t.Errorf("Events = %d, want 1", len(f.Events))
	}

	// img has src + data-src, video has src + poster, object has data + codebase
	wantElements := 2 + 2 + 2
	if len(f.Elements) != wantElements {
		t.Errorf("Elements = %d, want %d", len(f.Elements), wantElements)
	}
}

func TestScanHTMLBaseElement(t *testing.T) {
	doc := `<html><head><base href="http://ex.test/sub/"></head><body></body></html>`

	tree, f, err := ScanHTML([]byte(doc))
	if err != nil {
		t.Fatalf("ScanHTML() error = %v", err)
	}
	if f.Base == nil {
		t.Fatal("expected Base to be populated")
	}

	RemoveBase(f)
	if f.Base != nil {
		t.Error("RemoveBase should clear f.Base")
	}

	out, err := RenderHTML(tree)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if strings.Contains(string(out), "<base") {
		t.Error("rendered document should not contain <base> after RemoveBase")
	}
}

func TestScanHTMLKeepsDataURIsForDriverToFilter(t *testing.T) {
	doc := `<html><body><img src="data:image/png;base64,AAAA"></body></html>`
	_, f, err := ScanHTML([]byte(doc))
	if err != nil {
		t.Fatalf("ScanHTML() error = %v", err)
	}
	// the scanner still classifies the element (IsFetchable filtering happens
	// in the migration driver, not the scanner), but confirm it's captured
	// with the expected attribute so the driver can filter it.
	if len(f.Elements) != 1 {
		t.Fatalf("Elements = %d, want 1", len(f.Elements))
	}
	if IsFetchable(attrVal(f.Elements[0].Node, f.Elements[0].Attr)) {
		t.Error("data: URI should not be considered fetchable")
	}
}
