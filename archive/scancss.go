package archive

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

// CSSToken is one token in a CSS source, carrying enough information to
// rewrite a url()/@import reference in place during re-serialization.
type CSSToken struct {
	Type  scanner.TokenType
	Value string
	Start int // column of the token within its line, as reported by the scanner
}

// CSSRefs is the result of scanning a stylesheet: every url() reference
// (images, fonts, background assets) found outside of @import, and every
// @import reference, each carrying its unwrapped reference text so the
// rewriter can replace that text in the original source without
// re-serializing the whole token stream.
type CSSRefs struct {
	Source  string
	URLs    []CSSToken // url(...) references, excluding @import and data: URIs
	Imports []CSSToken // @import "..." / @import url(...) references
}

// ScanCSS tokenizes CSS source and classifies url()/@import references.
func ScanCSS(source string) *CSSRefs {
	refs := &CSSRefs{Source: source}
	s := scanner.New(source)

	pendingImport := false
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}

		switch tok.Type {
		case scanner.TokenAtKeyword:
			pendingImport = strings.EqualFold(tok.Value, "@import")
		case scanner.TokenURI:
			url := unwrapURL(tok.Value)
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(url)), "data:") {
				pendingImport = false
				continue
			}
			entry := CSSToken{Type: tok.Type, Value: url, Start: tok.Column}
			if pendingImport {
				refs.Imports = append(refs.Imports, entry)
			} else {
				refs.URLs = append(refs.URLs, entry)
			}
			pendingImport = false
		case scanner.TokenString:
			if pendingImport {
				refs.Imports = append(refs.Imports, CSSToken{
					Type:  tok.Type,
					Value: unwrapString(tok.Value),
					Start: tok.Column,
				})
				pendingImport = false
			}
		case scanner.TokenS:
			// whitespace between @import and its URI/string does not cancel pendingImport
		default:
			pendingImport = false
		}
	}

	return refs
}

// unwrapURL strips the url(...) wrapper and any quoting gorilla/css leaves
// in Token.Value for a TokenURI.
func unwrapURL(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "url(")
	v = strings.TrimSuffix(v, ")")
	return unwrapString(strings.TrimSpace(v))
}

func unwrapString(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
