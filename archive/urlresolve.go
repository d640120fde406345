package archive

import (
	"net/url"
	"strings"
)

// safeChars mirrors the reserved-character allowance used by the reference
// implementation's URL formatter so that re-escaping a resolved URL never
// mangles characters a web server expects verbatim.
const safeChars = "%/:=&?~#+!$,;'@()*[]"

// ResolveURL resolves ref against base the way a browser resolves an href,
// then re-escapes the result with the safe-character set above. base must
// already be an absolute URL.
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	resolved := baseURL.ResolveReference(refURL)
	normalizeURL(resolved)

	return reescape(resolved), nil
}

// normalizeURL lowercases scheme/host and strips a default port, in place.
func normalizeURL(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	host := u.Hostname()
	port := u.Port()

	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}

	host = strings.ToLower(host)
	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
}

// reescape rebuilds the URL string, re-quoting the path with the reserved
// safe-character set instead of net/url's default escaping.
func reescape(u *url.URL) string {
	var sb strings.Builder

	if u.Scheme != "" {
		sb.WriteString(u.Scheme)
		sb.WriteString("://")
	}
	sb.WriteString(u.Host)
	sb.WriteString(quote(u.EscapedPath()))

	if u.RawQuery != "" {
		sb.WriteString("?")
		sb.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		sb.WriteString("#")
		sb.WriteString(u.EscapedFragment())
	}

	return sb.String()
}

// quote re-percent-decodes then re-encodes a path segment, leaving safeChars
// unescaped, matching the behavior of Python's urllib.parse.quote(url, safe=...).
func quote(path string) string {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		decoded = path
	}

	var sb strings.Builder
	for i := 0; i < len(decoded); i++ {
		c := decoded[i]
		if isUnreserved(c) || strings.IndexByte(safeChars, c) >= 0 {
			sb.WriteByte(c)
		} else {
			sb.WriteString(percentEncode(c))
		}
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func percentEncode(c byte) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{'%', hex[c>>4], hex[c&0xf]})
}

// IsFetchable reports whether a reference is something the archiver should
// try to download, as opposed to a non-fetchable scheme (mailto, tel, data,
// javascript) or a bare fragment.
func IsFetchable(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(strings.ToLower(ref), scheme) {
			return false
		}
	}
	return true
}
