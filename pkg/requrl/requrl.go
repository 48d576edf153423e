// Package requrl decomposes an HTTP(S) URL into its scheme, userinfo,
// host, port, path, query, and fragment, following the same
// recognition order as the reference implementation rather than
// net/url's more permissive grammar.
package requrl

import (
	"strings"

	"golang.org/x/net/idna"
)

// Default ports applied when the URL omits one and the scheme is known.
const (
	HTTPDefaultPort  = "80"
	HTTPSDefaultPort = "443"

	httpScheme  = "http"
	httpsScheme = "https"

	schemeSeparator = "://"
)

// URL holds the decomposed components of a parsed URL. A zero-value URL
// is invalid; use Parse to build one.
type URL struct {
	Scheme   string
	Host     string
	Port     string
	Path     string
	UserInfo string
	Query    string
	Fragment string

	valid bool
}

// checkScheme reports whether scheme is non-empty and composed solely of
// alphanumerics and hyphens.
func checkScheme(scheme string) bool {
	if scheme == "" {
		return false
	}
	for _, c := range scheme {
		if c == '-' {
			continue
		}
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

// Parse decomposes input into a URL. On any structural failure the
// returned URL has IsValid() == false; partially-populated fields from
// before the failure are not meaningful.
func Parse(input string) URL {
	flagPos := strings.Index(input, schemeSeparator)
	if flagPos < 0 {
		return URL{}
	}
	scheme := input[:flagPos]
	if !checkScheme(scheme) {
		return URL{}
	}

	u := URL{Scheme: scheme}
	view := input[flagPos+len(schemeSeparator):]

	if fragmentPos := strings.IndexByte(view, '#'); fragmentPos >= 0 {
		u.Fragment = view[fragmentPos+1:]
		view = view[:fragmentPos]
	}

	if queryPos := strings.IndexByte(view, '?'); queryPos >= 0 {
		u.Query = view[queryPos+1:]
		view = view[:queryPos]
	}

	if pathPos := strings.IndexByte(view, '/'); pathPos >= 0 {
		u.Path = view[pathPos:]
		view = view[:pathPos]
	} else {
		u.Path = "/"
	}

	if userInfoPos := strings.IndexByte(view, '@'); userInfoPos >= 0 {
		u.UserInfo = view[:userInfoPos]
		view = view[userInfoPos+1:]
	}

	if portPos := strings.LastIndexByte(view, ':'); portPos >= 0 && (view[0] != '[' || strings.IndexByte(view, ']') < portPos) {
		u.Port = view[portPos+1:]
		view = view[:portPos]
	} else if u.IsHttp() {
		u.Port = HTTPDefaultPort
	} else if u.IsHttps() {
		u.Port = HTTPSDefaultPort
	}

	u.Host = view
	u.valid = true
	return u
}

// IsValid reports whether parsing succeeded.
func (u URL) IsValid() bool {
	return u.valid
}

// IsHttp reports whether the scheme is exactly "http".
func (u URL) IsHttp() bool {
	return u.Scheme == httpScheme
}

// IsHttps reports whether the scheme is exactly "https".
func (u URL) IsHttps() bool {
	return u.Scheme == httpsScheme
}

// IsHttpScheme reports whether the scheme is http or https.
func (u URL) IsHttpScheme() bool {
	return u.IsHttp() || u.IsHttps()
}

// String reassembles the URL from its components.
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString(schemeSeparator)
	if u.UserInfo != "" {
		b.WriteString(u.UserInfo)
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	if u.Port != "" {
		b.WriteByte(':')
		b.WriteString(u.Port)
	}
	b.WriteString(u.Path)
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// ASCIIHost returns the host suitable for DNS resolution and the Host
// header: IPv6 literals and already-ASCII hostnames pass through
// unchanged, non-ASCII hostnames are punycode-normalized via IDNA.
// Bracketed IPv6 literals are never passed to idna.
func (u URL) ASCIIHost() (string, error) {
	if u.Host == "" || u.Host[0] == '[' {
		return u.Host, nil
	}
	if isASCII(u.Host) {
		return u.Host, nil
	}
	return idna.Lookup.ToASCII(u.Host)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
