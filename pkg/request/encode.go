package request

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/nevermore1994/httpreqgo/pkg/requrl"
)

// prepareHeaders sets the headers the engine itself is responsible
// for: Content-Length always, Host always (bare host, never a
// caller-supplied port), and Authorization only when the caller hasn't
// already set one and the URL carries userinfo.
func prepareHeaders(info *RequestInfo, url requrl.URL) {
	if info.Headers == nil {
		info.Headers = map[string]string{}
	}
	info.Headers["Content-Length"] = strconv.Itoa(info.BodySize())
	host := url.Host
	if ascii, err := url.ASCIIHost(); err == nil {
		host = ascii
	}
	info.Headers["Host"] = host
	if _, has := info.Headers["Authorization"]; !has && url.UserInfo != "" {
		info.Headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(url.UserInfo))
	}
}

// Encode serializes info into a wire-format HTTP/1.1 request, mutating
// info.Headers in place with the engine-added fields.
func Encode(info *RequestInfo, url requrl.URL) []byte {
	prepareHeaders(info, url)

	var b strings.Builder
	b.WriteString(info.Method.String())
	b.WriteByte(' ')
	b.WriteString(url.Path)
	if url.Query != "" {
		b.WriteByte('?')
		b.WriteString(url.Query)
	}
	b.WriteString(" HTTP/1.1\r\n")

	for name, value := range info.Headers {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	if !info.BodyEmpty() {
		b.WriteString("\r\n")
		b.Write(info.Body.View())
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}
