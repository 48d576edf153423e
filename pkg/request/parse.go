package request

import (
	"bytes"
	"strconv"
	"strings"
)

const headerTerminator = "\r\n\r\n"

// parseResponseHeader looks for the header terminator in data and, if
// found, parses the status line and header lines preceding it. ok is
// false until the terminator has arrived; headerSize is the number of
// bytes (including the terminator) the header occupied.
func parseResponseHeader(data []byte) (header ResponseHeader, headerSize int, ok bool) {
	idx := bytes.Index(data, []byte(headerTerminator))
	if idx < 0 {
		return ResponseHeader{}, 0, false
	}

	header.Headers = map[string]string{}
	lines := strings.Split(string(data[:idx]), "\r\n")
	if len(lines) > 0 {
		parseStatusLine(lines[0], &header)
	}
	for _, line := range lines {
		if line == "" || !strings.Contains(line, ":") {
			continue
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimPrefix(parts[0], " ")
		value := strings.TrimPrefix(parts[1], " ")
		header.Headers[name] = value
	}
	return header, idx + len(headerTerminator), true
}

// parseStatusLine extracts "HTTP/<major>.<minor> <status> <reason>"
// from statusLine into header. "HTTP/1.1" is always exactly 8 bytes,
// so the status code starts right after a single separating space.
func parseStatusLine(statusLine string, header *ResponseHeader) {
	const versionFlag = "HTTP/"
	const versionLen = len(versionFlag) + 3 // "HTTP/1.1"

	versionPos := strings.Index(statusLine, versionFlag)
	if versionPos < 0 || len(statusLine) < versionPos+versionLen {
		return
	}
	header.Headers["Version"] = statusLine[versionPos : versionPos+versionLen]

	rest := strings.TrimPrefix(statusLine[versionPos+versionLen:], " ")
	if len(rest) < 3 {
		return
	}
	if code, err := strconv.Atoi(rest[:3]); err == nil {
		header.StatusCode = code
	}
	if len(rest) > 4 {
		header.ReasonPhrase = rest[4:]
	}
}
