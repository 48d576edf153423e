package request

import (
	"time"

	"github.com/nevermore1994/httpreqgo/pkg/buffer"
	reqerrors "github.com/nevermore1994/httpreqgo/pkg/errors"
	"github.com/nevermore1994/httpreqgo/pkg/socket"
)

// ResultCode re-exports the shared result-code taxonomy so callers of
// this package don't need a separate import for callback signatures.
type ResultCode = reqerrors.ResultCode

// HttpMethodType is the HTTP request method. Unknown is the zero value
// so an uninitialized RequestInfo fails fast with MethodError.
type HttpMethodType int

const (
	MethodUnknown HttpMethodType = iota
	MethodGet
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
	MethodOptions
)

var methodNames = [...]string{"Unknown", "GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// String returns the wire name of the method ("GET", "POST", ...).
func (m HttpMethodType) String() string {
	if int(m) < 0 || int(m) >= len(methodNames) {
		return methodNames[MethodUnknown]
	}
	return methodNames[m]
}

// DefaultTimeout is the Timeout NewRequestInfo sets, and the one New
// applies when RequestInfo.Timeout is zero or negative.
const DefaultTimeout = 60 * time.Second

// RequestInfo describes one request. Fields are immutable after the
// engine is constructed, except for the headers the engine itself adds
// (Content-Length, Host, Authorization).
type RequestInfo struct {
	URL           string
	Method        HttpMethodType
	Headers       map[string]string
	Body          *buffer.Buffer
	IPVersion     socket.IPVersion
	AllowRedirect bool
	Timeout       time.Duration
}

// NewRequestInfo returns a RequestInfo with the reference defaults:
// redirects allowed, 60s timeout, an empty header map.
func NewRequestInfo(url string, method HttpMethodType) RequestInfo {
	return RequestInfo{
		URL:           url,
		Method:        method,
		Headers:       map[string]string{},
		AllowRedirect: true,
		Timeout:       DefaultTimeout,
	}
}

// BodySize returns the body's length, or 0 if there is none.
func (r *RequestInfo) BodySize() int {
	if r.Body == nil {
		return 0
	}
	return r.Body.Len()
}

// BodyEmpty reports whether the request carries no body.
func (r *RequestInfo) BodyEmpty() bool {
	return r.BodySize() == 0
}

// ResponseHeader carries the parsed status line and header map.
type ResponseHeader struct {
	Headers      map[string]string
	StatusCode   int
	ReasonPhrase string
}

// IsNeedRedirect reports whether the status code calls for a redirect.
func (h ResponseHeader) IsNeedRedirect() bool {
	return h.StatusCode == 301 || h.StatusCode == 302
}

// ResponseHandler is the set of callbacks the engine drives on its
// worker goroutine. Every field is optional; nil callbacks are simply
// not invoked. Every callback receives the request id as its first
// argument.
type ResponseHandler struct {
	OnConnected       func(reqID string)
	OnParseHeaderDone func(reqID string, header ResponseHeader)
	OnData            func(reqID string, data *buffer.Buffer)
	OnDisconnected    func(reqID string)
	OnError           func(reqID string, code ResultCode, errno int)
}
