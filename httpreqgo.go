// Package httpreqgo is a client-side HTTP/1.1 engine: given a request
// description it establishes a TCP (optionally TLS) connection,
// serializes and transmits the request, and streams back the parsed
// response through callbacks, handling redirects and chunked transfer
// encoding along the way.
//
// One call to New is one request. Construction spawns a worker
// goroutine and returns immediately with a handle exposing the
// generated request id, Cancel, and Wait; every callback runs on that
// worker goroutine.
package httpreqgo

import (
	"crypto/tls"
	"sync"

	"github.com/nevermore1994/httpreqgo/pkg/buffer"
	"github.com/nevermore1994/httpreqgo/pkg/errors"
	"github.com/nevermore1994/httpreqgo/pkg/request"
	"github.com/nevermore1994/httpreqgo/pkg/socket"
	"github.com/nevermore1994/httpreqgo/pkg/transport"
)

// Re-exported types so callers need only import this package for the
// common case.
type (
	// Engine drives one request to completion on its own goroutine.
	Engine = request.Engine

	// RequestInfo describes the request to execute.
	RequestInfo = request.RequestInfo

	// ResponseHandler is the set of callbacks an Engine drives.
	ResponseHandler = request.ResponseHandler

	// ResponseHeader carries the parsed status line and headers.
	ResponseHeader = request.ResponseHeader

	// HttpMethodType is the HTTP request method.
	HttpMethodType = request.HttpMethodType

	// ResultCode is the taxonomy reported through onError.
	ResultCode = errors.ResultCode

	// IPVersion selects the address family a request resolves to.
	IPVersion = socket.IPVersion

	// Buffer is the owned byte container request bodies and streamed
	// response data are carried in.
	Buffer = buffer.Buffer
)

// Method constants, re-exported from pkg/request.
const (
	MethodUnknown = request.MethodUnknown
	MethodGet     = request.MethodGet
	MethodPost    = request.MethodPost
	MethodPut     = request.MethodPut
	MethodPatch   = request.MethodPatch
	MethodDelete  = request.MethodDelete
	MethodOptions = request.MethodOptions
)

// IP version constants, re-exported from pkg/socket.
const (
	V4   = socket.V4
	V6   = socket.V6
	Auto = socket.Auto
)

// DefaultTimeout is the timeout NewRequestInfo sets, and the one New
// applies when RequestInfo.Timeout is zero or negative.
const DefaultTimeout = request.DefaultTimeout

// NewRequestInfo returns a RequestInfo with the reference defaults:
// redirects allowed, a 60s timeout, an empty header map.
func NewRequestInfo(url string, method HttpMethodType) RequestInfo {
	return request.NewRequestInfo(url, method)
}

// New constructs an Engine for info and spawns its worker goroutine.
// It returns immediately; the request id is available via Engine.ReqID
// before any callback fires.
func New(info RequestInfo, handler ResponseHandler) *Engine {
	return request.New(info, handler)
}

var (
	initOnce  sync.Once
	clearOnce sync.Once
)

// Init performs process-wide network-library startup, safe to call
// once per process before any request is issued. This build targets
// Unix platforms (pkg/socket is built directly on golang.org/x/sys/unix),
// which have no library-level initialization step analogous to
// Winsock's WSAStartup, so Init always succeeds; it exists as an
// explicit lifecycle endpoint rather than being hidden inside request
// construction, per the one process-wide-init-site contract. Safe to
// call more than once; only the first call does any work.
func Init() error {
	initOnce.Do(func() {})
	return nil
}

// Clear releases whatever Init acquired. Safe to call more than once,
// or without a prior Init.
func Clear() {
	clearOnce.Do(func() {})
}

// ConfigureTLS registers fn to customize the process-wide TLS context
// the first time a request over https builds it. fn runs exactly once,
// during that single build; calling ConfigureTLS after the first TLS
// connect has no effect. Typical use is custom certificate
// verification.
func ConfigureTLS(fn func(*tls.Config)) {
	transport.Configure(fn)
}
