package request

import (
	"context"
	"math"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/nevermore1994/httpreqgo/pkg/buffer"
	reqerrors "github.com/nevermore1994/httpreqgo/pkg/errors"
	"github.com/nevermore1994/httpreqgo/pkg/requrl"
	"github.com/nevermore1994/httpreqgo/pkg/socket"
	"github.com/nevermore1994/httpreqgo/pkg/timing"
	"github.com/nevermore1994/httpreqgo/pkg/transport"
)

// maxRedirectCount bounds the redirect loop; the 8th redirect fails
// with RedirectReachMaxCount instead of being followed.
const maxRedirectCount = 7

// Engine drives one HTTP request to completion on a dedicated
// goroutine: URL parse, address resolution, transport connect,
// request send, and streaming response receive, including the
// redirect loop. Construct with New, which returns immediately; the
// caller's goroutine is never blocked by request execution. Every
// field the worker touches is exclusively owned by that worker for
// the engine's lifetime, so an Engine must not be shared between
// goroutines except via Cancel and Wait.
type Engine struct {
	reqID    string
	info     RequestInfo
	handler  ResponseHandler
	start    timing.Timestamp
	deadline timing.Deadline

	redirectCount int
	valid         atomic.Bool
	tr            transport.Transport

	done chan struct{}
}

// New constructs an Engine for info and spawns its worker goroutine.
// It returns immediately with the generated request id already set.
func New(info RequestInfo, handler ResponseHandler) *Engine {
	if info.Timeout <= 0 {
		info.Timeout = DefaultTimeout
	}
	e := &Engine{
		reqID:   newReqID(),
		info:    info,
		handler: handler,
		start:   timing.Now(),
		done:    make(chan struct{}),
	}
	e.deadline = timing.NewDeadline(e.start, info.Timeout)
	e.valid.Store(true)
	go e.process()
	return e
}

// ReqID returns the request id passed to every callback.
func (e *Engine) ReqID() string { return e.reqID }

// Cancel marks the request invalid. The receive loop observes this at
// its next readiness check and stops, suppressing every remaining
// callback except the final onDisconnected. Cancellation does not
// interrupt a syscall already in flight.
func (e *Engine) Cancel() { e.valid.Store(false) }

// Wait blocks until the worker goroutine has finished and every
// callback has been delivered. Equivalent to joining the worker thread
// at destruction in the reference implementation.
func (e *Engine) Wait() { <-e.done }

func (e *Engine) process() {
	defer close(e.done)

	if e.info.Method == MethodUnknown {
		e.fail(reqerrors.MethodError, 0)
		return
	}

	url := requrl.Parse(e.info.URL)
	if !url.IsValid() {
		e.fail(reqerrors.UrlInvalid, 0)
		return
	}
	if !url.IsHttpScheme() {
		e.fail(reqerrors.SchemeNotSupported, 0)
		return
	}

	e.sendRequest(url)
}

// sendRequest resolves the address, builds and connects the transport,
// sends the serialized request, and starts the receive loop. On
// redirect it recurses into itself on the same goroutine with the same
// overall deadline, rather than starting a new worker.
func (e *Engine) sendRequest(url requrl.URL) {
	resolveTimeout := e.deadline.Remaining()
	if resolveTimeout <= 0 {
		e.fail(reqerrors.Timeout, 0)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	sockaddr, family, ipVersion, addrErr := resolveAddress(ctx, url, e.info.IPVersion)
	cancel()
	if addrErr != nil {
		e.fail(addrErr.Code, addrErr.Errno)
		return
	}
	e.info.IPVersion = ipVersion

	tr, buildErr := e.buildTransport(url, ipVersion)
	if buildErr != nil {
		e.fail(buildErr.Code, buildErr.Errno)
		return
	}
	e.tr = tr

	remaining := e.deadline.Remaining()
	if remaining <= 0 {
		e.fail(reqerrors.Timeout, 0)
		return
	}
	if cErr := tr.Connect(sockaddr, family, remaining); cErr != nil {
		e.fail(cErr.Code, cErr.Errno)
		return
	}
	if e.handler.OnConnected != nil {
		e.handler.OnConnected(e.reqID)
	}

	if !e.send(url) {
		return
	}
	e.receive()
}

// buildTransport constructs the plaintext or TLS variant for url's
// scheme. crypto/tls is always available, so unlike the reference
// implementation (which may be compiled without TLS support) https
// never falls back to SchemeNotSupported here.
func (e *Engine) buildTransport(url requrl.URL, ipVersion socket.IPVersion) (transport.Transport, *reqerrors.Error) {
	if !url.IsHttps() {
		return transport.NewPlaintext(ipVersion)
	}
	host, err := url.ASCIIHost()
	if err != nil {
		return nil, reqerrors.New(reqerrors.UrlInvalid, 0)
	}
	return transport.NewTLS(ipVersion, trimBrackets(host))
}

// send waits for write-readiness once, serializes the request (setting
// the engine-added headers), then loops Send until the whole buffer is
// transmitted, advancing the view by the bytes sent on each call.
func (e *Engine) send(url requrl.URL) bool {
	if cErr := e.tr.CanSend(e.deadline.Remaining()); cErr != nil {
		e.fail(cErr.Code, cErr.Errno)
		return false
	}

	view := Encode(&e.info, url)
	for len(view) > 0 {
		remaining := e.deadline.Remaining()
		if remaining <= 0 {
			e.fail(reqerrors.Timeout, 0)
			return false
		}
		sErr, n := e.tr.Send(view)
		if sErr != nil {
			e.fail(sErr.Code, sErr.Errno)
			return false
		}
		view = view[n:]
	}
	return true
}

// receive drives the response loop: parse the status line and headers
// incrementally, dispatch the redirect loop if called for, then decode
// the body per its framing (Content-Length or chunked) and stream it
// through onData. Exactly one of onError/nothing precedes the final
// onDisconnected, which always fires, cancelled or not.
func (e *Engine) receive() {
	defer func() {
		if e.tr != nil {
			e.tr.Close()
			e.tr = nil
		}
	}()

	pending := buffer.New()
	var header ResponseHeader
	headerDone := false
	var contentLength int64 = math.MaxInt64
	var recvLength int64
	var chunked bool
	chunkSize := notStarted

	for {
		if !e.valid.Load() {
			e.disconnect()
			return
		}

		cErr := e.tr.CanReceive(e.deadline.Remaining())
		if cErr != nil {
			if cErr.Code == reqerrors.Retry && e.deadline.Remaining() > 0 {
				continue
			}
			e.fail(cErr.Code, cErr.Errno)
			return
		}

		rErr, data := e.tr.Receive()
		peerClosed := rErr != nil && (rErr.Code == reqerrors.Completed || rErr.Code == reqerrors.Disconnected)
		if rErr != nil {
			if rErr.Code == reqerrors.Retry {
				continue
			}
			if peerClosed {
				e.disconnect()
			} else {
				e.fail(rErr.Code, rErr.Errno)
			}
			return
		}

		var bodyChunk []byte
		if !headerDone {
			pending.Append(data)
			parsed, headerSize, ok := parseResponseHeader(pending.View())
			if !ok {
				continue
			}
			header = parsed
			headerDone = true

			if header.IsNeedRedirect() && e.info.AllowRedirect {
				e.redirect(header.Headers["Location"])
				return
			}

			if cl, has := header.Headers["Content-Length"]; has {
				if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
					contentLength = n
				}
			}
			chunked = strings.EqualFold(header.Headers["Transfer-Encoding"], "chunked")

			if e.valid.Load() && e.handler.OnParseHeaderDone != nil {
				e.handler.OnParseHeaderDone(e.reqID, header)
			}

			rest := pending.Copy(headerSize, pending.Len()-headerSize)
			pending.Destroy()
			pending = buffer.New()
			bodyChunk = rest.View()
		} else if chunked {
			// A chunk-size line or chunk body can split across two
			// reads; prepend whatever decodeChunkedBody couldn't
			// digest last time before decoding again.
			pending.Append(data)
			bodyChunk = pending.View()
		} else {
			bodyChunk = data.View()
		}

		recvLength += int64(len(bodyChunk))

		if chunked {
			leftover, chunkDone, chunkErr := decodeChunkedBody(bodyChunk, &chunkSize, func(b []byte) {
				if e.valid.Load() && e.handler.OnData != nil {
					e.handler.OnData(e.reqID, buffer.NewFromBytes(b))
				}
			})
			if chunkErr != nil {
				e.fail(chunkErr.Code, chunkErr.Errno)
				return
			}
			pending = buffer.NewFromBytes(leftover)
			peerClosed = peerClosed || chunkDone
		} else {
			if len(bodyChunk) > 0 && e.valid.Load() && e.handler.OnData != nil {
				e.handler.OnData(e.reqID, buffer.NewFromBytes(bodyChunk))
			}
			peerClosed = peerClosed || recvLength >= contentLength
		}

		if peerClosed {
			e.disconnect()
			return
		}
	}
}

// redirect follows Location on the same goroutine and deadline: it
// closes the current transport, parses the new URL, and re-enters
// sendRequest. Empty or invalid locations, and the 8th redirect, are
// fatal.
func (e *Engine) redirect(location string) {
	if location == "" {
		e.fail(reqerrors.RedirectError, 0)
		return
	}
	if e.redirectCount >= maxRedirectCount {
		e.fail(reqerrors.RedirectReachMaxCount, 0)
		return
	}
	e.redirectCount++

	if e.tr != nil {
		e.tr.Close()
		e.tr = nil
	}

	url := requrl.Parse(location)
	if !url.IsValid() || !url.IsHttpScheme() {
		e.fail(reqerrors.RedirectError, 0)
		return
	}
	e.sendRequest(url)
}

// fail reports err to onError, then unconditionally disconnects.
// onError is not gated by the cancel flag, matching the reference
// implementation's handleErrorResponse.
func (e *Engine) fail(code reqerrors.ResultCode, errno int) {
	if e.handler.OnError != nil {
		e.handler.OnError(e.reqID, code, errno)
	}
	e.disconnect()
}

// disconnect fires onDisconnected exactly once and releases the
// transport. Unlike onParseHeaderDone/onData, onDisconnected is never
// suppressed by cancellation: it is the one callback guaranteed to
// fire for every request.
func (e *Engine) disconnect() {
	if e.handler.OnDisconnected != nil {
		e.handler.OnDisconnected(e.reqID)
	}
	if e.tr != nil {
		e.tr.Close()
		e.tr = nil
	}
}

// trimBrackets strips the brackets from a bracketed IPv6 literal so it
// can be used as a DNS lookup key or TLS ServerName.
func trimBrackets(host string) string {
	if len(host) >= 2 && host[0] == '[' && host[len(host)-1] == ']' {
		return host[1 : len(host)-1]
	}
	return host
}

// resolveAddress resolves url's host to a single address for the
// requested IP version (or the first result, if Auto), and returns it
// as a raw unix.Sockaddr ready for Socket.Connect along with the
// address family and the IP version Auto should be pinned to.
func resolveAddress(ctx context.Context, url requrl.URL, want socket.IPVersion) (unix.Sockaddr, int, socket.IPVersion, *reqerrors.Error) {
	host, err := url.ASCIIHost()
	if err != nil {
		return nil, 0, want, reqerrors.New(reqerrors.GetAddressFailed, 0)
	}
	port, err := strconv.Atoi(url.Port)
	if err != nil {
		return nil, 0, want, reqerrors.New(reqerrors.GetAddressFailed, 0)
	}

	addrs, lookupErr := net.DefaultResolver.LookupIPAddr(ctx, trimBrackets(host))
	if lookupErr != nil || len(addrs) == 0 {
		return nil, 0, want, reqerrors.New(reqerrors.GetAddressFailed, 0)
	}

	var chosen net.IP
	for _, a := range addrs {
		isV4 := a.IP.To4() != nil
		switch want {
		case socket.V4:
			if !isV4 {
				continue
			}
		case socket.V6:
			if isV4 {
				continue
			}
		}
		chosen = a.IP
		break
	}
	if chosen == nil {
		return nil, 0, want, reqerrors.New(reqerrors.GetAddressFailed, 0)
	}

	resolved := want
	if resolved == socket.Auto {
		if chosen.To4() != nil {
			resolved = socket.V4
		} else {
			resolved = socket.V6
		}
	}

	if v4 := chosen.To4(); v4 != nil {
		var addr [4]byte
		copy(addr[:], v4)
		return &unix.SockaddrInet4{Port: port, Addr: addr}, unix.AF_INET, resolved, nil
	}
	var addr [16]byte
	copy(addr[:], chosen.To16())
	return &unix.SockaddrInet6{Port: port, Addr: addr}, unix.AF_INET6, resolved, nil
}
