//go:build linux || darwin

package request

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nevermore1994/httpreqgo/pkg/buffer"
	reqerrors "github.com/nevermore1994/httpreqgo/pkg/errors"
)

// serveOnce accepts a single connection on a loopback listener and
// hands the raw net.Conn to handle, which is responsible for writing
// whatever response the test scenario needs.
func serveOnce(t *testing.T, handle func(net.Conn)) (addr string, done chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done = make(chan struct{})
	go func() {
		defer close(done)
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return ln.Addr().String(), done
}

type recorder struct {
	mu            sync.Mutex
	connected     int
	headerDone    int
	header        ResponseHeader
	data          []byte
	disconnected  int
	errCode       ResultCode
	errored       bool
}

func (r *recorder) handler() ResponseHandler {
	return ResponseHandler{
		OnConnected: func(string) {
			r.mu.Lock()
			r.connected++
			r.mu.Unlock()
		},
		OnParseHeaderDone: func(_ string, h ResponseHeader) {
			r.mu.Lock()
			r.headerDone++
			r.header = h
			r.mu.Unlock()
		},
		OnData: func(_ string, d *buffer.Buffer) {
			r.mu.Lock()
			r.data = append(r.data, d.View()...)
			r.mu.Unlock()
		},
		OnDisconnected: func(string) {
			r.mu.Lock()
			r.disconnected++
			r.mu.Unlock()
		},
		OnError: func(_ string, code ResultCode, _ int) {
			r.mu.Lock()
			r.errored = true
			r.errCode = code
			r.mu.Unlock()
		},
	}
}

func TestEngineContentLengthBody(t *testing.T) {
	addr, done := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		c.Read(buf)
		io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
	})

	host, port := splitAddr(t, addr)
	info := NewRequestInfo("http://"+host+":"+port+"/", MethodGet)
	rec := &recorder{}
	eng := New(info, rec.handler())
	eng.Wait()
	<-done

	if rec.connected != 1 {
		t.Fatalf("connected = %d, want 1", rec.connected)
	}
	if rec.headerDone != 1 || rec.header.StatusCode != 200 {
		t.Fatalf("headerDone=%d status=%d", rec.headerDone, rec.header.StatusCode)
	}
	if string(rec.data) != "hello" {
		t.Fatalf("data = %q, want hello", rec.data)
	}
	if rec.disconnected != 1 {
		t.Fatalf("disconnected = %d, want 1", rec.disconnected)
	}
	if rec.errored {
		t.Fatalf("unexpected onError: %v", rec.errCode)
	}
}

func TestEngineChunkedBody(t *testing.T) {
	addr, done := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		c.Read(buf)
		io.WriteString(c, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n")
	})

	host, port := splitAddr(t, addr)
	info := NewRequestInfo("http://"+host+":"+port+"/", MethodGet)
	rec := &recorder{}
	eng := New(info, rec.handler())
	eng.Wait()
	<-done

	if string(rec.data) != "Wikipedia" {
		t.Fatalf("data = %q, want Wikipedia", rec.data)
	}
	if rec.disconnected != 1 {
		t.Fatalf("disconnected = %d, want 1", rec.disconnected)
	}
}

// TestEngineChunkedBodySplitAcrossReads writes the chunked body in two
// separate TCP writes, splitting mid-chunk, so the engine's receive
// loop must carry the undigested remainder from one Receive into the
// next rather than decoding each read in isolation.
func TestEngineChunkedBodySplitAcrossReads(t *testing.T) {
	addr, done := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		c.Read(buf)
		io.WriteString(c, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n5\r\nped")
		time.Sleep(20 * time.Millisecond)
		io.WriteString(c, "ia\r\n0\r\n\r\n")
	})

	host, port := splitAddr(t, addr)
	info := NewRequestInfo("http://"+host+":"+port+"/", MethodGet)
	rec := &recorder{}
	eng := New(info, rec.handler())
	eng.Wait()
	<-done

	if string(rec.data) != "Wikipedia" {
		t.Fatalf("data = %q, want Wikipedia", rec.data)
	}
	if rec.disconnected != 1 {
		t.Fatalf("disconnected = %d, want 1", rec.disconnected)
	}
}

func TestEngineMethodErrorNeverConnects(t *testing.T) {
	info := NewRequestInfo("http://example.com/", MethodUnknown)
	rec := &recorder{}
	eng := New(info, rec.handler())
	eng.Wait()

	if !rec.errored || rec.errCode != reqerrors.MethodError {
		t.Fatalf("expected MethodError, got errored=%v code=%v", rec.errored, rec.errCode)
	}
	if rec.connected != 0 {
		t.Fatalf("connected = %d, want 0", rec.connected)
	}
	if rec.disconnected != 1 {
		t.Fatalf("disconnected = %d, want 1", rec.disconnected)
	}
}

func TestEngineCancelStillDisconnectsExactlyOnce(t *testing.T) {
	addr, done := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		c.Read(buf)
		time.Sleep(50 * time.Millisecond)
		io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
	})

	host, port := splitAddr(t, addr)
	info := NewRequestInfo("http://"+host+":"+port+"/", MethodGet)
	rec := &recorder{}
	eng := New(info, rec.handler())
	eng.Cancel()
	eng.Wait()
	<-done

	if rec.disconnected != 1 {
		t.Fatalf("disconnected = %d, want exactly 1", rec.disconnected)
	}
}

func TestEngineFollowsRedirectOnce(t *testing.T) {
	finalAddr, finalDone := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		c.Read(buf)
		io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	})
	finalHost, finalPort := splitAddr(t, finalAddr)
	location := "http://" + finalHost + ":" + finalPort + "/"

	redirectAddr, redirectDone := serveOnce(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		c.Read(buf)
		io.WriteString(c, "HTTP/1.1 302 Found\r\nLocation: "+location+"\r\nContent-Length: 0\r\n\r\n")
	})

	host, port := splitAddr(t, redirectAddr)
	info := NewRequestInfo("http://"+host+":"+port+"/", MethodGet)
	rec := &recorder{}
	eng := New(info, rec.handler())
	eng.Wait()
	<-redirectDone
	<-finalDone

	if rec.headerDone != 1 {
		t.Fatalf("headerDone = %d, want 1 (final response only; the redirect is not reported)", rec.headerDone)
	}
	if rec.header.StatusCode != 200 {
		t.Fatalf("final status = %d, want 200", rec.header.StatusCode)
	}
	if string(rec.data) != "ok" {
		t.Fatalf("data = %q, want ok", rec.data)
	}
	if rec.disconnected != 1 {
		t.Fatalf("disconnected = %d, want exactly 1", rec.disconnected)
	}
	if rec.errored {
		t.Fatalf("unexpected onError: %v", rec.errCode)
	}
}

// TestEngineRedirectReachMaxCount chains maxRedirectCount+1 servers, each
// redirecting to the next. The engine follows maxRedirectCount redirects
// (contacting servers 0..maxRedirectCount) and then fails the next one
// with RedirectReachMaxCount without ever dialing a maxRedirectCount+2'th
// server, so only that many listeners are created.
func TestEngineRedirectReachMaxCount(t *testing.T) {
	const chainLen = maxRedirectCount + 1

	var lns []net.Listener
	addrs := make([]string, chainLen)
	for i := range addrs {
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		lns = append(lns, ln)
		addrs[i] = ln.Addr().String()
	}
	defer func() {
		for _, ln := range lns {
			ln.Close()
		}
	}()

	var dones []chan struct{}
	for i, ln := range lns {
		next := ""
		if i+1 < len(addrs) {
			host, port := splitAddr(t, addrs[i+1])
			next = "http://" + host + ":" + port + "/"
		} else {
			host, port := splitAddr(t, addrs[0])
			next = "http://" + host + ":" + port + "/nonexistent"
		}
		done := make(chan struct{})
		dones = append(dones, done)
		go func(ln net.Listener, location string, done chan struct{}) {
			defer close(done)
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			buf := make([]byte, 4096)
			conn.Read(buf)
			io.WriteString(conn, "HTTP/1.1 302 Found\r\nLocation: "+location+"\r\nContent-Length: 0\r\n\r\n")
		}(ln, next, done)
	}

	host, port := splitAddr(t, addrs[0])
	info := NewRequestInfo("http://"+host+":"+port+"/", MethodGet)
	rec := &recorder{}
	eng := New(info, rec.handler())
	eng.Wait()
	for _, done := range dones {
		<-done
	}

	if !rec.errored || rec.errCode != reqerrors.RedirectReachMaxCount {
		t.Fatalf("expected RedirectReachMaxCount, got errored=%v code=%v", rec.errored, rec.errCode)
	}
	if rec.disconnected != 1 {
		t.Fatalf("disconnected = %d, want exactly 1", rec.disconnected)
	}
}

func splitAddr(t *testing.T, addr string) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", addr, err)
	}
	if _, err := strconv.Atoi(port); err != nil {
		t.Fatalf("bad port %q", port)
	}
	return host, port
}
