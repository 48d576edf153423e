// Package transport provides the two connection variants the engine
// drives behind a single interface: a direct TCP socket, and the same
// socket with a TLS session layered on top.
package transport

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nevermore1994/httpreqgo/pkg/buffer"
	reqerrors "github.com/nevermore1994/httpreqgo/pkg/errors"
	"github.com/nevermore1994/httpreqgo/pkg/socket"
	"github.com/nevermore1994/httpreqgo/pkg/tlsconfig"
)

// Transport is the uniform surface the engine drives regardless of
// whether the connection is plaintext or TLS.
type Transport interface {
	Connect(addr unix.Sockaddr, family int, timeout time.Duration) *reqerrors.Error
	Send(data []byte) (*reqerrors.Error, int)
	Receive() (*reqerrors.Error, *buffer.Buffer)
	CanSend(timeout time.Duration) *reqerrors.Error
	CanReceive(timeout time.Duration) *reqerrors.Error
	Close()
}

// Plaintext forwards every operation directly to the underlying socket.
type Plaintext struct {
	sock *socket.Socket
}

// NewPlaintext creates a Plaintext transport backed by a fresh socket
// for ipVersion.
func NewPlaintext(ipVersion socket.IPVersion) (*Plaintext, *reqerrors.Error) {
	sock, err := socket.New(ipVersion)
	if err != nil {
		return nil, err
	}
	return &Plaintext{sock: sock}, nil
}

func (p *Plaintext) Connect(addr unix.Sockaddr, family int, timeout time.Duration) *reqerrors.Error {
	return p.sock.Connect(addr, family, timeout)
}

func (p *Plaintext) Send(data []byte) (*reqerrors.Error, int) { return p.sock.Send(data) }

func (p *Plaintext) Receive() (*reqerrors.Error, *buffer.Buffer) { return p.sock.Receive() }

func (p *Plaintext) CanSend(timeout time.Duration) *reqerrors.Error { return p.sock.CanSend(timeout) }

func (p *Plaintext) CanReceive(timeout time.Duration) *reqerrors.Error {
	return p.sock.CanReceive(timeout)
}

func (p *Plaintext) Close() { p.sock.Close() }

// --- process-wide shared TLS context ---------------------------------

var (
	configMu     sync.Mutex
	configurator func(*tls.Config)

	sharedOnce sync.Once
	sharedCfg  *tls.Config
)

// Configure registers fn to customize the process-wide TLS config the
// first time it is built. Calling this after the first TLS connect has
// no effect, matching the original's call-before-first-use contract.
func Configure(fn func(*tls.Config)) {
	configMu.Lock()
	defer configMu.Unlock()
	configurator = fn
}

// sharedTLSConfig builds the process-wide base tls.Config exactly once,
// invoking the registered configurator hook (if any) during that single
// build.
func sharedTLSConfig() *tls.Config {
	sharedOnce.Do(func() {
		cfg := &tls.Config{}
		tlsconfig.ApplyVersionProfile(cfg, tlsconfig.ProfileSecure)
		tlsconfig.ApplyCipherSuites(cfg, tlsconfig.VersionTLS12)

		configMu.Lock()
		fn := configurator
		configMu.Unlock()
		if fn != nil {
			fn(cfg)
		}
		sharedCfg = cfg
	})
	return sharedCfg
}

// TLS layers a TLS client session over the underlying non-blocking
// socket. serverName drives SNI and certificate verification.
type TLS struct {
	sock       *socket.Socket
	serverName string
	conn       *tls.Conn
}

// NewTLS creates a TLS transport backed by a fresh socket for
// ipVersion; serverName is used for SNI/verification at handshake time.
func NewTLS(ipVersion socket.IPVersion, serverName string) (*TLS, *reqerrors.Error) {
	sock, err := socket.New(ipVersion)
	if err != nil {
		return nil, err
	}
	return &TLS{sock: sock, serverName: serverName}, nil
}

func (t *TLS) Connect(addr unix.Sockaddr, family int, timeout time.Duration) *reqerrors.Error {
	if err := t.sock.Connect(addr, family, timeout); err != nil {
		return err
	}

	cfg := sharedTLSConfig().Clone()
	cfg.ServerName = t.serverName

	raw := socket.NewConn(t.sock, nil, nil)
	t.conn = tls.Client(raw, cfg)
	if err := raw.SetDeadline(time.Now().Add(timeout)); err != nil {
		return reqerrors.New(reqerrors.Failed, 0)
	}
	defer raw.SetDeadline(time.Time{})

	if err := t.conn.Handshake(); err != nil {
		return tlsError(err)
	}
	return nil
}

func (t *TLS) Send(data []byte) (*reqerrors.Error, int) {
	n, err := t.conn.Write(data)
	if err != nil {
		return tlsError(err), n
	}
	if n == 0 {
		return reqerrors.New(reqerrors.Disconnected, 0), 0
	}
	return nil, n
}

// maxTLSRecordSize is sized to hold one full TLS record's plaintext
// (max 16384 bytes) plus slack, so a single Read always drains
// whatever tls.Conn buffered internally from the underlying socket
// read instead of leaving plaintext undrained for CanReceive to miss.
const maxTLSRecordSize = 16640

func (t *TLS) Receive() (*reqerrors.Error, *buffer.Buffer) {
	raw := make([]byte, maxTLSRecordSize)
	n, err := t.conn.Read(raw)
	if err != nil && n == 0 {
		return tlsError(err), buffer.New()
	}
	data := buffer.New()
	data.AppendBytes(raw[:n])
	return nil, data
}

func (t *TLS) CanSend(timeout time.Duration) *reqerrors.Error {
	return t.sock.CanSend(timeout)
}

// CanReceive delegates to the underlying socket's readiness check.
// crypto/tls does not expose an SSL_pending-style "buffered plaintext
// already available" introspection, unlike the OpenSSL-backed original;
// Receive reading a full record at a time (see maxTLSRecordSize) keeps
// this safe, since no plaintext is ever left buffered inside tls.Conn
// for this check to miss.
func (t *TLS) CanReceive(timeout time.Duration) *reqerrors.Error {
	return t.sock.CanReceive(timeout)
}

func (t *TLS) Close() {
	if t.conn != nil {
		_ = t.conn.Close()
		return
	}
	t.sock.Close()
}

// tlsError classifies an error from the TLS layer into a ResultCode.
func tlsError(err error) *reqerrors.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return reqerrors.New(reqerrors.Disconnected, 0)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return reqerrors.New(reqerrors.Timeout, 0)
	}
	return reqerrors.New(reqerrors.Failed, 0)
}
