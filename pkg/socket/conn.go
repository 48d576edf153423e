package socket

import (
	"io"
	"net"
	"time"

	reqerrors "github.com/nevermore1994/httpreqgo/pkg/errors"
)

// Conn adapts a Socket to net.Conn so crypto/tls can be layered over it.
// Read and Write internally drive the socket's readiness-then-retry
// discipline against the deadlines net.Conn callers set, rather than
// relying on the fd's blocking mode.
type Conn struct {
	sock          *Socket
	readDeadline  time.Time
	writeDeadline time.Time
	local, remote net.Addr
	// pending holds bytes from the last socket read that did not fit
	// the caller's buffer; the next Read returns them first.
	pending []byte
}

// NewConn wraps sock as a net.Conn. local/remote may be nil.
func NewConn(sock *Socket, local, remote net.Addr) *Conn {
	return &Conn{sock: sock, local: local, remote: remote}
}

func remaining(deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return -1
	}
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	return d
}

// Read blocks until at least one byte is available, the deadline
// elapses, or the connection is closed.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	for {
		if err := c.sock.CanReceive(remaining(c.readDeadline)); err != nil {
			if err.Code == reqerrors.Timeout {
				return 0, timeoutError{}
			}
			if err.Code == reqerrors.Retry {
				continue
			}
			return 0, err
		}
		recvErr, data := c.sock.Receive()
		if recvErr == nil {
			n := copy(p, data.View())
			c.pending = data.View()[n:]
			return n, nil
		}
		switch recvErr.Code {
		case reqerrors.Retry:
			continue
		case reqerrors.Disconnected:
			return 0, io.EOF
		default:
			return 0, recvErr
		}
	}
}

// Write blocks until all of p has been written, the deadline elapses,
// or the connection is closed.
func (c *Conn) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if err := c.sock.CanSend(remaining(c.writeDeadline)); err != nil {
			if err.Code == reqerrors.Timeout {
				return total, timeoutError{}
			}
			if err.Code == reqerrors.Retry {
				continue
			}
			return total, err
		}
		sendErr, n := c.sock.Send(p[total:])
		if sendErr != nil {
			return total, sendErr
		}
		total += n
	}
	return total, nil
}

func (c *Conn) Close() error {
	c.sock.Close()
	return nil
}

func (c *Conn) LocalAddr() net.Addr  { return c.local }
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

func (c *Conn) SetDeadline(t time.Time) error {
	c.readDeadline = t
	c.writeDeadline = t
	return nil
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.readDeadline = t
	return nil
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline = t
	return nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "socket: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
