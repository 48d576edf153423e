// Package socket provides a non-blocking stream socket primitive with
// select-based readiness checks, built directly on golang.org/x/sys/unix
// rather than net.Dial so that connect/send/receive readiness are
// first-class, independently retriable operations.
package socket

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/nevermore1994/httpreqgo/pkg/buffer"
	reqerrors "github.com/nevermore1994/httpreqgo/pkg/errors"
)

// IPVersion selects the address family used to create the socket.
type IPVersion int

const (
	V4 IPVersion = iota
	V6
	Auto
)

// AddressFamily returns the unix address family for v. Auto maps to
// AF_UNSPEC, matching the reference implementation's "resolve first,
// then infer" behavior.
func AddressFamily(v IPVersion) int {
	switch v {
	case V4:
		return unix.AF_INET
	case V6:
		return unix.AF_INET6
	default:
		return unix.AF_UNSPEC
	}
}

// defaultReadSize is the buffer size used for each receive syscall.
const defaultReadSize = 4 * 1024

// maxRetryCount bounds EINTR-retry loops on send/receive; finite
// per the socket primitive's contract, value is an implementation choice.
const maxRetryCount = 8

// SelectType chooses which readiness direction to wait for.
type SelectType int

const (
	SelectRead SelectType = iota
	SelectWrite
)

const invalidFD = -1

// Socket is a non-blocking stream socket. The zero value is not usable;
// construct with New. Not safe for concurrent use by multiple goroutines.
type Socket struct {
	fd        int
	ipVersion IPVersion
}

// New creates a non-connected stream socket for the requested address
// family. The socket is not yet in non-blocking mode; Connect performs
// that configuration, matching the reference implementation's
// config()-on-connect sequencing.
func New(ipVersion IPVersion) (*Socket, *reqerrors.Error) {
	fd, err := unix.Socket(AddressFamily(ipVersion), unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, reqerrors.New(reqerrors.CreateSocketFailed, errnoOf(err))
	}
	return &Socket{fd: fd, ipVersion: ipVersion}, nil
}

// errnoOf extracts the OS errno from err, or 0 if err doesn't carry one.
func errnoOf(err error) int {
	if errno, ok := err.(unix.Errno); ok {
		return int(errno)
	}
	return 0
}

// configure puts the socket into non-blocking mode and, on platforms
// that support it, suppresses SIGPIPE at the socket-option level.
func (s *Socket) configure() *reqerrors.Error {
	flags, err := unix.FcntlInt(uintptr(s.fd), unix.F_GETFL, 0)
	if err != nil {
		s.Close()
		return reqerrors.New(reqerrors.GetFlagsFailed, errnoOf(err))
	}
	if _, err := unix.FcntlInt(uintptr(s.fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		s.Close()
		return reqerrors.New(reqerrors.SetFlagsFailed, errnoOf(err))
	}
	if err := setNoSigPipe(s.fd); err != nil {
		s.Close()
		return reqerrors.New(reqerrors.SetNoSigPipeFailed, errnoOf(err))
	}
	return nil
}

// selectReady waits up to timeout for fd to become ready in the given
// direction. A negative timeout waits indefinitely.
func selectReady(typ SelectType, fd int, timeout time.Duration) *reqerrors.Error {
	var readFds, writeFds *unix.FdSet
	set := &unix.FdSet{}
	fdSet(set, fd)
	switch typ {
	case SelectRead:
		readFds = set
	case SelectWrite:
		writeFds = set
	}

	var tv unix.Timeval
	var tvPtr *unix.Timeval
	if timeout >= 0 {
		tv = unix.NsecToTimeval(timeout.Nanoseconds())
		tvPtr = &tv
	}

	n, err := unix.Select(fd+1, readFds, writeFds, nil, tvPtr)
	if err != nil {
		if err == unix.EINTR {
			return reqerrors.New(reqerrors.Retry, errnoOf(err))
		}
		return reqerrors.New(reqerrors.Failed, errnoOf(err))
	}
	if n == 0 {
		return reqerrors.New(reqerrors.Timeout, 0)
	}
	return nil
}

// CanSend reports write-readiness within timeout.
func (s *Socket) CanSend(timeout time.Duration) *reqerrors.Error {
	return selectReady(SelectWrite, s.fd, timeout)
}

// CanReceive reports read-readiness within timeout.
func (s *Socket) CanReceive(timeout time.Duration) *reqerrors.Error {
	return selectReady(SelectRead, s.fd, timeout)
}

// checkConnectResult polls write-readiness until the non-blocking
// connect completes or the deadline elapses, then inspects SO_ERROR.
func (s *Socket) checkConnectResult(initial *reqerrors.Error, timeout time.Duration) *reqerrors.Error {
	if initial == nil {
		return nil
	}
	needsRetry := func(e *reqerrors.Error) bool {
		return e != nil && (e.Errno == int(unix.EINTR) || e.Errno == int(unix.EINPROGRESS))
	}
	if !needsRetry(initial) {
		return initial
	}

	result := initial
	expired := time.Now().Add(timeout)
	for needsRetry(result) {
		remaining := time.Until(expired)
		if remaining < 0 {
			return reqerrors.New(reqerrors.Timeout, 0)
		}
		result = selectReady(SelectWrite, s.fd, remaining)
	}
	if result != nil {
		return result
	}

	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return reqerrors.New(reqerrors.ConnectGenericError, errnoOf(err))
	}
	if errno != 0 {
		return reqerrors.New(reqerrors.ConnectGenericError, errno)
	}
	return nil
}

// Connect issues a non-blocking connect to addr, waiting for
// write-readiness if the connect is still in progress, then checking
// SO_ERROR for the outcome.
func (s *Socket) Connect(addr unix.Sockaddr, family int, timeout time.Duration) *reqerrors.Error {
	if addr == nil {
		return reqerrors.New(reqerrors.ConnectAddressError, 0)
	}
	if s.ipVersion != Auto && family != AddressFamily(s.ipVersion) {
		return reqerrors.New(reqerrors.ConnectTypeInconsistent, 0)
	}
	if cfgErr := s.configure(); cfgErr != nil {
		return cfgErr
	}

	var connectErr *reqerrors.Error
	if err := unix.Connect(s.fd, addr); err != nil {
		connectErr = reqerrors.New(reqerrors.ConnectGenericError, errnoOf(err))
	}
	return s.checkConnectResult(connectErr, timeout)
}

// Send writes data in one syscall, retrying on EINTR up to the bounded
// retry count. Returns the number of bytes sent; zero with a Success
// result is reported as Disconnected per the reference contract.
func (s *Socket) Send(data []byte) (*reqerrors.Error, int) {
	var sent int
	var lastErrno int
	for attempt := 0; attempt < maxRetryCount; attempt++ {
		n, err := unix.SendmsgN(s.fd, data, nil, nil, noSignalFlag())
		if err == nil {
			sent = n
			lastErrno = 0
			break
		}
		lastErrno = errnoOf(err)
		if lastErrno != int(unix.EINTR) {
			break
		}
	}
	if lastErrno != 0 {
		if lastErrno == int(unix.EINTR) {
			return reqerrors.New(reqerrors.RetryReachMaxCount, lastErrno), 0
		}
		return reqerrors.New(reqerrors.Failed, lastErrno), 0
	}
	if sent == 0 {
		return reqerrors.New(reqerrors.Disconnected, 0), 0
	}
	return nil, sent
}

// Receive reads into a fixed-size buffer, retrying on EINTR up to the
// bounded retry count. Zero bytes read is reported as Disconnected, a
// would-block result as Retry.
func (s *Socket) Receive() (*reqerrors.Error, *buffer.Buffer) {
	data := buffer.NewWithCapacity(defaultReadSize)
	raw := make([]byte, defaultReadSize)
	var n int
	var lastErrno int
	for attempt := 0; attempt < maxRetryCount; attempt++ {
		read, err := unix.Read(s.fd, raw)
		if err == nil {
			n = read
			lastErrno = 0
			break
		}
		lastErrno = errnoOf(err)
		if lastErrno != int(unix.EINTR) {
			break
		}
	}
	if lastErrno != 0 {
		switch lastErrno {
		case int(unix.EINTR):
			return reqerrors.New(reqerrors.RetryReachMaxCount, lastErrno), data
		case int(unix.EAGAIN):
			return reqerrors.New(reqerrors.Retry, lastErrno), data
		default:
			return reqerrors.New(reqerrors.Failed, lastErrno), data
		}
	}
	if n == 0 {
		return reqerrors.New(reqerrors.Disconnected, 0), data
	}
	data.AppendBytes(raw[:n])
	return nil, data
}

// Close is idempotent.
func (s *Socket) Close() {
	if s.fd == invalidFD {
		return
	}
	unix.Close(s.fd)
	s.fd = invalidFD
}
