//go:build darwin

package socket

import "golang.org/x/sys/unix"

// noSignalFlag is unused on Darwin: SIGPIPE suppression is handled via
// the SO_NOSIGPIPE socket option set once in setNoSigPipe instead.
func noSignalFlag() int {
	return 0
}

// setNoSigPipe enables SO_NOSIGPIPE so a write to a peer that has
// closed the connection returns EPIPE instead of raising SIGPIPE.
func setNoSigPipe(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}

// fdSet marks fd in set, using the 32-bit-word FdSet layout Darwin uses.
func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/32] |= 1 << (uint(fd) % 32)
}
