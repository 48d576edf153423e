//go:build linux

package socket

import "golang.org/x/sys/unix"

// noSignalFlag suppresses SIGPIPE at the send-call level on Linux via
// MSG_NOSIGNAL; there is no per-socket SO_NOSIGPIPE option here.
func noSignalFlag() int {
	return unix.MSG_NOSIGNAL
}

// setNoSigPipe is a no-op on Linux: SIGPIPE suppression is handled per
// send call via MSG_NOSIGNAL instead of a socket option.
func setNoSigPipe(fd int) error {
	return nil
}

// fdSet marks fd in set, using the 64-bit-word FdSet layout Linux uses.
func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}
