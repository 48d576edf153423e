//go:build linux || darwin

package socket

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func listenLoopback(t *testing.T) (*net.TCPListener, unix.Sockaddr, int) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tcpLn := ln.(*net.TCPListener)
	addr := tcpLn.Addr().(*net.TCPAddr)
	var ip [4]byte
	copy(ip[:], addr.IP.To4())
	return tcpLn, &unix.SockaddrInet4{Port: addr.Port, Addr: ip}, addr.Port
}

func TestConnectSendReceive(t *testing.T) {
	ln, sa, _ := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	sock, sockErr := New(V4)
	if sockErr != nil {
		t.Fatalf("New: %v", sockErr)
	}
	defer sock.Close()

	if err := sock.Connect(sa, unix.AF_INET, 2*time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	serverConn := <-accepted
	defer serverConn.Close()

	sendErr, n := sock.Send([]byte("ping"))
	if sendErr != nil {
		t.Fatalf("Send: %v", sendErr)
	}
	if n != 4 {
		t.Fatalf("Send n = %d, want 4", n)
	}

	buf := make([]byte, 4)
	if _, err := serverConn.Read(buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("server got %q, want ping", buf)
	}

	if _, err := serverConn.Write([]byte("pong")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	if err := sock.CanReceive(2 * time.Second); err != nil {
		t.Fatalf("CanReceive: %v", err)
	}
	recvErr, data := sock.Receive()
	if recvErr != nil {
		t.Fatalf("Receive: %v", recvErr)
	}
	if string(data.View()) != "pong" {
		t.Fatalf("Receive = %q, want pong", data.View())
	}
}

func TestConnectAddressError(t *testing.T) {
	sock, sockErr := New(V4)
	if sockErr != nil {
		t.Fatalf("New: %v", sockErr)
	}
	defer sock.Close()
	err := sock.Connect(nil, unix.AF_INET, time.Second)
	if err == nil {
		t.Fatalf("expected ConnectAddressError")
	}
}

func TestConnectTypeInconsistent(t *testing.T) {
	sock, sockErr := New(V4)
	if sockErr != nil {
		t.Fatalf("New: %v", sockErr)
	}
	defer sock.Close()
	err := sock.Connect(&unix.SockaddrInet6{Port: 80}, unix.AF_INET6, time.Second)
	if err == nil {
		t.Fatalf("expected ConnectTypeInconsistent")
	}
}

func TestDisconnectedOnPeerClose(t *testing.T) {
	ln, sa, _ := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	sock, sockErr := New(V4)
	if sockErr != nil {
		t.Fatalf("New: %v", sockErr)
	}
	defer sock.Close()

	if err := sock.Connect(sa, unix.AF_INET, 2*time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	serverConn := <-accepted
	serverConn.Close()

	if err := sock.CanReceive(2 * time.Second); err != nil {
		t.Fatalf("CanReceive: %v", err)
	}
	recvErr, _ := sock.Receive()
	if recvErr == nil {
		t.Fatalf("expected Disconnected result")
	}
}
