// Package transport carries datagrams in and out of the bridge: a receive
// socket with read deadlines for motion commands and connected publishers for
// each telemetry stream.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// UDPSocket is the receive side used by command intake. *net.UDPConn
// satisfies it; MockUDPSocket stands in for it in tests.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// DatagramConn is the send side of a connected UDP socket.
type DatagramConn interface {
	Write(b []byte) (int, error)
	Close() error
}

// Listen binds a UDP socket on addr ("ip:port").
func Listen(addr string) (UDPSocket, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return conn, nil
}

// Dial opens a connected UDP socket to addr ("ip:port").
func Dial(addr string) (DatagramConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection to %s: %w", addr, err)
	}
	return conn, nil
}

// IsTimeout reports whether err is a read deadline expiry. An expired
// deadline is an empty poll, not a failure.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
