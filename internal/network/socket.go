package network

import (
	"errors"
	"net"
	"time"
)

// placeholderPort fills the port of the destination sockaddr; raw ICMP ignores it.
const placeholderPort = 1

var (
	// ErrPermissionDenied is returned when the raw socket cannot be opened
	// for lack of privilege (root or CAP_NET_RAW).
	ErrPermissionDenied = errors.New("permission denied opening raw ICMP socket")
	// ErrTimeout is returned when no matching reply arrived within the budget.
	ErrTimeout = errors.New("timed out waiting for echo reply")
	// ErrClosed is returned by operations on a closed socket.
	ErrClosed = errors.New("socket closed")
)

// Conn is the raw datagram socket the Transport drives.
type Conn interface {
	// WriteTo sends one ICMP message to dst.
	WriteTo(b []byte, dst net.IP) error
	// Wait blocks until a datagram is readable or timeout elapses.
	// It reports false on timeout.
	Wait(timeout time.Duration) (bool, error)
	// Read reads one full IPv4 datagram, IP header included.
	Read(b []byte) (int, error)
	Close() error
}
