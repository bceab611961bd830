//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package network

import (
	"errors"
	"net"
	"time"
)

// RawSocket is unavailable on this platform.
type RawSocket struct{}

// OpenRawSocket always fails on this platform.
func OpenRawSocket() (*RawSocket, error) {
	return nil, errors.New("raw ICMP sockets are not supported on this platform")
}

func (s *RawSocket) WriteTo(b []byte, dst net.IP) error       { return ErrClosed }
func (s *RawSocket) Wait(timeout time.Duration) (bool, error) { return false, ErrClosed }
func (s *RawSocket) Read(b []byte) (int, error)               { return 0, ErrClosed }
func (s *RawSocket) Close() error                             { return nil }
