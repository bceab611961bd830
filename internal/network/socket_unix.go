//go:build linux || darwin || freebsd || netbsd || openbsd

package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RawSocket is an AF_INET/SOCK_RAW/IPPROTO_ICMP socket. Reads return the
// whole IPv4 datagram including its header.
type RawSocket struct {
	fd        int
	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// OpenRawSocket opens a raw ICMP socket.
func OpenRawSocket() (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_ICMP)
	if err != nil {
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to open raw ICMP socket: %w", err)
	}
	log.WithField("fd", fd).Debug("Raw ICMP socket opened")
	return &RawSocket{fd: fd}, nil
}

// WriteTo sends b to dst. ENOBUFS is retried a few times before giving up.
func (s *RawSocket) WriteTo(b []byte, dst net.IP) error {
	ip4 := dst.To4()
	if ip4 == nil {
		return fmt.Errorf("destination %s is not an IPv4 address", dst)
	}
	if s.isClosed() {
		return ErrClosed
	}

	sa := &unix.SockaddrInet4{Port: placeholderPort}
	copy(sa.Addr[:], ip4)

	var err error
	for tries := 6; tries > 0; tries-- {
		err = unix.Sendto(s.fd, b, 0, sa)
		if !errors.Is(err, unix.ENOBUFS) {
			break
		}
	}
	return err
}

// Wait polls the socket for readability for at most timeout.
func (s *RawSocket) Wait(timeout time.Duration) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}

	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		// round up so a sub-millisecond budget still blocks
		ms := int((remaining + time.Millisecond - 1) / time.Millisecond)

		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("poll: socket error (revents 0x%x)", fds[0].Revents)
		}
		return true, nil
	}
}

// Read reads one datagram into b.
func (s *RawSocket) Read(b []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	n, _, err := unix.Recvfrom(s.fd, b, 0)
	if err != nil {
		return 0, fmt.Errorf("recvfrom: %w", err)
	}
	return n, nil
}

// Close releases the file descriptor. It is safe to call more than once.
func (s *RawSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = unix.Close(s.fd)
	})
	return err
}

func (s *RawSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
