package network

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"icmp-ping/internal/echo"
	"icmp-ping/pkg/types"
)

const maxDatagramSize = 65535

// Tap observes traffic passing through a Transport.
type Tap interface {
	Sent(packet []byte, dst net.IP)
	Received(datagram []byte)
}

// Options customizes a Transport. Zero values select the defaults.
type Options struct {
	Now func() time.Time
	Tap Tap
}

// Transport sends echo requests and waits for their matching replies.
type Transport struct {
	conn Conn
	now  func() time.Time
	tap  Tap
	buf  []byte
}

// NewTransport wraps conn. The caller keeps ownership of conn and must close it.
func NewTransport(conn Conn, opts Options) *Transport {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Transport{
		conn: conn,
		now:  now,
		tap:  opts.Tap,
		buf:  make([]byte, maxDatagramSize),
	}
}

// Send transmits an encoded echo request to dst.
func (t *Transport) Send(packet []byte, dst net.IP) error {
	if err := t.conn.WriteTo(packet, dst); err != nil {
		return fmt.Errorf("failed to send to %s: %w", dst, err)
	}
	if t.tap != nil {
		t.tap.Sent(packet, dst)
	}
	return nil
}

// Receive waits up to timeout for the echo reply carrying identifier and
// sequence. Unrelated datagrams are dropped and the time spent on them is
// charged against the same budget, so the total wait never exceeds timeout.
func (t *Transport) Receive(identifier, sequence uint16, timeout time.Duration) (types.EchoReply, error) {
	remaining := timeout
	for remaining > 0 {
		start := t.now()

		ready, err := t.conn.Wait(remaining)
		if err != nil {
			return types.EchoReply{}, fmt.Errorf("failed waiting for reply: %w", err)
		}
		if !ready {
			return types.EchoReply{}, ErrTimeout
		}

		receivedAt := t.now()
		n, err := t.conn.Read(t.buf)
		if err != nil {
			return types.EchoReply{}, fmt.Errorf("failed reading reply: %w", err)
		}
		datagram := t.buf[:n]
		if t.tap != nil {
			t.tap.Received(datagram)
		}

		reply, err := echo.Decode(datagram)
		switch {
		case err != nil:
			log.WithError(err).WithField("bytes", n).Debug("Discarding datagram")
		case reply.Identifier != identifier || reply.Sequence != sequence:
			log.WithFields(log.Fields{
				"id":  reply.Identifier,
				"seq": reply.Sequence,
			}).Debug("Discarding echo reply for another probe")
		default:
			reply.ReceivedAt = receivedAt
			return reply, nil
		}

		remaining -= t.now().Sub(start)
	}
	return types.EchoReply{}, ErrTimeout
}
