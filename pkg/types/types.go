package types

import (
	"net"
	"time"
)

// EchoReply is a decoded ICMP echo reply together with the IP fields ping reports.
type EchoReply struct {
	Type        uint8
	Code        uint8
	Checksum    uint16
	Identifier  uint16
	Sequence    uint16
	TTL         uint8
	PayloadSize int       // bytes following the 8-byte ICMP header
	SentAt      time.Time // timestamp embedded by the sender
	ReceivedAt  time.Time // set by the transport when the datagram became readable
}

// RTT returns the round-trip time measured from the embedded send timestamp.
func (r EchoReply) RTT() time.Duration {
	return r.ReceivedAt.Sub(r.SentAt)
}

// OutcomeStatus classifies a single probe.
type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeTimeout
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProbeOutcome is the recorded result of one echo request.
type ProbeOutcome struct {
	Sequence  uint16
	Target    net.IP
	Status    OutcomeStatus
	Delay     time.Duration // zero unless Status is OutcomeSuccess
	TTL       uint8
	ReplySize int
	Err       error // send failure that turned the probe into a loss, if any
}

// Success reports whether the probe got a matching reply.
func (o ProbeOutcome) Success() bool {
	return o.Status == OutcomeSuccess
}

// DelayMillis returns the delay truncated to whole milliseconds.
func (o ProbeOutcome) DelayMillis() int64 {
	return o.Delay.Milliseconds()
}
