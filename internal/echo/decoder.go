package echo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/net/ipv4"

	"icmp-ping/pkg/types"
)

// IPHeaderLen is the fixed IPv4 header size replies are parsed with. Headers
// carrying options are rejected rather than parsed.
const IPHeaderLen = ipv4.HeaderLen

const ttlOffset = 8

var (
	// ErrNotReply marks a well-formed ICMP message that is not an echo reply.
	ErrNotReply = errors.New("not an echo reply")
	// ErrDecode marks a datagram that cannot be parsed as IPv4 + ICMP echo.
	ErrDecode = errors.New("malformed datagram")
)

// Decode parses a raw IPv4 datagram as read from a raw ICMP socket.
func Decode(datagram []byte) (types.EchoReply, error) {
	var reply types.EchoReply

	if len(datagram) < IPHeaderLen+HeaderLen {
		return reply, fmt.Errorf("%w: %d bytes", ErrDecode, len(datagram))
	}
	if version := datagram[0] >> 4; version != ipv4.Version {
		return reply, fmt.Errorf("%w: ip version %d", ErrDecode, version)
	}
	if hdrLen := int(datagram[0]&0x0f) << 2; hdrLen != IPHeaderLen {
		return reply, fmt.Errorf("%w: ip header length %d", ErrDecode, hdrLen)
	}

	icmp := datagram[IPHeaderLen:]
	reply.Type = icmp[0]
	reply.Code = icmp[1]
	reply.Checksum = binary.BigEndian.Uint16(icmp[2:4])
	reply.Identifier = binary.BigEndian.Uint16(icmp[4:6])
	reply.Sequence = binary.BigEndian.Uint16(icmp[6:8])

	if reply.Type != TypeEchoReply {
		return reply, fmt.Errorf("%w: type %d", ErrNotReply, reply.Type)
	}
	if len(icmp) < HeaderLen+TimestampLen {
		return reply, fmt.Errorf("%w: echo reply payload %d bytes", ErrDecode, len(icmp)-HeaderLen)
	}

	bits := binary.BigEndian.Uint64(icmp[HeaderLen : HeaderLen+TimestampLen])
	reply.SentAt = secondsToTime(math.Float64frombits(bits))
	reply.PayloadSize = len(icmp) - HeaderLen
	reply.TTL = datagram[ttlOffset]

	return reply, nil
}
