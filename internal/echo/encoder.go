package echo

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	// HeaderLen is the size of the ICMP echo header.
	HeaderLen = 8
	// TimestampLen is the size of the send timestamp at the start of the payload.
	TimestampLen = 8
	// MinPayloadSize is the smallest payload that still holds the timestamp.
	MinPayloadSize = TimestampLen

	TypeEchoRequest = uint8(ipv4.ICMPTypeEcho)
	TypeEchoReply   = uint8(ipv4.ICMPTypeEchoReply)
)

// Request describes one echo request before it is put on the wire.
type Request struct {
	Identifier  uint16
	Sequence    uint16
	PayloadSize int
	Timestamp   time.Time
}

// Encode serializes an echo request: the 8-byte header followed by a payload
// whose first 8 bytes are the send time as a big-endian float64 of Unix
// seconds and whose remaining bytes are zero.
func Encode(req Request) ([]byte, error) {
	if req.PayloadSize < MinPayloadSize {
		return nil, fmt.Errorf("payload size %d below minimum %d", req.PayloadSize, MinPayloadSize)
	}

	b := make([]byte, HeaderLen+req.PayloadSize)
	b[0] = TypeEchoRequest
	b[1] = 0
	binary.BigEndian.PutUint16(b[4:6], req.Identifier)
	binary.BigEndian.PutUint16(b[6:8], req.Sequence)
	binary.BigEndian.PutUint64(b[HeaderLen:HeaderLen+TimestampLen], math.Float64bits(timeToSeconds(req.Timestamp)))

	// checksum field is still zero here
	binary.BigEndian.PutUint16(b[2:4], Checksum(b))
	return b, nil
}

func timeToSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func secondsToTime(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}
