package capture

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

// Record is one ICMP message found in a capture.
type Record struct {
	Timestamp  time.Time
	SrcIP      net.IP
	DstIP      net.IP
	TTL        uint8
	Type       uint8
	Code       uint8
	Identifier uint16
	Sequence   uint16
}

// Parser reads pcap captures and extracts ICMPv4 messages.
type Parser struct{}

// NewParser creates a new capture parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads a pcap file and returns its ICMPv4 messages in order.
func (p *Parser) ParseFile(filename string) ([]Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", filename, err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse reads a pcap stream and returns its ICMPv4 messages in order.
func (p *Parser) Parse(r io.Reader) ([]Record, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}

	linkType := reader.LinkType()
	log.WithField("link_type", linkType.String()).Debug("PCAP link type detected")

	packetSource := gopacket.NewPacketSource(reader, linkType)
	packetSource.DecodeOptions.Lazy = true

	var records []Record
	totalPackets := 0
	for packet := range packetSource.Packets() {
		totalPackets++

		ipLayer, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok {
			continue
		}
		icmpLayer, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		if !ok {
			continue
		}

		records = append(records, Record{
			Timestamp:  packet.Metadata().Timestamp,
			SrcIP:      ipLayer.SrcIP,
			DstIP:      ipLayer.DstIP,
			TTL:        ipLayer.TTL,
			Type:       icmpLayer.TypeCode.Type(),
			Code:       icmpLayer.TypeCode.Code(),
			Identifier: icmpLayer.Id,
			Sequence:   icmpLayer.Seq,
		})
	}

	log.WithFields(log.Fields{
		"total_packets": totalPackets,
		"icmp_packets":  len(records),
	}).Debug("PCAP parsing complete")

	return records, nil
}

// CountMessages returns the number of ICMP messages per type name in a pcap file.
func (p *Parser) CountMessages(filename string) (map[string]int, error) {
	records, err := p.ParseFile(filename)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		counts[TypeName(rec.Type)]++
	}
	return counts, nil
}

// TypeName returns a human-readable name for an ICMPv4 message type.
func TypeName(t uint8) string {
	switch t {
	case layers.ICMPv4TypeEchoReply:
		return "EchoReply"
	case layers.ICMPv4TypeDestinationUnreachable:
		return "DestinationUnreachable"
	case layers.ICMPv4TypeSourceQuench:
		return "SourceQuench"
	case layers.ICMPv4TypeRedirect:
		return "Redirect"
	case layers.ICMPv4TypeEchoRequest:
		return "EchoRequest"
	case layers.ICMPv4TypeTimeExceeded:
		return "TimeExceeded"
	case layers.ICMPv4TypeParameterProblem:
		return "ParameterProblem"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}
