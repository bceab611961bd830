package capture

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

const snapLen = 65535

// Writer records sent echo requests and received datagrams into a pcap
// stream with raw IPv4 link type. It satisfies network.Tap.
type Writer struct {
	w      *pcapgo.Writer
	closer io.Closer
	now    func() time.Time
	mu     sync.Mutex
}

// NewWriter writes the pcap file header to w and returns a Writer for it.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: pw, now: time.Now}, nil
}

// Create opens filename for writing and returns a Writer for it.
func Create(filename string) (*Writer, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file %s: %w", filename, err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Sent records an outgoing ICMP message. The kernel builds the real IP
// header, so a minimal one with an unspecified source is synthesized.
func (w *Writer) Sent(packet []byte, dst net.IP) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IPv4zero.To4(),
		DstIP:    dst.To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(packet)); err != nil {
		log.WithError(err).Warn("Failed to build IPv4 header for capture")
		return
	}
	w.write(buf.Bytes())
}

// Received records an incoming datagram as read from the raw socket.
func (w *Writer) Received(datagram []byte) {
	w.write(datagram)
}

func (w *Writer) write(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ci := gopacket.CaptureInfo{
		Timestamp:     w.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		log.WithError(err).Warn("Failed to write capture packet")
	}
}

// Close closes the underlying file when the Writer owns one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
