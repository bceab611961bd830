package echo

// Checksum computes the RFC 1071 internet checksum of b.
//
// Words are summed in little-endian order and the folded complement is
// byte-swapped at the end, so the result is ready to be written into the
// header with binary.BigEndian. A trailing odd byte counts as a word whose
// second byte is zero. Running Checksum over a packet that already carries
// its correct checksum yields 0.
func Checksum(b []byte) uint16 {
	var sum uint32

	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint32(b[i+1])<<8 | uint32(b[i])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1])
	}

	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}

	answer := ^uint16(sum)
	return answer>>8 | answer<<8
}
