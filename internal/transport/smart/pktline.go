// Package smart implements the client side of the smart protocol: pkt-line
// framing, ref advertisement parsing, and the negotiation sequences for
// fetch and push. It drives a transport.SmartSubtransport and treats pack
// data as opaque bytes.
package smart

import (
	"fmt"
	"io"
)

// maxPacketLength is the largest payload a pkt-line can carry: the four
// length digits cover the whole packet, capped at 65520 bytes on the wire.
const maxPacketLength = 65516

// writePacket frames payload as one pkt-line: four hex digits covering the
// length prefix itself plus the payload.
func writePacket(w io.Writer, payload []byte) error {
	if len(payload) > maxPacketLength {
		return fmt.Errorf("packet payload too long: %d bytes", len(payload))
	}
	if _, err := fmt.Fprintf(w, "%04x", len(payload)+4); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// writePacketf is writePacket over a formatted payload.
func writePacketf(w io.Writer, format string, args ...interface{}) error {
	return writePacket(w, []byte(fmt.Sprintf(format, args...)))
}

// writeFlush writes the flush-pkt "0000" that terminates a packet section.
func writeFlush(w io.Writer) error {
	_, err := io.WriteString(w, "0000")
	return err
}

// readPacket reads one pkt-line. A flush-pkt yields (nil, true, nil).
func readPacket(r io.Reader) (payload []byte, flush bool, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, false, err
	}

	var length int
	if _, err := fmt.Sscanf(string(lenBuf[:]), "%04x", &length); err != nil {
		return nil, false, fmt.Errorf("bad packet length %q: %w", lenBuf, err)
	}

	switch {
	case length == 0:
		return nil, true, nil
	case length < 4:
		return nil, false, fmt.Errorf("bad packet length %d", length)
	case length == 4:
		return []byte{}, false, nil
	}

	payload = make([]byte, length-4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, fmt.Errorf("short packet: %w", err)
	}
	return payload, false, nil
}
