package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FramingError indicates a malformed or oversized frame on the wire.
// It is fatal to the current connection, not the process.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("rcon framing error: %s", e.Reason)
}

// Encode serializes a packet into wire format:
// [length(4,LE)][requestId(4,LE)][type(4,LE)][payload][0x00][0x00]
// where length counts everything after itself.
func Encode(p *Packet) ([]byte, error) {
	body := []byte(p.Payload)
	length := headerSize + len(body) + terminatorSize

	if length > MaxFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("payload too large: %d bytes", len(body))}
	}

	buf := make([]byte, 0, LengthPrefixSize+length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(length))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.RequestID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Type))
	buf = append(buf, body...)
	buf = append(buf, 0x00, 0x00)

	return buf, nil
}

// WritePacket encodes a packet and writes it to w in a single call.
func WritePacket(w io.Writer, p *Packet) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write rcon packet: %w", err)
	}
	return nil
}

// ReadPacket reads one complete frame from r, blocking until the declared
// length has arrived. Callers never see a partial frame: either a whole
// packet is returned or an error. A *FramingError means the stream is
// corrupt and the connection must be dropped.
func ReadPacket(r io.Reader) (*Packet, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read rcon frame length: %w", err)
	}

	length := int(int32(binary.LittleEndian.Uint32(lengthBuf[:])))
	if length < headerSize+terminatorSize {
		return nil, &FramingError{Reason: fmt.Sprintf("declared length too small: %d", length)}
	}
	if length > MaxFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("declared length too large: %d (max %d)", length, MaxFrameSize)}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read rcon frame body (%d bytes): %w", length, err)
	}

	if body[length-2] != 0x00 || body[length-1] != 0x00 {
		return nil, &FramingError{Reason: "missing double null terminator"}
	}

	return &Packet{
		RequestID: int32(binary.LittleEndian.Uint32(body[0:4])),
		Type:      int32(binary.LittleEndian.Uint32(body[4:8])),
		Payload:   string(body[headerSize : length-terminatorSize]),
	}, nil
}
