package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Packet{
		{RequestID: 0, Type: TypeLogin, Payload: "hunter2"},
		{RequestID: 1, Type: TypeCommand, Payload: "list"},
		{RequestID: 42, Type: TypeResponse, Payload: ""},
		{RequestID: -1, Type: TypeCommand, Payload: ""},
		{RequestID: 7, Type: TypeResponse, Payload: strings.Repeat("x", MaxFragmentPayload)},
		{RequestID: 9, Type: TypeCommand, Payload: "say 给Alex 64个钻石"},
	}

	for _, want := range cases {
		data, err := Encode(&want)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", want, err)
		}

		got, err := ReadPacket(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("ReadPacket after Encode(%+v): %v", want, err)
		}
		if *got != want {
			t.Errorf("round trip mismatch: got %+v, want %+v", *got, want)
		}
	}
}

func TestEncodeWireLayout(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 5, Type: TypeLogin, Payload: "pw"})
	if err != nil {
		t.Fatal(err)
	}

	// length = 4 (id) + 4 (type) + 2 (payload) + 2 (terminator)
	if got := binary.LittleEndian.Uint32(data[0:4]); got != 12 {
		t.Errorf("length field = %d, want 12", got)
	}
	if got := int32(binary.LittleEndian.Uint32(data[4:8])); got != 5 {
		t.Errorf("request id field = %d, want 5", got)
	}
	if got := int32(binary.LittleEndian.Uint32(data[8:12])); got != TypeLogin {
		t.Errorf("type field = %d, want %d", got, TypeLogin)
	}
	if string(data[12:14]) != "pw" {
		t.Errorf("payload bytes = %q, want %q", data[12:14], "pw")
	}
	if data[14] != 0 || data[15] != 0 {
		t.Errorf("terminator bytes = %v, want [0 0]", data[14:16])
	}
}

func TestReadPacketRejectsBadTerminator(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 1, Type: TypeCommand, Payload: "seed"})
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] = 0xFF

	_, err = ReadPacket(bytes.NewReader(data))
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("ReadPacket with corrupt terminator: got %v, want FramingError", err)
	}
}

func TestReadPacketRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(MaxFrameSize+1))

	_, err := ReadPacket(&buf)
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("ReadPacket with oversized length: got %v, want FramingError", err)
	}
}

func TestReadPacketRejectsUndersizedLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	buf.Write([]byte{0, 0, 0, 0})

	_, err := ReadPacket(&buf)
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("ReadPacket with undersized length: got %v, want FramingError", err)
	}
}

func TestReadPacketTruncatedBody(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 3, Type: TypeCommand, Payload: "time set day"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = ReadPacket(bytes.NewReader(data[:len(data)-4]))
	if err == nil {
		t.Fatal("ReadPacket on truncated frame: expected error")
	}
	var fe *FramingError
	if errors.As(err, &fe) {
		t.Fatalf("truncated body should be an I/O error, not FramingError: %v", err)
	}
}

func TestFragmented(t *testing.T) {
	p := Packet{Payload: strings.Repeat("a", MaxFragmentPayload)}
	if !p.Fragmented() {
		t.Error("full-size payload should report Fragmented")
	}
	p.Payload = p.Payload[:MaxFragmentPayload-1]
	if p.Fragmented() {
		t.Error("short payload should not report Fragmented")
	}
}
