// Package protocol implements the binary Source RCON packet codec used
// for communication between MCWarden and Minecraft servers. All packets
// use little-endian byte order with a 4-byte length prefix and a double
// null terminator.
package protocol

// RCON packet type values on the wire. Login and Command share the
// "request" numeric space: the server answers a login with type 2 and a
// command with type 0, distinguishing by connection state.
const (
	TypeResponse int32 = 0 // Command response payload
	TypeCommand  int32 = 2 // Execute a command (also: auth response)
	TypeLogin    int32 = 3 // Authenticate with the RCON password
)

// AuthFailedID is the request id a server returns when the password was
// rejected. It is terminal for the connection.
const AuthFailedID int32 = -1

// MaxOutboundPayload is the largest command body a vanilla server accepts.
const MaxOutboundPayload = 1446

// MaxFragmentPayload is the largest payload a server puts in a single
// response frame. A reply carrying exactly this much may continue in a
// following frame with the same request id.
const MaxFragmentPayload = 4096

// MaxFrameSize caps the declared frame length accepted by the decoder.
// A corrupt length word must not cause unbounded buffering.
const MaxFrameSize = 1 << 20

// LengthPrefixSize is the size of the length prefix in bytes.
const LengthPrefixSize = 4

// headerSize is request id + type.
const headerSize = 8

// terminatorSize is the two trailing null bytes.
const terminatorSize = 2

// Packet represents one RCON protocol frame.
type Packet struct {
	RequestID int32
	Type      int32
	Payload   string
}

// Fragmented reports whether this frame may be a fragment of a larger
// reply, i.e. its payload fills a whole response frame.
func (p *Packet) Fragmented() bool {
	return len(p.Payload) >= MaxFragmentPayload
}
