package snx

// Control message names. Handshake request, handshake reply and keepalive
// are all control packets on the wire, distinguished by name rather than
// by a separate frame type. Keepalive acknowledgments carry the same name
// as the request.
const (
	ClientHelloName = "client_hello"
	HelloReplyName  = "hello_reply"
	KeepaliveName   = "keepalive"
)

// SnxPacket is a single message multiplexed on the tunnel stream: either
// a named control message with a structured payload, or a raw IP packet.
type SnxPacket struct {
	// Name of the control message. Empty for data packets.
	Name string
	// Payload of a control message. May be nil for messages without one.
	Payload map[string]interface{}
	// Data holds the raw IP packet for data packets.
	Data []byte
}

// ControlPacket creates a control message packet.
func ControlPacket(name string, payload map[string]interface{}) SnxPacket {
	return SnxPacket{Name: name, Payload: payload}
}

// DataPacket creates a data packet carrying a raw IP packet.
func DataPacket(data []byte) SnxPacket {
	return SnxPacket{Data: data}
}

// IsData reports whether p carries a raw IP packet.
func (p SnxPacket) IsData() bool {
	return p.Name == ""
}
