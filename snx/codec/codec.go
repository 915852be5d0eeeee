// Package codec implements the wire framing of the tunnel protocol.
//
// Every TLS record carries one frame: an 8 byte header of big endian body
// length and packet type, followed by the body. Control bodies are a JSON
// object with a single key, the message name, mapped to the structured
// payload. Data bodies are a raw IP packet.
package codec

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-snx/go-snx/snx"
)

const (
	headerSize   = 8
	maxFrameSize = 65535

	packetTypeControl uint32 = 1
	packetTypeData    uint32 = 2
)

// Reader decodes frames from a byte stream into packets.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadPacket reads exactly one frame. It returns io.EOF when the stream
// ends cleanly on a frame boundary.
func (r *Reader) ReadPacket() (snx.SnxPacket, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r.r, header); err != nil {
		if err == io.EOF {
			return snx.SnxPacket{}, io.EOF
		}
		return snx.SnxPacket{}, fmt.Errorf("ReadPacket: failed to read frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[0:4])
	packetType := binary.BigEndian.Uint32(header[4:8])
	if length > maxFrameSize {
		return snx.SnxPacket{}, fmt.Errorf("ReadPacket: frame of %d bytes exceeds maximum of %d", length, maxFrameSize)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return snx.SnxPacket{}, fmt.Errorf("ReadPacket: failed to read frame body: %w", err)
	}
	switch packetType {
	case packetTypeControl:
		return decodeControl(body)
	case packetTypeData:
		return snx.DataPacket(body), nil
	default:
		return snx.SnxPacket{}, fmt.Errorf("ReadPacket: unknown packet type %d", packetType)
	}
}

func decodeControl(body []byte) (snx.SnxPacket, error) {
	var msg map[string]interface{}
	if err := json.Unmarshal(body, &msg); err != nil {
		return snx.SnxPacket{}, fmt.Errorf("decodeControl: malformed control body: %w", err)
	}
	if len(msg) != 1 {
		return snx.SnxPacket{}, fmt.Errorf("decodeControl: expected a single message name, got %d", len(msg))
	}
	for name, value := range msg {
		payload, _ := value.(map[string]interface{})
		return snx.ControlPacket(name, payload), nil
	}
	// unreachable, len(msg) == 1
	return snx.SnxPacket{}, nil
}

// Writer encodes packets into frames on a byte stream.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WritePacket writes exactly one frame. The frame is written with a single
// Write call so concurrent frames never interleave on the stream.
func (w *Writer) WritePacket(pkt snx.SnxPacket) error {
	var body []byte
	packetType := packetTypeData
	if pkt.IsData() {
		body = pkt.Data
	} else {
		packetType = packetTypeControl
		var err error
		body, err = json.Marshal(map[string]interface{}{pkt.Name: pkt.Payload})
		if err != nil {
			return fmt.Errorf("WritePacket: failed to marshal control body: %w", err)
		}
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("WritePacket: frame of %d bytes exceeds maximum of %d", len(body), maxFrameSize)
	}
	frame := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], packetType)
	copy(frame[headerSize:], body)
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("WritePacket: failed to write frame: %w", err)
	}
	return nil
}
