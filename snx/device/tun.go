// Package device wraps the virtual network interface the tunnel bridges
// packets to. The tunnel core only depends on PacketStream, so tests can
// substitute an in-memory implementation.
package device

import (
	"fmt"

	"github.com/songgao/water"
)

const (
	tunMTU            = 1350
	tunPacketBuffSize = 4096
)

// PacketStream is a duplex stream of raw IP packets with a stable name
// for logging.
type PacketStream interface {
	Name() string
	ReadPacket() ([]byte, error)
	WritePacket(data []byte) error
}

// TUN is a kernel TUN interface carrying the tunneled IP packets.
type TUN struct {
	ifce *water.Interface
}

// Open creates a TUN interface. An empty name lets the OS pick one.
// The interface has no address and is down until Configure is called.
func Open(name string) (*TUN, error) {
	ifce, err := water.New(tunConfig(name))
	if err != nil {
		return nil, fmt.Errorf("Open: failed to create TUN device: %w", err)
	}
	return &TUN{ifce: ifce}, nil
}

func (t *TUN) Name() string {
	return t.ifce.Name()
}

// ReadPacket reads the next IP packet from the interface. The returned
// slice is freshly allocated and not reused between calls.
func (t *TUN) ReadPacket() ([]byte, error) {
	buf := make([]byte, tunPacketBuffSize)
	n, err := t.ifce.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("ReadPacket: failed to read from %s: %w", t.ifce.Name(), err)
	}
	return buf[:n], nil
}

func (t *TUN) WritePacket(data []byte) error {
	n, err := t.ifce.Write(data)
	if err != nil {
		return fmt.Errorf("WritePacket: failed to write to %s: %w", t.ifce.Name(), err)
	}
	if n != len(data) {
		return fmt.Errorf("WritePacket: short write to %s: %d != %d", t.ifce.Name(), n, len(data))
	}
	return nil
}

func (t *TUN) Close() error {
	return t.ifce.Close()
}
