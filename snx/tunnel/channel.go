package tunnel

import (
	"errors"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/go-snx/go-snx/snx"
	"github.com/go-snx/go-snx/snx/codec"
)

const channelSize = 1024

var errChannelClosed = errors.New("tunnel channel closed")

// tunnelChannel presents the framed tunnel stream as two decoupled packet
// queues. A background pump moves packets between the queues and the wire
// in both directions and tears the whole channel down as soon as either
// direction fails or completes. The rest of the session never touches the
// stream or the framing directly.
type tunnelChannel struct {
	out chan snx.SnxPacket
	in  chan snx.SnxPacket
	// done is closed when the pump has exited and the stream is closed.
	done chan struct{}
}

func newTunnelChannel(stream io.ReadWriteCloser) *tunnelChannel {
	c := &tunnelChannel{
		out:  make(chan snx.SnxPacket, channelSize),
		in:   make(chan snx.SnxPacket, channelSize),
		done: make(chan struct{}),
	}
	go c.pump(stream)
	return c
}

// pump runs both wire directions and returns when the first one finishes.
// Write errors, read errors and decode errors are all just reasons the
// channel shut down, they are not distinguished here.
func (c *tunnelChannel) pump(stream io.ReadWriteCloser) {
	result := make(chan error, 2)

	go func() {
		w := codec.NewWriter(stream)
		for pkt := range c.out {
			if err := w.WritePacket(pkt); err != nil {
				result <- err
				return
			}
		}
		result <- nil
	}()

	// The read goroutine is the only sender on c.in, so it alone closes it.
	go func() {
		defer close(c.in)
		r := codec.NewReader(stream)
		for {
			pkt, err := r.ReadPacket()
			if err != nil {
				result <- err
				return
			}
			select {
			case c.in <- pkt:
			case <-c.done:
				return
			}
		}
	}()

	err := <-result
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
		log.WithError(err).Debug("tunnel channel closed")
	}
	// Closing the stream unblocks whichever direction is still running.
	stream.Close()
	close(c.done)
}

// Send queues a packet for transmission. It fails instead of blocking
// forever once the pump has shut down.
func (c *tunnelChannel) Send(pkt snx.SnxPacket) error {
	select {
	case <-c.done:
		return errChannelClosed
	default:
	}
	select {
	case c.out <- pkt:
		return nil
	case <-c.done:
		return errChannelClosed
	}
}

// Receive returns the next inbound packet. The second return value is
// false once the channel has shut down and all queued packets are drained.
func (c *tunnelChannel) Receive() (snx.SnxPacket, bool) {
	pkt, ok := <-c.in
	return pkt, ok
}

// Close stops the outbound direction, which makes the pump shut the whole
// channel down. Safe to call once, after all senders are finished.
func (c *tunnelChannel) Close() {
	close(c.out)
}
