package tunnel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/go-snx/go-snx/snx"
	"github.com/go-snx/go-snx/snx/device"
)

const (
	// reauthLeeway is subtracted from the server-declared credential
	// lifetime so reauthentication completes before expiry.
	reauthLeeway = 60 * time.Second
	// minAuthTimeout is the floor applied when the server-declared
	// lifetime is not longer than the leeway. Without it such a reply
	// would put the session into a constant reauthentication loop.
	minAuthTimeout = 10 * time.Second

	// keepaliveThreshold is the number of unacknowledged keepalive probes
	// after which the tunnel is considered dead.
	keepaliveThreshold = 3
)

// TunnelSession is an authenticated, transport-connected session with the
// gateway. It is created by Client.CreateTunnel, becomes established once
// ClientHello succeeds, and is owned by Run until it returns.
type TunnelSession struct {
	params snx.TunnelParams
	client *Client

	// mu guards the credentials and the assigned address. The session id
	// and the cookie are always replaced together.
	mu        sync.Mutex
	sessionID string
	cookie    string
	ipAddress string

	// Timing parameters negotiated in the handshake, zero until then and
	// fixed afterwards.
	authTimeout       time.Duration
	keepaliveInterval time.Duration

	channel *tunnelChannel

	// keepaliveCounter counts probes sent without an acknowledgment or
	// any other inbound traffic. It is shared between the run loop and
	// the inbound handler goroutine.
	keepaliveCounter atomic.Int64
}

func (s *TunnelSession) newHelloRequest(keepAddress bool) snx.ClientHello {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := strconv.FormatBool(keepAddress)
	return snx.ClientHello{
		ClientVersion:        "1",
		ProtocolVersion:      "1",
		ProtocolMinorVersion: "1",
		OfficeMode: snx.OfficeMode{
			IPAddr:      s.ipAddress,
			KeepAddress: &keep,
		},
		Optional: &snx.OptionalRequest{ClientType: "4"},
		Cookie:   s.cookie,
	}
}

func (s *TunnelSession) sendHello(keepAddress bool) error {
	payload, err := snx.ToPayload(s.newHelloRequest(keepAddress))
	if err != nil {
		return fmt.Errorf("sendHello: %w", err)
	}
	return s.send(snx.ControlPacket(snx.ClientHelloName, payload))
}

// ClientHello performs the initial handshake: it sends the hello request
// and blocks for exactly one inbound message, which must be the handshake
// reply. On success the session is established: the assigned address and
// the timing parameters are set.
func (s *TunnelSession) ClientHello() (snx.HelloReply, error) {
	if err := s.sendHello(false); err != nil {
		return snx.HelloReply{}, fmt.Errorf("ClientHello: failed to send hello: %w", err)
	}

	pkt, ok := s.channel.Receive()
	if !ok {
		return snx.HelloReply{}, fmt.Errorf("ClientHello: %w", errChannelClosed)
	}
	if pkt.IsData() || pkt.Name != snx.HelloReplyName {
		return snx.HelloReply{}, fmt.Errorf("ClientHello: unexpected reply %q", pkt.Name)
	}

	var reply snx.HelloReply
	if err := snx.FromPayload(pkt.Payload, &reply); err != nil {
		return snx.HelloReply{}, fmt.Errorf("ClientHello: malformed hello reply: %w", err)
	}

	// Parse both timeouts before mutating any session state, so a
	// malformed reply leaves the session untouched.
	authSecs, err := strconv.ParseUint(reply.Timeouts.Authentication, 10, 32)
	if err != nil {
		return snx.HelloReply{}, fmt.Errorf("ClientHello: invalid auth timeout %q: %w", reply.Timeouts.Authentication, err)
	}
	keepaliveSecs, err := strconv.ParseUint(reply.Timeouts.Keepalive, 10, 32)
	if err != nil {
		return snx.HelloReply{}, fmt.Errorf("ClientHello: invalid keepalive timeout %q: %w", reply.Timeouts.Keepalive, err)
	}

	authTimeout := time.Duration(authSecs)*time.Second - reauthLeeway
	if authTimeout <= 0 {
		log.WithField("authentication", reply.Timeouts.Authentication).
			Warnf("server credential lifetime not longer than the %v leeway, clamping reauth deadline to %v", reauthLeeway, minAuthTimeout)
		authTimeout = minAuthTimeout
	}

	s.mu.Lock()
	s.ipAddress = reply.OfficeMode.IPAddr
	s.authTimeout = authTimeout
	s.keepaliveInterval = time.Duration(keepaliveSecs) * time.Second
	s.mu.Unlock()

	log.WithField("address", reply.OfficeMode.IPAddr).
		WithField("keepalive", s.keepaliveInterval).
		WithField("authTimeout", s.authTimeout).
		Debug("handshake complete")

	return reply, nil
}

// sendKeepalive sends one keepalive probe. It fails without sending
// anything once the previous probes went unanswered, the caller must
// treat that as fatal for the session.
func (s *TunnelSession) sendKeepalive() error {
	if s.keepaliveCounter.Load() >= keepaliveThreshold {
		return errors.New("no response for keepalive packets, tunnel appears stuck")
	}

	payload, err := snx.ToPayload(snx.KeepaliveRequest{ID: "0"})
	if err != nil {
		return fmt.Errorf("sendKeepalive: %w", err)
	}

	s.keepaliveCounter.Add(1)

	return s.send(snx.ControlPacket(snx.KeepaliveName, payload))
}

// reauthenticate renews the credentials against the current server side
// session and refreshes the address lease with a fire-and-forget hello.
// Any failure is fatal for the session: a failed refresh leaves it one
// step from expiry with no fallback.
func (s *TunnelSession) reauthenticate(ctx context.Context) error {
	s.mu.Lock()
	prevSessionID := s.sessionID
	s.mu.Unlock()

	sessionID, cookie, err := s.client.Authenticate(ctx, prevSessionID)
	if err != nil {
		return fmt.Errorf("reauthenticate: %w", err)
	}

	s.mu.Lock()
	s.sessionID = sessionID
	s.cookie = cookie
	s.mu.Unlock()

	return s.sendHello(true)
}

func (s *TunnelSession) send(pkt snx.SnxPacket) error {
	return s.channel.Send(pkt)
}

// Close shuts the outbound side of the packet channel down, which tears
// down the pump and closes the transport. Call it once, after Run has
// returned.
func (s *TunnelSession) Close() {
	s.channel.Close()
}

// Run bridges IP packets between the virtual interface and the tunnel
// until a fatal error occurs, and drives the keepalive and
// reauthentication logic in between. It returns nil when the interface
// packet stream ends. The session must be established first.
func (s *TunnelSession) Run(ctx context.Context, tun device.PacketStream) error {
	if s.keepaliveInterval == 0 {
		return errors.New("Run: session not established, perform the handshake first")
	}

	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	log.WithField("sessionID", sessionID).WithField("device", tun.Name()).Debug("running tunnel")

	go s.handleInbound(tun)

	tunPackets := readTunPackets(tun)

	lastAuth := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(s.keepaliveInterval):
			if err := s.sendKeepalive(); err != nil {
				return err
			}

		case data, ok := <-tunPackets:
			if !ok {
				log.WithField("device", tun.Name()).Debug("interface packet stream ended")
				return nil
			}
			device.TracePacket(tun.Name()+" => snx", data)
			if err := s.send(snx.DataPacket(data)); err != nil {
				return err
			}
		}

		if s.params.Reauth && time.Since(lastAuth) >= s.authTimeout {
			if err := s.reauthenticate(ctx); err != nil {
				return err
			}
			lastAuth = time.Now()
		}
	}
}

// handleInbound drains the inbound queue: keepalive acknowledgments lower
// the liveness counter, data packets reset it and go to the interface.
// An interface write error ends the handler, the main loop notices
// through the channel shutting down eventually.
func (s *TunnelSession) handleInbound(tun device.PacketStream) {
	for {
		pkt, ok := s.channel.Receive()
		if !ok {
			return
		}

		if !pkt.IsData() {
			log.WithField("name", pkt.Name).Debug("control packet received")
			if pkt.Name == snx.KeepaliveName {
				s.lowerKeepaliveCounter()
			}
			continue
		}

		s.keepaliveCounter.Store(0)
		device.TracePacket("snx => "+tun.Name(), pkt.Data)
		if err := tun.WritePacket(pkt.Data); err != nil {
			log.WithError(err).WithField("device", tun.Name()).Error("failed to write packet to interface")
			return
		}
	}
}

// lowerKeepaliveCounter decrements the liveness counter without letting
// it drop below zero, acknowledgments for probes that were already
// cancelled out by data traffic must not bank credit.
func (s *TunnelSession) lowerKeepaliveCounter() {
	for {
		current := s.keepaliveCounter.Load()
		if current <= 0 {
			return
		}
		if s.keepaliveCounter.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// readTunPackets pumps packets from the interface into a channel so the
// run loop can select on them. The channel closes when the packet stream
// ends for any reason.
func readTunPackets(tun device.PacketStream) <-chan []byte {
	packets := make(chan []byte, 16)
	go func() {
		defer close(packets)
		for {
			data, err := tun.ReadPacket()
			if err != nil {
				log.WithError(err).WithField("device", tun.Name()).Debug("stopped reading from interface")
				return
			}
			packets <- data
		}
	}()
	return packets
}
