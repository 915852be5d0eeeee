package tunnel

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/go-snx/go-snx/snx"
	"github.com/go-snx/go-snx/snx/auth"
)

// tlsPort is fixed by the protocol, the tunnel always runs on 443.
const tlsPort = "443"

// unassignedIP is sent in the first handshake to request a fresh lease.
const unassignedIP = "0.0.0.0"

type authenticator interface {
	Authenticate(ctx context.Context, prevSessionID string) (auth.Response, error)
}

// Client is a stateless factory for tunnel sessions: it authenticates
// against the gateway and establishes the encrypted transport.
type Client struct {
	params snx.TunnelParams
	auth   authenticator
}

func NewClient(params snx.TunnelParams) *Client {
	return &Client{params: params, auth: auth.NewAuthenticator(params)}
}

// Authenticate performs the authentication exchange and returns the
// session id and the decoded cookie. prevSessionID is empty for a fresh
// login and carries the current session id for a renewal.
func (c *Client) Authenticate(ctx context.Context, prevSessionID string) (string, string, error) {
	response, err := c.auth.Authenticate(ctx, prevSessionID)
	if err != nil {
		return "", "", fmt.Errorf("Authenticate: exchange failed: %w", err)
	}

	data := response.Data
	if data.IsAuthenticated != "true" || data.ActiveKey == nil {
		log.Warn("Authentication failed!")
		return "", "", errors.New("Authentication failed!")
	}

	sessionID := ""
	if data.SessionID != nil {
		sessionID = *data.SessionID
	}
	cookie, err := snx.DecodeHexCookie(*data.ActiveKey)
	if err != nil {
		return "", "", fmt.Errorf("Authenticate: %w", err)
	}

	log.WithField("sessionID", sessionID).Debug("authentication OK")
	return sessionID, cookie, nil
}

// CreateTunnel opens the TLS transport to the gateway and wraps it in a
// packet channel. The returned session has performed no handshake yet: it
// has no address and no timing parameters until ClientHello succeeds.
func (c *Client) CreateTunnel(ctx context.Context, sessionID, cookie string) (*TunnelSession, error) {
	log.WithField("server", c.params.ServerName).Debug("creating TLS tunnel")

	dialer := &net.Dialer{}
	tcp, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.params.ServerName, tlsPort))
	if err != nil {
		return nil, fmt.Errorf("CreateTunnel: failed to connect to %s: %w", c.params.ServerName, err)
	}

	tlsConn := tls.Client(tcp, &tls.Config{ServerName: c.params.ServerName})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		tcp.Close()
		return nil, fmt.Errorf("CreateTunnel: TLS handshake failed: %w", err)
	}

	log.Debug("tunnel connected")

	return &TunnelSession{
		params:    c.params,
		client:    c,
		sessionID: sessionID,
		cookie:    cookie,
		ipAddress: unassignedIP,
		channel:   newTunnelChannel(tlsConn),
	}, nil
}
