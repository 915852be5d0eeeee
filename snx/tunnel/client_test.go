package tunnel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-snx/go-snx/snx"
	"github.com/go-snx/go-snx/snx/auth"
)

type stubAuthenticator struct {
	response      auth.Response
	err           error
	prevSessionID string
	calls         int
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, prevSessionID string) (auth.Response, error) {
	s.calls++
	s.prevSessionID = prevSessionID
	return s.response, s.err
}

func authResponse(isAuthenticated string, activeKey, sessionID *string) auth.Response {
	return auth.Response{Data: auth.Data{
		IsAuthenticated: isAuthenticated,
		ActiveKey:       activeKey,
		SessionID:       sessionID,
	}}
}

func strPtr(s string) *string {
	return &s
}

func TestAuthenticate(t *testing.T) {
	stub := &stubAuthenticator{
		// hex("cookie123")
		response: authResponse("true", strPtr("636f6f6b6965313233"), strPtr("sess1")),
	}
	client := &Client{params: snx.TunnelParams{ServerName: "gw"}, auth: stub}

	sessionID, cookie, err := client.Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "sess1", sessionID)
	assert.Equal(t, "cookie123", cookie)
	assert.Equal(t, "", stub.prevSessionID)
}

func TestAuthenticateDenied(t *testing.T) {
	stub := &stubAuthenticator{
		response: authResponse("false", nil, nil),
	}
	client := &Client{auth: stub}

	_, _, err := client.Authenticate(context.Background(), "")
	require.Error(t, err)
	assert.EqualError(t, err, "Authentication failed!")
}

func TestAuthenticateMissingKey(t *testing.T) {
	stub := &stubAuthenticator{
		response: authResponse("true", nil, strPtr("sess1")),
	}
	client := &Client{auth: stub}

	_, _, err := client.Authenticate(context.Background(), "")
	assert.EqualError(t, err, "Authentication failed!")
}

func TestAuthenticateExchangeError(t *testing.T) {
	stub := &stubAuthenticator{err: errors.New("boom")}
	client := &Client{auth: stub}

	_, _, err := client.Authenticate(context.Background(), "")
	assert.Error(t, err)
}

func TestAuthenticateMissingSessionIDDefaultsToEmpty(t *testing.T) {
	stub := &stubAuthenticator{
		response: authResponse("true", strPtr("00"), nil),
	}
	client := &Client{auth: stub}

	sessionID, _, err := client.Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", sessionID)
}

func TestAuthenticateInvalidHexKey(t *testing.T) {
	stub := &stubAuthenticator{
		response: authResponse("true", strPtr("not-hex"), strPtr("sess1")),
	}
	client := &Client{auth: stub}

	_, _, err := client.Authenticate(context.Background(), "")
	assert.Error(t, err)
}
