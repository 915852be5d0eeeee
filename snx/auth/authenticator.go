// Package auth implements the HTTPS authentication exchange with the VPN
// gateway. It yields the session id and the hex encoded one-time key the
// tunnel presents as its cookie.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/go-snx/go-snx/snx"
)

const clientType = "4"

// Response is the body of a gateway authentication reply. Only the fields
// the tunnel consumes are modelled.
type Response struct {
	Data Data `json:"data"`
}

type Data struct {
	// IsAuthenticated is the literal string "true" on success.
	IsAuthenticated string `json:"is_authenticated"`
	// ActiveKey is the hex encoded cookie, present only on success.
	ActiveKey *string `json:"active_key,omitempty"`
	// SessionID identifies the server side session for reauthentication.
	SessionID *string `json:"session_id,omitempty"`
}

type request struct {
	ClientType string `json:"client_type"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	SessionID  string `json:"session_id,omitempty"`
	RequestID  string `json:"request_id"`
}

// Authenticator performs authentication exchanges against one gateway.
type Authenticator struct {
	params  snx.TunnelParams
	client  *http.Client
	baseURL string
}

func NewAuthenticator(params snx.TunnelParams) *Authenticator {
	return &Authenticator{
		params:  params,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: fmt.Sprintf("https://%s", params.ServerName),
	}
}

// Authenticate runs one exchange. prevSessionID is empty for a fresh login
// and carries the current session id for a renewal against the same server
// side session.
func (a *Authenticator) Authenticate(ctx context.Context, prevSessionID string) (Response, error) {
	body, err := json.Marshal(request{
		ClientType: clientType,
		Username:   a.params.UserName,
		Password:   a.params.Password,
		SessionID:  prevSessionID,
		RequestID:  uuid.New().String(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("Authenticate: failed to marshal request: %w", err)
	}

	url := a.baseURL + "/clients/auth"
	log.WithField("url", url).Debug("connecting to http endpoint")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("Authenticate: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("Authenticate: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("Authenticate: gateway returned status %d", res.StatusCode)
	}

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("Authenticate: failed to read response: %w", err)
	}
	var response Response
	if err := json.Unmarshal(resBody, &response); err != nil {
		return Response{}, fmt.Errorf("Authenticate: failed to parse response: %w", err)
	}
	return response, nil
}
